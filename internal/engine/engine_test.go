package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/clock/manual"
	"github.com/JakeFAU/runwatch/internal/display"
	"github.com/JakeFAU/runwatch/internal/id"
	"github.com/JakeFAU/runwatch/internal/notify"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
	"github.com/JakeFAU/runwatch/internal/store/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(evt notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func (r *recorder) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	eng   *Engine
	clk   *manual.Clock
	store *memory.StateStore
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := manual.New(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))
	st := memory.NewStateStore()
	rec := &recorder{}
	eng := New(st, Config{Clock: clk, Scheduler: clk, Emitter: rec})
	t.Cleanup(eng.Close)
	return &harness{eng: eng, clk: clk, store: st, rec: rec}
}

func runWith(id uuid.UUID, subject string, statuses ...progress.StepStatus) *progress.Aggregate {
	run := &progress.Aggregate{RunID: id, SubjectID: subject}
	for i, st := range statuses {
		run.Steps = append(run.Steps, progress.Step{Label: []string{"fetch", "score", "report", "extra"}[i%4], Status: st})
	}
	return run
}

func finished(id uuid.UUID, decision string) *progress.Aggregate {
	run := runWith(id, "AAPL", progress.StepDone, progress.StepDone)
	if decision != "" {
		run.Result = &progress.Result{Decision: decision}
	}
	return run
}

func TestAutoDismissAfterDelay(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	view := h.eng.SetProgress(ctx, finished(id, "BUY"))
	require.Equal(t, display.StateVerdict, view.State)
	pending, ok := h.eng.AutoDismissPending()
	require.True(t, ok)
	require.Equal(t, id, pending)

	h.clk.Advance(DefaultAutoDismissDelay - time.Millisecond)
	require.NotNil(t, h.store.Progress())

	h.clk.Advance(time.Millisecond)
	require.Nil(t, h.store.Progress())
	require.Equal(t, display.ModeNone, h.eng.View().Mode)
	_, ok = h.eng.AutoDismissPending()
	require.False(t, ok)
	require.Equal(t, []notify.Kind{
		notify.KindRunStarted,
		notify.KindRunFinished,
		notify.KindRunAutoDismissed,
	}, h.rec.kinds())
	require.Equal(t, ReasonAuto, h.rec.last().Note)
}

func TestAutoDismissRevealsSweep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "ranking", Detail: "120/400", Pct: 30})
	view := h.eng.SetProgress(ctx, finished(uuid.New(), ""))
	require.Equal(t, display.ModeRun, view.Mode)

	h.clk.Advance(DefaultAutoDismissDelay)
	view = h.eng.View()
	require.Equal(t, display.ModeSweep, view.Mode)
	require.Equal(t, "ranking · 120/400", view.Label)
}

func TestErroredRunNeverAutoDismisses(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view := h.eng.SetProgress(ctx, runWith(uuid.New(), "AAPL", progress.StepDone, progress.StepError))
	require.Equal(t, display.StateFailed, view.State)
	require.Equal(t, display.LabelFailed, view.Label)
	_, ok := h.eng.AutoDismissPending()
	require.False(t, ok)

	h.clk.Advance(time.Hour)
	require.NotNil(t, h.store.Progress())
	require.Contains(t, h.rec.kinds(), notify.KindRunFailed)
	require.Equal(t, []string{"score"}, h.rec.last().FailedSteps)
}

func TestUnfinishedRunDoesNotArm(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.eng.SetProgress(context.Background(), runWith(uuid.New(), "AAPL", progress.StepDone, progress.StepActive))
	require.Zero(t, h.clk.Pending())
}

func TestNewRunCancelsPendingDismiss(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	h.clk.Advance(5 * time.Second)

	next := uuid.New()
	view := h.eng.SetProgress(ctx, runWith(next, "MSFT", progress.StepActive, progress.StepPending))
	require.Equal(t, display.StateRunning, view.State)
	_, ok := h.eng.AutoDismissPending()
	require.False(t, ok)

	// The original deadline passes; the new run must survive.
	h.clk.Advance(5 * time.Second)
	cur := h.store.Progress()
	require.NotNil(t, cur)
	require.Equal(t, next, cur.RunID)
}

func TestUnfinishedRunReplacedIsRetired(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	h.eng.SetProgress(ctx, runWith(first, "AAPL", progress.StepActive, progress.StepPending))
	h.clk.Advance(3 * time.Second)
	h.eng.SetProgress(ctx, runWith(second, "MSFT", progress.StepActive, progress.StepPending))

	require.Equal(t, []notify.Kind{
		notify.KindRunStarted,
		notify.KindRunDismissed,
		notify.KindRunStarted,
	}, h.rec.kinds())

	h.rec.mu.Lock()
	retired := h.rec.events[1]
	h.rec.mu.Unlock()
	require.Equal(t, first, retired.RunID)
	require.Equal(t, ReasonSuperseded, retired.Note)
	require.Equal(t, 3*time.Second, retired.Dur)
	require.NoError(t, retired.Validate())
	require.Equal(t, second, h.rec.last().RunID)
}

func TestNewFinishedRunRestartsDelay(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	h.clk.Advance(6 * time.Second)
	second := uuid.New()
	h.eng.SetProgress(ctx, finished(second, "SELL"))

	h.clk.Advance(6 * time.Second)
	require.NotNil(t, h.store.Progress())
	h.clk.Advance(2 * time.Second)
	require.Nil(t, h.store.Progress())
}

func TestSameRunUpdatesDoNotRearm(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	h.eng.SetProgress(ctx, finished(id, "BUY"))
	h.clk.Advance(4 * time.Second)
	h.eng.SetProgress(ctx, finished(id, "STRONG_BUY"))
	require.Equal(t, 1, h.clk.Pending())

	h.clk.Advance(4 * time.Second)
	require.Nil(t, h.store.Progress())
	require.Len(t, h.rec.kinds(), 3, "outcome is reported once per finish")
}

func TestRegressionDisarms(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	h.eng.SetProgress(ctx, finished(id, ""))
	h.eng.SetProgress(ctx, runWith(id, "AAPL", progress.StepDone, progress.StepError))
	_, ok := h.eng.AutoDismissPending()
	require.False(t, ok)
	require.Zero(t, h.clk.Pending())

	h.clk.Advance(time.Minute)
	require.NotNil(t, h.store.Progress())
}

func TestStaleCallbackIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	h.eng.mu.Lock()
	gen := h.eng.dismiss.gen
	h.eng.mu.Unlock()

	next := uuid.New()
	h.eng.SetProgress(ctx, runWith(next, "MSFT", progress.StepActive))

	// Simulate a callback that lost the race with Stop.
	h.eng.expire(gen)
	require.Equal(t, next, h.store.Progress().RunID)
}

func TestManualDismissPrefersRun(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "ranking", Pct: 50})
	h.eng.SetProgress(ctx, finished(uuid.New(), "HOLD"))

	require.Equal(t, display.ModeRun, h.eng.Dismiss(ctx))
	require.Nil(t, h.store.Progress())
	require.NotNil(t, h.store.Screening())
	require.Zero(t, h.clk.Pending())
	require.Equal(t, notify.KindRunDismissed, h.rec.last().Kind)
	require.Equal(t, ReasonManual, h.rec.last().Note)

	require.Equal(t, display.ModeSweep, h.eng.Dismiss(ctx))
	require.Nil(t, h.store.Screening())
	require.Equal(t, notify.KindSweepDismissed, h.rec.last().Kind)

	require.Equal(t, display.ModeNone, h.eng.Dismiss(ctx))
}

func TestDismissCancelsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	h.eng.Dismiss(ctx)
	before := len(h.rec.kinds())
	h.clk.Advance(time.Minute)
	require.Len(t, h.rec.kinds(), before)
}

func TestProducerClearCancelsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	view := h.eng.SetProgress(ctx, nil)
	require.Equal(t, display.ModeNone, view.Mode)
	require.Zero(t, h.clk.Pending())
	require.Equal(t, ReasonProducer, h.rec.last().Note)

	// Clearing an absent run is silent.
	n := len(h.rec.kinds())
	h.eng.SetProgress(ctx, nil)
	require.Len(t, h.rec.kinds(), n)
}

func TestRunPreemptsSweep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	view := h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "scoring", Pct: 140})
	require.Equal(t, display.ModeSweep, view.Mode)
	require.Equal(t, 100.0, view.DisplayPct)

	view = h.eng.SetProgress(ctx, runWith(uuid.New(), "AAPL", progress.StepActive, progress.StepPending))
	require.Equal(t, display.ModeRun, view.Mode)
	require.Equal(t, "fetch", view.ActiveLabel)

	// Sweep writes do not steal the display from a run.
	view = h.eng.SetScreening(ctx, &screening.Aggregate{Stage: screening.StageComplete})
	require.Equal(t, display.ModeRun, view.Mode)
}

func TestSweepLifecycleEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "loading", Pct: 0})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "ranking", Pct: 40})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: screening.StageError, Detail: "quota"})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: screening.StageError, Detail: "quota"})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "loading"})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: screening.StageComplete, Pct: 100})

	require.Equal(t, []notify.Kind{
		notify.KindSweepStarted,
		notify.KindSweepFailed,
		notify.KindSweepStarted,
		notify.KindSweepComplete,
	}, h.rec.kinds())

	// Sweeps stay until dismissed.
	h.clk.Advance(time.Hour)
	require.NotNil(t, h.store.Screening())
}

func TestRunIDInheritance(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.eng.SetProgress(ctx, runWith(uuid.Nil, "AAPL", progress.StepActive, progress.StepPending))
	first := h.store.Progress().RunID
	require.NotEqual(t, uuid.Nil, first)

	h.eng.SetProgress(ctx, runWith(uuid.Nil, "AAPL", progress.StepDone, progress.StepActive))
	require.Equal(t, first, h.store.Progress().RunID)

	h.eng.SetProgress(ctx, runWith(uuid.Nil, "AAPL", progress.StepDone, progress.StepDone))
	require.Equal(t, first, h.store.Progress().RunID)

	// A finished run restarting is a new run.
	h.eng.SetProgress(ctx, runWith(uuid.Nil, "AAPL", progress.StepActive, progress.StepPending))
	restarted := h.store.Progress().RunID
	require.NotEqual(t, first, restarted)
	_, ok := h.eng.AutoDismissPending()
	require.False(t, ok)

	h.eng.SetProgress(ctx, runWith(uuid.Nil, "MSFT", progress.StepActive))
	require.NotEqual(t, restarted, h.store.Progress().RunID)
}

func TestUnfinishedErrorShowsActiveStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	view := h.eng.SetProgress(context.Background(),
		runWith(uuid.New(), "AAPL", progress.StepError, progress.StepActive, progress.StepPending))
	require.Equal(t, display.StateRunning, view.State)
	require.True(t, view.HasError)
	require.Equal(t, "score", view.Label)
	require.Nil(t, view.VerdictColorKey)
}

func TestSubscribeReceivesLatestView(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	views, cancel := h.eng.Subscribe()
	initial := <-views
	require.Equal(t, display.ModeNone, initial.Mode)

	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "a", Pct: 10})
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "b", Pct: 20})
	latest := <-views
	require.Equal(t, "b", latest.Label)

	h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	<-views
	h.clk.Advance(DefaultAutoDismissDelay)
	afterTimer := <-views
	require.Equal(t, display.ModeSweep, afterTimer.Mode)

	cancel()
	_, open := <-views
	require.False(t, open)
	cancel()
}

func TestCloseEndsSubscriptions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	views, cancel := h.eng.Subscribe()
	defer cancel()
	<-views
	h.eng.Close()
	_, open := <-views
	require.False(t, open)

	late, _ := h.eng.Subscribe()
	_, open = <-late
	require.False(t, open)
}

func TestWritesAfterCloseAreIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	h.eng.SetScreening(ctx, &screening.Aggregate{Stage: "ranking", Pct: 30})
	h.eng.Close()
	before := len(h.rec.kinds())

	view := h.eng.SetProgress(ctx, finished(uuid.New(), "BUY"))
	require.Equal(t, display.ModeSweep, view.Mode)
	require.Nil(t, h.store.Progress())
	require.Zero(t, h.clk.Pending())
	_, ok := h.eng.AutoDismissPending()
	require.False(t, ok)

	h.eng.SetScreening(ctx, nil)
	require.NotNil(t, h.store.Screening())
	require.Equal(t, display.ModeNone, h.eng.Dismiss(ctx))
	require.NotNil(t, h.store.Screening())
	require.Len(t, h.rec.kinds(), before)
}

func TestNewResumesStoredRun(t *testing.T) {
	t.Parallel()
	clk := manual.New(time.Unix(0, 0))
	st := memory.NewStateStore()
	st.SetProgress(finished(uuid.New(), "BUY"))

	eng := New(st, Config{Clock: clk, Scheduler: clk, AutoDismissDelay: time.Second})
	defer eng.Close()
	_, ok := eng.AutoDismissPending()
	require.True(t, ok)
	clk.Advance(time.Second)
	require.Nil(t, st.Progress())
}

func TestAssignedIDsComeFromSource(t *testing.T) {
	t.Parallel()
	runID := uuid.MustParse("0190f0c2-0000-7000-8000-000000000001")
	evtID := uuid.MustParse("0190f0c2-0000-7000-8000-000000000002")
	clk := manual.New(time.Unix(0, 0))
	rec := &recorder{}
	eng := New(memory.NewStateStore(), Config{
		Clock:     clk,
		Scheduler: clk,
		Emitter:   rec,
		IDs:       id.NewSequence(runID, evtID),
	})
	t.Cleanup(eng.Close)

	eng.SetProgress(context.Background(), runWith(uuid.Nil, "AAPL", progress.StepActive))
	evt := rec.last()
	require.Equal(t, notify.KindRunStarted, evt.Kind)
	require.Equal(t, runID, evt.RunID)
	require.Equal(t, evtID, evt.ID)
}

func TestEventsCarryIdentity(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	id := uuid.New()

	h.eng.SetProgress(context.Background(), finished(id, "strong buy"))
	evt := h.rec.last()
	require.Equal(t, notify.KindRunFinished, evt.Kind)
	require.Equal(t, id, evt.RunID)
	require.Equal(t, "strong buy", evt.Decision)
	require.Equal(t, string(progress.VerdictPositive), evt.VerdictClass)
	require.NoError(t, evt.Validate())
	require.NotEqual(t, uuid.Nil, evt.ID)
}
