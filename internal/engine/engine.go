// Package engine owns the display state machine. It writes the run and
// sweep aggregates through a store.StateStore, derives the authoritative
// view, and owns the single auto-dismiss timer that clears a finished,
// error-free run after a fixed delay.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/clock"
	"github.com/JakeFAU/runwatch/internal/clock/system"
	"github.com/JakeFAU/runwatch/internal/display"
	"github.com/JakeFAU/runwatch/internal/id"
	"github.com/JakeFAU/runwatch/internal/notify"
	"github.com/JakeFAU/runwatch/internal/progress"
	"github.com/JakeFAU/runwatch/internal/screening"
	"github.com/JakeFAU/runwatch/internal/store"
)

// DefaultAutoDismissDelay is how long a finished, error-free run stays visible.
const DefaultAutoDismissDelay = 8 * time.Second

// Dismissal reasons attached to RUN_DISMISSED / SWEEP_DISMISSED notes.
const (
	ReasonManual     = "manual"
	ReasonProducer   = "cleared by producer"
	ReasonAuto       = "auto"
	ReasonSuperseded = "superseded"
)

// Config wires the engine's collaborators. Zero values fall back to the
// system clock, DefaultAutoDismissDelay, a discarding emitter, and a no-op logger.
type Config struct {
	AutoDismissDelay time.Duration
	Clock            clock.Clock
	Scheduler        clock.Scheduler
	Emitter          notify.Emitter
	Logger           *zap.Logger
	Tracer           trace.Tracer
	IDs              id.Source
}

// Engine is safe for concurrent use. Every mutation, including the timer
// callback, runs under one mutex, so each derivation sees a consistent pair
// of aggregates.
type Engine struct {
	mu      sync.Mutex
	store   store.StateStore
	delay   time.Duration
	clock   clock.Clock
	sched   clock.Scheduler
	emitter notify.Emitter
	logger  *zap.Logger
	tracer  trace.Tracer
	ids     id.Source

	dismiss dismissTimer
	run     runTrack
	subs    map[*subscriber]struct{}
	closed  bool
}

// runTrack remembers per-run facts the aggregate itself does not carry.
type runTrack struct {
	id             uuid.UUID
	startedAt      time.Time
	outcomeEmitted bool
}

// New builds an Engine over st.
func New(st store.StateStore, cfg Config) *Engine {
	sys := system.New()
	if cfg.AutoDismissDelay <= 0 {
		cfg.AutoDismissDelay = DefaultAutoDismissDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = sys
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = sys
	}
	if cfg.Emitter == nil {
		cfg.Emitter = notify.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/JakeFAU/runwatch/internal/engine")
	}
	if cfg.IDs == nil {
		cfg.IDs = id.V7{}
	}
	e := &Engine{
		store:   st,
		delay:   cfg.AutoDismissDelay,
		clock:   cfg.Clock,
		sched:   cfg.Scheduler,
		emitter: cfg.Emitter,
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		ids:     cfg.IDs,
		subs:    make(map[*subscriber]struct{}),
	}
	// Resume tracking for a run already present in the store.
	if cur := st.Progress(); cur != nil {
		e.run = runTrack{id: cur.RunID, startedAt: cfg.Clock.Now()}
		e.evaluateLocked(cur)
	}
	return e
}

// SetProgress is the producer's write path for the run aggregate. A nil
// value clears the run. A value with a different RunID is a new run: any
// pending auto-dismiss for the previous run is cancelled before the new
// aggregate becomes visible.
func (e *Engine) SetProgress(ctx context.Context, value *progress.Aggregate) display.View {
	_, span := e.tracer.Start(ctx, "engine.SetProgress")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.logger.Debug("progress write after close ignored")
		return display.Derive(e.store.Snapshot())
	}

	prev := e.store.Progress()
	if value == nil {
		if prev != nil {
			e.clearRunLocked(prev, notify.KindRunDismissed, ReasonProducer)
		}
		return e.publishLocked()
	}

	next := value.Clone()
	e.assignRunID(prev, next)
	span.SetAttributes(
		attribute.String("run.id", next.RunID.String()),
		attribute.String("run.subject", next.SubjectID),
	)
	if err := next.Validate(); err != nil {
		e.logger.Debug("progress update failed validation; rendering anyway",
			zap.String("run_id", next.RunID.String()), zap.Error(err))
	}

	if !progress.SameRun(prev, next) {
		e.dismiss.cancel()
		if prev != nil {
			e.retireRunLocked(prev, notify.KindRunDismissed, ReasonSuperseded)
		}
		e.run = runTrack{id: next.RunID, startedAt: e.clock.Now()}
		e.logger.Info("run started",
			zap.String("run_id", next.RunID.String()),
			zap.String("subject", next.SubjectID),
			zap.Int("steps", len(next.Steps)),
		)
		e.emit(notify.Event{
			Kind:      notify.KindRunStarted,
			RunID:     next.RunID,
			SubjectID: next.SubjectID,
			Percent:   next.Summary().Percent,
		})
	}
	e.store.SetProgress(next)
	e.evaluateLocked(next)
	return e.publishLocked()
}

// assignRunID gives an id-less update an identity: it continues the current
// run for the same subject unless that run had finished and the update
// restarts it.
func (e *Engine) assignRunID(prev, next *progress.Aggregate) {
	if next.RunID != uuid.Nil {
		return
	}
	if prev != nil && prev.SubjectID == next.SubjectID {
		restarted := prev.Summary().Done && !next.Summary().Done
		if !restarted {
			next.RunID = prev.RunID
			return
		}
	}
	next.RunID = e.ids.NewID()
}

// evaluateLocked applies the auto-dismiss transition rules to the current run:
// Idle -> Armed when the run is done without errors, Armed -> Idle when it no
// longer is. Outcome notifications fire once per finish.
func (e *Engine) evaluateLocked(run *progress.Aggregate) {
	sum := run.Summary()
	if !sum.Done {
		e.run.outcomeEmitted = false
	} else if !e.run.outcomeEmitted {
		e.run.outcomeEmitted = true
		e.emitOutcome(run, sum)
	}

	ready := sum.Done && !sum.HasError
	switch {
	case ready && !e.dismiss.armed():
		gen := e.dismiss.arm(e.sched, e.delay, func(gen uint64) { e.expire(gen) })
		e.dismiss.runID = run.RunID
		e.logger.Info("auto-dismiss armed",
			zap.String("run_id", run.RunID.String()),
			zap.Duration("delay", e.delay),
			zap.Uint64("generation", gen),
		)
	case !ready && e.dismiss.armed():
		e.dismiss.cancel()
		e.logger.Debug("auto-dismiss disarmed", zap.String("run_id", run.RunID.String()))
	}
}

func (e *Engine) emitOutcome(run *progress.Aggregate, sum progress.Summary) {
	evt := notify.Event{
		RunID:     run.RunID,
		SubjectID: run.SubjectID,
		Percent:   sum.Percent,
		Dur:       e.sinceStart(),
	}
	if sum.HasError {
		evt.Kind = notify.KindRunFailed
		for _, step := range run.Steps {
			if step.Status == progress.StepError {
				evt.FailedSteps = append(evt.FailedSteps, step.Label)
			}
		}
		e.logger.Info("run failed",
			zap.String("run_id", run.RunID.String()),
			zap.Strings("failed_steps", evt.FailedSteps),
		)
	} else {
		evt.Kind = notify.KindRunFinished
		if run.Result != nil {
			evt.Decision = run.Result.Decision
			evt.VerdictClass = string(run.Result.Class())
		}
		e.logger.Info("run finished",
			zap.String("run_id", run.RunID.String()),
			zap.String("decision", evt.Decision),
		)
	}
	e.emit(evt)
}

// expire is the timer callback. It only clears the run it was armed for;
// a callback from a cancelled or superseded arming is discarded.
func (e *Engine) expire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dismiss.current(gen) {
		e.logger.Debug("stale auto-dismiss discarded", zap.Uint64("generation", gen))
		return
	}
	armedFor := e.dismiss.runID
	e.dismiss.fired()

	cur := e.store.Progress()
	if cur == nil || cur.RunID != armedFor {
		e.logger.Debug("auto-dismiss target gone", zap.String("run_id", armedFor.String()))
		return
	}
	e.logger.Info("auto-dismiss fired", zap.String("run_id", cur.RunID.String()))
	e.clearRunLocked(cur, notify.KindRunAutoDismissed, ReasonAuto)
	e.publishLocked()
}

// SetScreening is the producer's write path for the sweep aggregate. A nil
// value clears the sweep. Sweeps are never auto-dismissed.
func (e *Engine) SetScreening(ctx context.Context, value *screening.Aggregate) display.View {
	_, span := e.tracer.Start(ctx, "engine.SetScreening")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.logger.Debug("screening write after close ignored")
		return display.Derive(e.store.Snapshot())
	}

	prev := e.store.Screening()
	if value == nil {
		if prev != nil {
			e.store.SetScreening(nil)
			e.emit(notify.Event{Kind: notify.KindSweepDismissed, Stage: prev.Stage, Note: ReasonProducer})
		}
		return e.publishLocked()
	}

	next := value.Clone()
	span.SetAttributes(attribute.String("sweep.stage", next.Stage))
	if err := next.Validate(); err != nil {
		e.logger.Debug("screening update failed validation; rendering anyway", zap.Error(err))
	}
	if prev == nil || (prev.Terminal() && !next.Terminal()) {
		e.logger.Info("sweep started", zap.String("stage", next.Stage))
		e.emit(notify.Event{Kind: notify.KindSweepStarted, Stage: next.Stage, Percent: next.BarWidth()})
	}
	if next.Terminal() && (prev == nil || prev.Stage != next.Stage) {
		kind := notify.KindSweepComplete
		if next.Failed() {
			kind = notify.KindSweepFailed
		}
		e.logger.Info("sweep stopped", zap.String("stage", next.Stage), zap.String("detail", next.Detail))
		e.emit(notify.Event{Kind: kind, Stage: next.Stage, Percent: next.BarWidth(), Note: next.Detail})
	}
	e.store.SetScreening(next)
	return e.publishLocked()
}

// Dismiss clears the authoritative aggregate (the run when present,
// otherwise the sweep) and cancels any pending auto-dismiss. It returns the
// mode that was cleared.
func (e *Engine) Dismiss(ctx context.Context) display.Mode {
	_, span := e.tracer.Start(ctx, "engine.Dismiss")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return display.ModeNone
	}

	e.dismiss.cancel()
	run, sweep := e.store.Snapshot()
	mode := display.Select(run, sweep)
	switch mode {
	case display.ModeRun:
		e.clearRunLocked(run, notify.KindRunDismissed, ReasonManual)
	case display.ModeSweep:
		e.store.SetScreening(nil)
		e.logger.Info("sweep dismissed", zap.String("stage", sweep.Stage))
		e.emit(notify.Event{Kind: notify.KindSweepDismissed, Stage: sweep.Stage, Note: ReasonManual})
	}
	span.SetAttributes(attribute.String("dismiss.mode", string(mode)))
	e.publishLocked()
	return mode
}

func (e *Engine) clearRunLocked(run *progress.Aggregate, kind notify.Kind, reason string) {
	e.dismiss.cancel()
	e.store.SetProgress(nil)
	e.retireRunLocked(run, kind, reason)
}

// retireRunLocked reports that run left the display and resets run tracking.
func (e *Engine) retireRunLocked(run *progress.Aggregate, kind notify.Kind, reason string) {
	e.logger.Info("run dismissed",
		zap.String("run_id", run.RunID.String()),
		zap.String("reason", reason),
	)
	e.emit(notify.Event{
		Kind:      kind,
		RunID:     run.RunID,
		SubjectID: run.SubjectID,
		Percent:   run.Summary().Percent,
		Dur:       e.sinceStart(),
		Note:      reason,
	})
	e.run = runTrack{}
}

// View derives the current display state.
func (e *Engine) View() display.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return display.Derive(e.store.Snapshot())
}

// AutoDismissPending reports whether a dismissal is scheduled, and for which run.
func (e *Engine) AutoDismissPending() (uuid.UUID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dismiss.armed() {
		return uuid.Nil, false
	}
	return e.dismiss.runID, true
}

// Close cancels any pending timer and ends every subscription. Writes and
// dismissals after Close leave the state untouched.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.dismiss.cancel()
	for sub := range e.subs {
		sub.close()
		delete(e.subs, sub)
	}
}

func (e *Engine) emit(evt notify.Event) {
	evt.ID = e.ids.NewID()
	evt.TS = e.clock.Now()
	e.emitter.Emit(evt)
}

func (e *Engine) sinceStart() time.Duration {
	if e.run.startedAt.IsZero() {
		return 0
	}
	if d := e.clock.Now().Sub(e.run.startedAt); d > 0 {
		return d
	}
	return 0
}
