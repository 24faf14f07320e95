package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/runwatch/internal/notify"
)

// PrometheusSink exports run and sweep lifecycle metrics. It owns every
// collector it registers.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	verdicts      *prometheus.CounterVec
	dismissals    *prometheus.CounterVec

	sweepsStarted   prometheus.Counter
	sweepsCompleted *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runwatch_runs_started_total",
			Help: "Total runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_runs_completed_total",
			Help: "Total runs finished partitioned by outcome.",
		}, []string{"outcome"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "runwatch_runs_active",
			Help: "Runs started but not yet finished or dismissed.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runwatch_run_duration_seconds",
			Help:    "Wall time from run start to outcome.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_verdicts_total",
			Help: "Finished runs partitioned by verdict class.",
		}, []string{"class"}),
		dismissals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_dismissals_total",
			Help: "Dismissals partitioned by mode and reason.",
		}, []string{"mode", "reason"}),
		sweepsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runwatch_sweeps_started_total",
			Help: "Total screening sweeps that have started.",
		}),
		sweepsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runwatch_sweeps_completed_total",
			Help: "Screening sweeps stopped partitioned by outcome.",
		}, []string{"outcome"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.verdicts,
		s.dismissals,
		s.sweepsStarted,
		s.sweepsCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register notification collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		switch {
		case evt.Kind.Run():
			s.handleRunEvent(evt)
		case evt.Kind.Sweep():
			s.handleSweepEvent(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleRunEvent(evt notify.Event) {
	switch evt.Kind {
	case notify.KindRunStarted:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsActive.Inc()
		}
		return
	case notify.KindRunFinished:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
		class := evt.VerdictClass
		if class == "" {
			class = "none"
		}
		s.verdicts.WithLabelValues(class).Inc()
	case notify.KindRunFailed:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeDuration(evt, "error")
	case notify.KindRunDismissed:
		s.dismissals.WithLabelValues("run", reasonLabel(evt.Note)).Inc()
	case notify.KindRunAutoDismissed:
		s.dismissals.WithLabelValues("run", "auto").Inc()
	}
	if s.tracker.finish(evt.RunID) {
		s.runsActive.Dec()
	}
}

func (s *PrometheusSink) handleSweepEvent(evt notify.Event) {
	switch evt.Kind {
	case notify.KindSweepStarted:
		s.sweepsStarted.Inc()
	case notify.KindSweepComplete:
		s.sweepsCompleted.WithLabelValues("complete").Inc()
	case notify.KindSweepFailed:
		s.sweepsCompleted.WithLabelValues("error").Inc()
	case notify.KindSweepDismissed:
		s.dismissals.WithLabelValues("sweep", reasonLabel(evt.Note)).Inc()
	}
}

func (s *PrometheusSink) observeDuration(evt notify.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// reasonLabel bounds label cardinality to the reasons the engine emits.
func reasonLabel(note string) string {
	switch note {
	case "manual", "auto", "superseded":
		return note
	case "cleared by producer":
		return "producer"
	default:
		return "other"
	}
}

// Close implements notify.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{active: make(map[uuid.UUID]struct{})}
}

func (t *runTracker) start(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[id]; ok {
		return false
	}
	t.active[id] = struct{}{}
	return true
}

func (t *runTracker) finish(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[id]; !ok {
		return false
	}
	delete(t.active, id)
	return true
}
