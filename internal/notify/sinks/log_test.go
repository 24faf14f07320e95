package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/runwatch/internal/notify"
)

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	runID := uuid.New()
	batch := []notify.Event{
		{
			Kind:         notify.KindRunFinished,
			TS:           time.Now(),
			RunID:        runID,
			SubjectID:    "AAPL",
			Decision:     "BUY",
			VerdictClass: "positive",
			Percent:      100,
			Dur:          3 * time.Second,
		},
		{Kind: notify.KindSweepStarted, TS: time.Now(), Stage: "loading"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	run := entries[0].ContextMap()
	require.Equal(t, "RUN_FINISHED", run["kind"])
	require.Equal(t, runID.String(), run["run_id"])
	require.Equal(t, "BUY", run["decision"])
	require.NotContains(t, run, "stage")

	sweep := entries[1].ContextMap()
	require.Equal(t, "loading", sweep["stage"])
	require.NotContains(t, sweep, "run_id")
}

func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()
	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []notify.Event{{Kind: notify.KindSweepDismissed}}))
}
