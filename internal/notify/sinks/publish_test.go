package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/notify"
	"github.com/JakeFAU/runwatch/internal/publisher/memory"
)

func lifecycleBatch(runID uuid.UUID) []notify.Event {
	now := time.Now()
	return []notify.Event{
		{Kind: notify.KindRunStarted, TS: now, RunID: runID},
		{Kind: notify.KindRunFinished, TS: now, RunID: runID, Decision: "BUY"},
		{Kind: notify.KindRunAutoDismissed, TS: now, RunID: runID},
		{Kind: notify.KindSweepComplete, TS: now, Stage: "complete"},
	}
}

func TestPublishSinkForwardsOutcomes(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := NewPublishSink(pub, "runwatch-events")
	require.NoError(t, err)

	runID := uuid.New()
	require.NoError(t, sink.Consume(context.Background(), lifecycleBatch(runID)))
	require.NoError(t, sink.Close(context.Background()))

	msgs := pub.Topic("runwatch-events")
	require.Len(t, msgs, 2)
	require.Equal(t, "RUN_FINISHED", msgs[0].Attributes["kind"])
	require.Equal(t, runID.String(), msgs[0].Attributes["run_id"])
	evt, ok := msgs[0].Payload.(notify.Event)
	require.True(t, ok)
	require.Equal(t, "BUY", evt.Decision)
	require.Equal(t, "SWEEP_COMPLETE", msgs[1].Attributes["kind"])
	require.NotContains(t, msgs[1].Attributes, "run_id")
}

func TestPublishSinkAllKinds(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := NewPublishSink(pub, "all", WithAllKinds(), WithPublishLogger(nil))
	require.NoError(t, err)
	require.NoError(t, sink.Consume(context.Background(), lifecycleBatch(uuid.New())))
	require.Len(t, pub.Messages(), 4)
}

func TestPublishSinkJoinsErrors(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	boom := errors.New("unavailable")
	pub.FailWith(boom)
	sink, err := NewPublishSink(pub, "runwatch-events")
	require.NoError(t, err)

	err = sink.Consume(context.Background(), lifecycleBatch(uuid.New()))
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "RUN_FINISHED")
	require.ErrorContains(t, err, "SWEEP_COMPLETE")
}

func TestNewPublishSinkValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPublishSink(nil, "topic")
	require.Error(t, err)
	_, err = NewPublishSink(memory.New(), "")
	require.Error(t, err)
}
