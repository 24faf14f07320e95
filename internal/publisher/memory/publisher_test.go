package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/publisher"
)

var _ publisher.Publisher = (*Publisher)(nil)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	attrs := map[string]string{"kind": "RUN_FINISHED"}
	id1, err := pub.Publish(context.Background(), "runs", map[string]string{"k": "v"}, attrs)
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "sweeps", "payload", nil)
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	attrs["kind"] = "mutated"
	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "RUN_FINISHED", msgs[0].Attributes["kind"])
	require.Len(t, pub.Topic("sweeps"), 1)

	msgs[0].Topic = "modified"
	require.Equal(t, "runs", pub.Messages()[0].Topic, "Messages must return a copy")
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("boom")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "runs", 1, nil)
	require.ErrorIs(t, err, boom)

	pub.FailWith(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pub.Publish(ctx, "runs", 1, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pub.Messages())
}
