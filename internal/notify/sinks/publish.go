package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/notify"
	"github.com/JakeFAU/runwatch/internal/publisher"
)

// PublishSink forwards notifications to an external topic. By default only
// outcome events (finished, failed, complete) are sent.
type PublishSink struct {
	pub    publisher.Publisher
	topic  string
	all    bool
	logger *zap.Logger
}

// PublishOption customises a PublishSink.
type PublishOption func(*PublishSink)

// WithAllKinds forwards every notification instead of outcomes only.
func WithAllKinds() PublishOption {
	return func(s *PublishSink) { s.all = true }
}

// WithPublishLogger attaches a logger for per-message failures.
func WithPublishLogger(logger *zap.Logger) PublishOption {
	return func(s *PublishSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewPublishSink builds a sink publishing to topic via pub.
func NewPublishSink(pub publisher.Publisher, topic string, opts ...PublishOption) (*PublishSink, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	s := &PublishSink{pub: pub, topic: topic, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Consume publishes each selected event. It keeps going after a failed
// publish and returns the joined errors.
func (s *PublishSink) Consume(ctx context.Context, batch []notify.Event) error {
	var errs []error
	for _, evt := range batch {
		if !s.all && !evt.Kind.Outcome() {
			continue
		}
		attrs := map[string]string{"kind": string(evt.Kind)}
		if evt.Kind.Run() {
			attrs["run_id"] = evt.RunID.String()
		}
		id, err := s.pub.Publish(ctx, s.topic, evt, attrs)
		if err != nil {
			s.logger.Warn("publish notification failed",
				zap.String("kind", string(evt.Kind)),
				zap.String("topic", s.topic),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("publish %s: %w", evt.Kind, err))
			continue
		}
		s.logger.Debug("notification published", zap.String("kind", string(evt.Kind)), zap.String("message_id", id))
	}
	return errors.Join(errs...)
}

// Close implements notify.Sink; the publisher is owned by the caller.
func (s *PublishSink) Close(context.Context) error {
	return nil
}
