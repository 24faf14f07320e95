package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/notify"
)

// LogSink writes one structured log line per notification.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Only populated fields are attached.
func (s *LogSink) Consume(_ context.Context, batch []notify.Event) error {
	for _, evt := range batch {
		s.logger.Info("notification", eventFields(evt)...)
	}
	return nil
}

func eventFields(evt notify.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("kind", string(evt.Kind)),
		zap.Time("ts", evt.TS),
		zap.Float64("percent", evt.Percent),
	}
	if evt.Kind.Run() {
		fields = append(fields,
			zap.String("run_id", evt.RunID.String()),
			zap.String("subject", evt.SubjectID),
		)
	}
	if evt.Stage != "" {
		fields = append(fields, zap.String("stage", evt.Stage))
	}
	if evt.Decision != "" {
		fields = append(fields,
			zap.String("decision", evt.Decision),
			zap.String("verdict_class", evt.VerdictClass),
		)
	}
	if len(evt.FailedSteps) > 0 {
		fields = append(fields, zap.Strings("failed_steps", evt.FailedSteps))
	}
	if evt.Dur > 0 {
		fields = append(fields, zap.Duration("dur", evt.Dur))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}
	return fields
}

// Close implements notify.Sink; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
