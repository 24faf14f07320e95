package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter kinds accepted by NewSpanExporter.
const (
	ExporterNone = "none"
	ExporterOTLP = "otlp"
	ExporterGCP  = "gcp"
)

// ErrMissingProject is returned when Cloud Trace export has no project.
var ErrMissingProject = errors.New("telemetry: gcp exporter requires a project id")

// ExporterConfig selects and addresses a span exporter.
type ExporterConfig struct {
	Kind      string
	Endpoint  string
	Insecure  bool
	ProjectID string
}

// NewSpanExporter builds the exporter named by cfg.Kind. It returns a nil
// exporter for "none" or an empty kind.
func NewSpanExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Kind {
	case "", ExporterNone:
		return nil, nil
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
		}
		return exp, nil
	case ExporterGCP:
		if cfg.ProjectID == "" {
			return nil, ErrMissingProject
		}
		exp, err := texporter.New(texporter.WithProjectID(cfg.ProjectID))
		if err != nil {
			return nil, fmt.Errorf("creating google trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Kind)
	}
}

// WithExporter batches finished spans to exp.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp,
		sdktrace.WithBatchTimeout(5*time.Second),
		sdktrace.WithMaxExportBatchSize(512),
		sdktrace.WithMaxQueueSize(2048),
	))
}
