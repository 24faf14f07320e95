// Package server builds the runwatch dependency graph and runs the HTTP
// service until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/runwatch/internal/api"
	"github.com/JakeFAU/runwatch/internal/clock/system"
	"github.com/JakeFAU/runwatch/internal/config"
	"github.com/JakeFAU/runwatch/internal/engine"
	"github.com/JakeFAU/runwatch/internal/logging"
	"github.com/JakeFAU/runwatch/internal/metrics"
	"github.com/JakeFAU/runwatch/internal/notify"
	"github.com/JakeFAU/runwatch/internal/notify/sinks"
	"github.com/JakeFAU/runwatch/internal/publisher"
	gcppublisher "github.com/JakeFAU/runwatch/internal/publisher/pubsub"
	"github.com/JakeFAU/runwatch/internal/store"
	"github.com/JakeFAU/runwatch/internal/store/memory"
	"github.com/JakeFAU/runwatch/internal/telemetry"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	registerer     prometheus.Registerer
	state          store.StateStore
	engine         *engine.Engine
	hub            *notify.Hub
	apiServer      *api.Server
	pubsubClient   *pubsub.Client
	gcpPublisher   *gcppublisher.Publisher
	publisher      publisher.Publisher
	stopWatch      func()
	spanExporter   sdktrace.SpanExporter
	tracerProvider *sdktrace.TracerProvider
}

// Option customises Build.
type Option func(*App)

// WithLogger skips logger construction and uses logger instead.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithRegisterer registers notification collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// WithPublisher replaces the Pub/Sub publisher, e.g. with an in-memory one.
func WithPublisher(pub publisher.Publisher) Option {
	return func(a *App) { a.publisher = pub }
}

// WithSpanExporter sends spans to exp instead of the configured exporter.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(a *App) { a.spanExporter = exp }
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	app := &App{cfg: cfg, registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		logger, err := logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
		app.logger = logger
	}
	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Duration("auto_dismiss", cfg.AutoDismissDelay()),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)

	if err := setupTelemetry(ctx, app); err != nil {
		return nil, err
	}
	if err := setupPublisher(ctx, app); err != nil {
		app.closeObservability(ctx)
		return nil, err
	}
	emitter, err := setupNotify(ctx, app)
	if err != nil {
		app.closeInfrastructure(ctx)
		app.closeObservability(ctx)
		return nil, err
	}

	clk := system.New()
	engineCfg := engine.Config{
		AutoDismissDelay: cfg.AutoDismissDelay(),
		Clock:            clk,
		Scheduler:        clk,
		Emitter:          emitter,
		Logger:           logging.Component(app.logger, "engine"),
	}
	apiOpts := []api.Option{
		api.WithReadiness(app.ready),
		api.WithStreamRate(cfg.Server.StreamMaxRate, cfg.Server.StreamBurst),
	}
	if app.tracerProvider != nil {
		engineCfg.Tracer = app.tracerProvider.Tracer("github.com/JakeFAU/runwatch/internal/engine")
		apiOpts = append(apiOpts, api.WithTracerProvider(app.tracerProvider))
	}
	app.state = memory.NewStateStore()
	app.engine = engine.New(app.state, engineCfg)
	app.stopWatch = watchViewMode(app.engine)

	app.apiServer = api.NewServer(app.engine, *cfg, logging.Component(app.logger, "api"), apiOpts...)
	return app, nil
}

func setupTelemetry(ctx context.Context, app *App) error {
	if !app.cfg.Telemetry.Enabled {
		app.logger.Info("tracing disabled")
		return nil
	}
	exporterKind := app.cfg.Telemetry.Exporter
	exp := app.spanExporter
	if exp == nil {
		var err error
		exp, err = telemetry.NewSpanExporter(ctx, telemetry.ExporterConfig{
			Kind:      exporterKind,
			Endpoint:  app.cfg.Telemetry.OTLPEndpoint,
			Insecure:  app.cfg.Telemetry.OTLPInsecure,
			ProjectID: app.cfg.TraceProjectID(),
		})
		if err != nil {
			return fmt.Errorf("trace exporter init failed: %w", err)
		}
	} else {
		exporterKind = "custom"
	}
	var opts []telemetry.Option
	if exp != nil {
		opts = append(opts, telemetry.WithExporter(exp))
	} else {
		app.logger.Warn("tracing enabled without an exporter; spans are dropped")
	}
	tp, err := telemetry.InitTracerProvider(ctx, app.cfg.Telemetry.ServiceName, opts...)
	if err != nil {
		if exp != nil {
			_ = exp.Shutdown(ctx)
		}
		return fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerProvider = tp
	app.logger.Info("tracing enabled",
		zap.String("service", app.cfg.Telemetry.ServiceName),
		zap.String("exporter", exporterKind),
	)
	return nil
}

func setupPublisher(ctx context.Context, app *App) error {
	if app.publisher != nil {
		return nil
	}
	if !app.cfg.PublishEnabled() {
		app.logger.Info("no Pub/Sub project configured, outcome publishing disabled")
		return nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.gcpPublisher = gcppublisher.New(client)
	app.publisher = app.gcpPublisher
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return nil
}

func setupNotify(ctx context.Context, app *App) (notify.Emitter, error) {
	ncfg := app.cfg.Notify
	if !ncfg.Enabled {
		app.logger.Info("notifications disabled")
		return notify.Discard, nil
	}
	var sinkList []notify.Sink
	if ncfg.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(logging.Component(app.logger, "notify_log")))
		app.logger.Debug("added notification log sink")
	}
	if ncfg.MetricsEnabled {
		promSink, err := sinks.NewPrometheusSink(app.registerer)
		if err != nil {
			return nil, fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, promSink)
		app.logger.Debug("added notification metrics sink")
	}
	if app.publisher != nil {
		pubSink, err := sinks.NewPublishSink(app.publisher, app.cfg.PubSub.TopicName,
			sinks.WithPublishLogger(logging.Component(app.logger, "notify_publish")))
		if err != nil {
			return nil, fmt.Errorf("publish sink init failed: %w", err)
		}
		sinkList = append(sinkList, pubSink)
		app.logger.Debug("added notification publish sink", zap.String("topic", app.cfg.PubSub.TopicName))
	}
	if len(sinkList) == 0 {
		app.logger.Warn("notifications enabled but no sinks configured")
		return notify.Discard, nil
	}

	hubCfg := notify.Config{
		BufferSize:     ncfg.BufferSize,
		MaxBatchEvents: ncfg.Batch.MaxEvents,
		MaxBatchWait:   ncfg.BatchWait(),
		SinkTimeout:    ncfg.SinkTimeout(),
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         logging.Component(app.logger, "notify_hub"),
	}
	app.hub = notify.NewHub(hubCfg, sinkList...)
	if err := metrics.RegisterHubStats(app.registerer, app.hub); err != nil {
		app.logger.Warn("hub stats not exported", zap.Error(err))
	}
	app.logger.Info("notification hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.hub, nil
}

// watchViewMode mirrors the displayed mode into the runwatch_view_mode gauge.
func watchViewMode(eng *engine.Engine) func() {
	metrics.Init()
	views, cancel := eng.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range views {
			metrics.SetViewMode(string(v.Mode))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *App) ready(context.Context) error {
	if a.engine == nil {
		return errors.New("engine not initialized")
	}
	return nil
}

// Engine exposes the display engine, e.g. for in-process producers.
func (a *App) Engine() *engine.Engine { return a.engine }

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Run starts the HTTP server and blocks until ctx is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close stops the engine, drains notifications, and releases clients.
func (a *App) Close(ctx context.Context) error {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.engine != nil {
		a.engine.Close()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("notification hub close failed", zap.Error(err))
		}
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
