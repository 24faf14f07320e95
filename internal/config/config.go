// Package config loads and validates runwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	ShutdownTimeoutMs int `mapstructure:"shutdown_timeout_ms"`
	// StreamMaxRate caps view events per second on each SSE stream. Zero
	// disables pacing.
	StreamMaxRate float64 `mapstructure:"stream_max_rate"`
	StreamBurst   int     `mapstructure:"stream_burst"`
}

// AuthConfig defines API authentication toggles. When enabled, producer
// writes and dismissals require the X-API-Key header.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// EngineConfig tunes the display state machine.
type EngineConfig struct {
	AutoDismissMs int `mapstructure:"auto_dismiss_ms"`
}

// NotifyConfig controls the notification hub and which sinks it feeds.
type NotifyConfig struct {
	Enabled        bool        `mapstructure:"enabled"`
	BufferSize     int         `mapstructure:"buffer_size"`
	Batch          BatchConfig `mapstructure:"batch"`
	SinkTimeoutMs  int         `mapstructure:"sink_timeout_ms"`
	LogEnabled     bool        `mapstructure:"log_enabled"`
	MetricsEnabled bool        `mapstructure:"metrics_enabled"`
}

// BatchConfig bounds hub batches by size and age.
type BatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// PubSubConfig holds the outbound topic for outcome notifications. An empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TelemetryConfig toggles OpenTelemetry tracing and picks where spans go.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// Exporter is "otlp", "gcp" (Cloud Trace) or "none".
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	// ProjectID is the Cloud Trace project; it defaults to pubsub.project_id.
	ProjectID string `mapstructure:"project_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// RUNWATCH_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RUNWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_ms", 10000)
	v.SetDefault("server.stream_max_rate", 10)
	v.SetDefault("server.stream_burst", 1)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("engine.auto_dismiss_ms", 8000)
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.batch.max_events", 64)
	v.SetDefault("notify.batch.max_wait_ms", 250)
	v.SetDefault("notify.sink_timeout_ms", 5000)
	v.SetDefault("notify.log_enabled", true)
	v.SetDefault("notify.metrics_enabled", true)
	v.SetDefault("pubsub.topic_name", "runwatch-events")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "runwatch")
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Server.StreamMaxRate < 0 {
		return errors.New("server.stream_max_rate must be >= 0")
	}
	if c.Engine.AutoDismissMs <= 0 {
		return errors.New("engine.auto_dismiss_ms must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Notify.Enabled {
		if c.Notify.BufferSize <= 0 {
			return errors.New("notify.buffer_size must be > 0")
		}
		if c.Notify.Batch.MaxEvents <= 0 {
			return errors.New("notify.batch.max_events must be > 0")
		}
		if c.Notify.Batch.MaxWaitMs <= 0 {
			return errors.New("notify.batch.max_wait_ms must be > 0")
		}
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return errors.New("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry.service_name must be set when telemetry is enabled")
		}
		switch c.Telemetry.Exporter {
		case "", "none":
		case "otlp":
			if c.Telemetry.OTLPEndpoint == "" {
				return errors.New("telemetry.otlp_endpoint must be set for the otlp exporter")
			}
		case "gcp":
			if c.TraceProjectID() == "" {
				return errors.New("telemetry.project_id or pubsub.project_id must be set for the gcp exporter")
			}
		default:
			return fmt.Errorf("telemetry.exporter %q must be otlp, gcp or none", c.Telemetry.Exporter)
		}
	}
	return nil
}

// TraceProjectID is the Cloud Trace project, falling back to the Pub/Sub project.
func (c Config) TraceProjectID() string {
	if c.Telemetry.ProjectID != "" {
		return c.Telemetry.ProjectID
	}
	return c.PubSub.ProjectID
}

// AutoDismissDelay returns the configured auto-dismiss delay.
func (c Config) AutoDismissDelay() time.Duration {
	return time.Duration(c.Engine.AutoDismissMs) * time.Millisecond
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}

// BatchWait returns the hub's maximum batch age.
func (c NotifyConfig) BatchWait() time.Duration {
	return time.Duration(c.Batch.MaxWaitMs) * time.Millisecond
}

// SinkTimeout returns the per-sink flush deadline.
func (c NotifyConfig) SinkTimeout() time.Duration {
	return time.Duration(c.SinkTimeoutMs) * time.Millisecond
}

// PublishEnabled reports whether outcome notifications go to Pub/Sub.
func (c Config) PublishEnabled() bool {
	return c.Notify.Enabled && c.PubSub.ProjectID != ""
}
