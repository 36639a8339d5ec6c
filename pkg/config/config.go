// Package config reads procwatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ja7ad/procwatch/pkg/controller"
)

var (
	ErrInterval = errors.New("config: interval must be positive")
	ErrBuffer   = errors.New("config: event buffer must be positive")
	ErrLogLevel = errors.New("config: unknown log level")
)

type Config struct {
	Interval    time.Duration `env:"PROCWATCH_INTERVAL" envDefault:"10s"`
	PerProcess  bool          `env:"PROCWATCH_CPU_PER_PROCESS" envDefault:"true"`
	Netlink     bool          `env:"PROCWATCH_NETLINK" envDefault:"true"`
	EventBuffer int           `env:"PROCWATCH_EVENT_BUFFER" envDefault:"1024"`
	LogLevel    string        `env:"PROCWATCH_LOG_LEVEL" envDefault:"info"`

	OTEL OTELConfig
}

// OTELConfig holds the standard OpenTelemetry exporter variables.
type OTELConfig struct {
	ServiceName        string `env:"OTEL_SERVICE_NAME" envDefault:"procwatch"`
	ResourceAttributes string `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:""`
	ExporterEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TracesEndpoint     string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" envDefault:""`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInterval, c.Interval)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("%w: %d", ErrBuffer, c.EventBuffer)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrLogLevel, c.LogLevel)
	}
}

// Engine maps the settings onto the controller.
func (c Config) Engine() controller.Config {
	return controller.Config{
		Interval:    c.Interval,
		PerProcess:  c.PerProcess,
		Netlink:     c.Netlink,
		EventBuffer: c.EventBuffer,
	}
}

// Enabled reports whether an exporter endpoint was configured.
func (c OTELConfig) Enabled() bool {
	return c.Endpoint() != ""
}

// Endpoint prefers the traces-specific endpoint over the generic one.
func (c OTELConfig) Endpoint() string {
	if c.TracesEndpoint != "" {
		return c.TracesEndpoint
	}
	return c.ExporterEndpoint
}

// TracesURL returns the full URL to post spans to when the endpoint is
// given with a scheme, "" for a bare host:port. A generic endpoint URL is
// a base and gets the /v1/traces path appended; a traces URL is used as is.
func (c OTELConfig) TracesURL() string {
	if c.TracesEndpoint != "" {
		if strings.Contains(c.TracesEndpoint, "://") {
			return c.TracesEndpoint
		}
		return ""
	}
	if strings.Contains(c.ExporterEndpoint, "://") {
		return strings.TrimRight(c.ExporterEndpoint, "/") + "/v1/traces"
	}
	return ""
}

// Attributes parses OTEL_RESOURCE_ATTRIBUTES ("k1=v1,k2=v2").
func (c OTELConfig) Attributes() []attribute.KeyValue {
	if c.ResourceAttributes == "" {
		return nil
	}
	var attrs []attribute.KeyValue
	for _, pair := range strings.Split(c.ResourceAttributes, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		attrs = append(attrs, attribute.String(k, strings.TrimSpace(v)))
	}
	return attrs
}
