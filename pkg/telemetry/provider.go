// Package telemetry sets up the OpenTelemetry tracer provider used for
// refresh-pass spans.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ja7ad/procwatch/pkg/config"
)

const exportTimeout = 10 * time.Second

// Provider wraps the SDK provider. A zero Provider is disabled: its Tracer
// is the global no-op one and Shutdown does nothing.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup builds an OTLP/HTTP exporter when an endpoint is configured and
// installs it as the global provider. An endpoint with a scheme is taken
// as a URL, a bare host:port is dialed over plain HTTP. Without an endpoint it returns a
// disabled Provider.
func Setup(ctx context.Context, cfg config.OTELConfig, log *slog.Logger) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}
	endpoint := cfg.Endpoint()
	log.Info("exporting traces", "endpoint", endpoint, "service", cfg.ServiceName)

	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(exportTimeout)}
	if u := cfg.TracesURL(); u != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(u))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
	}

	resOpts := []resource.Option{resource.WithAttributes(semconv.ServiceName(cfg.ServiceName))}
	if attrs := cfg.Attributes(); len(attrs) > 0 {
		resOpts = append(resOpts, resource.WithAttributes(attrs...))
	}
	res, err := resource.New(ctx, resOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp}, nil
}

func (p *Provider) Enabled() bool { return p.tp != nil }

func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
