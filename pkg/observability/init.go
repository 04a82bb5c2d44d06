package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Exporter names accepted in TracingConfig.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ServiceName    string        `yaml:"service_name"`
	ServiceVersion string        `yaml:"service_version"`
	Environment    string        `yaml:"environment"`
	SamplingRate   float64       `yaml:"sampling_rate"`
	Exporter       string        `yaml:"exporter"`
	PrettyPrint    bool          `yaml:"pretty_print"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
}

// DefaultTracingConfig returns a disabled configuration with usable
// defaults for when tracing is switched on.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "pqflow",
		ServiceVersion: "dev",
		Environment:    getEnv("ENVIRONMENT", "development"),
		SamplingRate:   1.0,
		Exporter:       getEnv("TRACING_EXPORTER", ExporterStdout),
		BatchTimeout:   5 * time.Second,
	}
}

// Option customizes Init.
type Option func(*initOptions)

type initOptions struct {
	exporter sdktrace.SpanExporter
	writer   io.Writer
	syncer   bool
}

// WithSpanExporter replaces the configured exporter.
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(o *initOptions) {
		o.exporter = e
	}
}

// WithWriter sets where the stdout exporter writes. Defaults to stderr so
// spans never mix with command output.
func WithWriter(w io.Writer) Option {
	return func(o *initOptions) {
		o.writer = w
	}
}

// WithSyncExport exports each span as it ends instead of batching.
func WithSyncExport() Option {
	return func(o *initOptions) {
		o.syncer = true
	}
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// Init installs a global tracer provider. With tracing disabled it leaves
// the no-op provider in place and returns a no-op shutdown.
func Init(config TracingConfig, opts ...Option) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if !config.Enabled {
		return noop, nil
	}

	o := initOptions{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter := o.exporter
	if exporter == nil {
		switch config.Exporter {
		case ExporterNone:
			return noop, nil
		case ExporterStdout, "":
			stdoutOpts := []stdouttrace.Option{stdouttrace.WithWriter(o.writer)}
			if config.PrettyPrint {
				stdoutOpts = append(stdoutOpts, stdouttrace.WithPrettyPrint())
			}
			exporter, err = stdouttrace.New(stdoutOpts...)
			if err != nil {
				return noop, fmt.Errorf("failed to create stdout exporter: %w", err)
			}
		default:
			return noop, fmt.Errorf("unsupported trace exporter %q", config.Exporter)
		}
	}

	// Configure sampling
	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	var processor sdktrace.TracerProviderOption
	if o.syncer {
		processor = sdktrace.WithSyncer(exporter)
	} else {
		batchTimeout := config.BatchTimeout
		if batchTimeout <= 0 {
			batchTimeout = 5 * time.Second
		}
		processor = sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		processor,
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
