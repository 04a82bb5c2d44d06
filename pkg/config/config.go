package config

import (
	"time"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/logger"
	"github.com/ajitpratap0/pqflow/pkg/observability"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

// Config is the top-level pqflow configuration.
type Config struct {
	Pipeline      PipelineConfig        `yaml:"pipeline"`
	Writer        columnar.WriterConfig `yaml:"writer"`
	Reader        columnar.ReaderConfig `yaml:"reader"`
	Storage       StorageConfig         `yaml:"storage"`
	Logging       logger.Config         `yaml:"logging"`
	Observability ObservabilityConfig   `yaml:"observability"`
}

// PipelineConfig sizes the write pipeline.
type PipelineConfig struct {
	// Name labels metrics, logs and spans
	Name string `yaml:"name"`
	// GroupSize is the number of rows per row group
	GroupSize int `yaml:"group_size"`
	// QueueCapacity is the number of full batches that may wait for the writer
	QueueCapacity int `yaml:"queue_capacity"`
	// CloseTimeout bounds how long Close waits for the writer to finish.
	// Zero waits forever.
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

// StorageConfig holds the remote backend settings. A backend is only
// registered when its section is enabled.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// S3Config enables the s3: prefix
type S3Config struct {
	Enabled       bool `yaml:"enabled"`
	sink.S3Config `yaml:",inline"`
}

// GCSConfig enables the gs: prefix
type GCSConfig struct {
	Enabled        bool `yaml:"enabled"`
	sink.GCSConfig `yaml:",inline"`
}

// ObservabilityConfig covers metrics and tracing.
type ObservabilityConfig struct {
	// MetricsAddr serves /metrics when non-empty, e.g. ":9090"
	MetricsAddr string                      `yaml:"metrics_addr"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
}

// Default returns a configuration with every section at its default.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Name:          "pqflow",
			GroupSize:     10000,
			QueueCapacity: 2,
			CloseTimeout:  time.Minute,
		},
		Writer: *columnar.DefaultWriterConfig(),
		Reader: *columnar.DefaultReaderConfig(),
		Storage: StorageConfig{
			S3: S3Config{S3Config: sink.S3Config{Region: "us-east-1"}},
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Observability: ObservabilityConfig{
			Tracing: observability.DefaultTracingConfig(),
		},
	}
}

// Validate checks every section and returns the first problem as a
// configuration error.
func (c *Config) Validate() error {
	if c.Pipeline.GroupSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "pipeline.group_size must be positive, got %d", c.Pipeline.GroupSize)
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "pipeline.queue_capacity must be positive, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.CloseTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline.close_timeout cannot be negative")
	}
	if err := c.Writer.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "writer")
	}
	if err := c.Reader.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "reader")
	}
	if c.Storage.S3.Enabled && c.Storage.S3.Region == "" {
		return errors.New(errors.ErrorTypeConfig, "storage.s3.region is required")
	}
	if c.Storage.S3.PartSize < 0 || c.Storage.S3.Concurrency < 0 {
		return errors.New(errors.ErrorTypeConfig, "storage.s3 part_size and concurrency cannot be negative")
	}
	if r := c.Observability.Tracing.SamplingRate; r < 0 || r > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "observability.tracing.sampling_rate must be within [0, 1], got %v", r)
	}
	return nil
}

// SinkOptions translates the storage section into resolver options.
func (c *Config) SinkOptions() []sink.Option {
	var opts []sink.Option
	if c.Storage.S3.Enabled {
		opts = append(opts, sink.WithS3(c.Storage.S3.S3Config))
	}
	if c.Storage.GCS.Enabled {
		opts = append(opts, sink.WithGCS(c.Storage.GCS.GCSConfig))
	}
	return opts
}
