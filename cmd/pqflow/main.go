// Command pqflow writes, inspects, reads and merges Parquet files.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/pkg/config"
	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/logger"
	"github.com/ajitpratap0/pqflow/pkg/observability"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by every command.
type cli struct {
	configFile  string
	metricsAddr string
	logLevel    string
	cpuProfile  string
	memProfile  string

	cfg        *config.Config
	log        *zap.Logger
	resolver   *sink.Resolver
	shutdown   observability.ShutdownFunc
	metricsSrv *http.Server
	profiler   *profiler
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer c.teardown()
	return root.ExecuteContext(ctx)
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pqflow",
		Short: "pqflow - buffered Parquet writer and sorted file merge",
		Long: `pqflow writes rows into Parquet files one bounded row group at a time,
inspects and reads them back, and merges pre-sorted files into one.

Locations are local paths or prefixed with mem:, s3: or gs:.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "Path to a YAML configuration file")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	flags.StringVar(&c.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	flags.StringVar(&c.memProfile, "memprofile", "", "Write a heap profile to this file on exit")

	root.AddCommand(
		c.writeCommand(),
		c.metaCommand(),
		c.mergeCommand(),
		c.readCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "pqflow v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

// setup loads configuration and starts logging, tracing, metrics and
// profiling before any command runs.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.metricsAddr != "" {
		cfg.Observability.MetricsAddr = c.metricsAddr
	}
	c.cfg = cfg

	if err := logger.Init(cfg.Logging); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	c.log = logger.With(
		zap.String("component", "pqflow-cli"),
		zap.String("command", cmd.Name()),
	)

	shutdown, err := observability.Init(cfg.Observability.Tracing)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
	}
	c.shutdown = shutdown

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		c.serveMetrics(addr)
	}

	if c.cpuProfile != "" || c.memProfile != "" {
		p, err := startProfiler(c.cpuProfile, c.memProfile)
		if err != nil {
			return err
		}
		c.profiler = p
	}

	c.resolver = sink.NewResolver(append(cfg.SinkOptions(), sink.WithLogger(c.log))...)
	return nil
}

func (c *cli) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	c.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := c.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.log.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	c.log.Info("serving metrics", zap.String("addr", addr))
}

// teardown releases whatever setup started. It runs even when a command fails.
func (c *cli) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.profiler != nil {
		if err := c.profiler.stop(); err != nil {
			c.log.Warn("failed to write profile", zap.Error(err))
		}
	}
	if c.metricsSrv != nil {
		_ = c.metricsSrv.Shutdown(ctx)
	}
	if c.shutdown != nil {
		if err := c.shutdown(ctx); err != nil {
			c.log.Warn("failed to shut down tracing", zap.Error(err))
		}
	}
	if c.resolver != nil {
		if err := c.resolver.Close(); err != nil {
			c.log.Warn("failed to close storage backends", zap.Error(err))
		}
	}
	if c.log != nil {
		_ = logger.Sync()
	}
}

// closeContext bounds RowBuffer.Close by the configured close timeout.
func (c *cli) closeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Pipeline.CloseTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Pipeline.CloseTimeout)
	}
	return context.WithCancel(ctx)
}
