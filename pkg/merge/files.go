package merge

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/pqflow/internal/pipeline"
	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/logger"
	"github.com/ajitpratap0/pqflow/pkg/metrics"
	"github.com/ajitpratap0/pqflow/pkg/observability"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

// Options configures Files.
type Options struct {
	Name          string
	GroupSize     int
	QueueCapacity int
	Writer        *columnar.WriterConfig
	// ReadBatchSize is the number of values decoded per column per read.
	ReadBatchSize int
	Logger        *zap.Logger
}

// Result describes a completed merge.
type Result struct {
	Sources   int
	Rows      int64
	RowGroups int
	Schema    *schema.Schema
	Summaries []*columnar.RowGroupSummary
}

// Files merges the sorted Parquet files at sources into output. All sources
// are opened before any row is read; if one fails to open the others are
// closed and nothing is written. Every source must have the same schema.
func Files(ctx context.Context, resolver *sink.Resolver, sources []string, output string, less Less, opts Options) (*Result, error) {
	if len(sources) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "merge needs at least one source")
	}
	if opts.Name == "" {
		opts.Name = "merge"
	}
	if opts.Logger == nil {
		opts.Logger = logger.WithContext(logger.ContextWithLocation(ctx, output))
	}
	log := opts.Logger.With(zap.String("component", "merge"))

	var result *Result
	err := observability.Trace(ctx, "merge.files", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("sources", len(sources))
		span.SetAttribute("output", output)

		readers, err := openAll(ctx, resolver, sources, opts.ReadBatchSize)
		if err != nil {
			return err
		}
		defer closeAll(readers, log)
		metrics.MergeSources.Add(float64(len(readers)))

		sch := readers[0].Schema()
		for i, rr := range readers[1:] {
			if !rr.Schema().Equal(sch) {
				return errors.Newf(errors.ErrorTypeSchemaMismatch,
					"source %s has columns [%s], %s has [%s]",
					sources[i+1], strings.Join(rr.Schema().Names(), ", "),
					sources[0], strings.Join(sch.Names(), ", "))
			}
		}

		log.Info("merge started",
			zap.Strings("sources", sources),
			zap.String("output", output))

		rb, err := pipeline.NewRowBuffer(ctx, pipeline.Config{
			Name:          opts.Name,
			Schema:        sch,
			Location:      output,
			GroupSize:     opts.GroupSize,
			QueueCapacity: opts.QueueCapacity,
			Resolver:      resolver,
			Writer:        opts.Writer,
			Logger:        opts.Logger,
		})
		if err != nil {
			return err
		}

		srcs := make([]RowSource, len(readers))
		for i, rr := range readers {
			srcs[i] = rr
		}
		n, err := Rows(ctx, srcs, rb, less)
		if err != nil {
			if cerr := rb.Close(ctx); cerr != nil {
				log.Warn("failed to close output after merge error", zap.Error(cerr))
			}
			return err
		}
		if err := rb.Close(ctx); err != nil {
			return err
		}
		metrics.MergeRows.Add(float64(n))

		result = &Result{
			Sources:   len(readers),
			Rows:      n,
			RowGroups: len(rb.Summaries()),
			Schema:    sch,
			Summaries: rb.Summaries(),
		}
		span.SetAttribute("rows", n)
		log.Info("merge finished",
			zap.String("output", output),
			zap.Int64("rows", n),
			zap.Int("row_groups", result.RowGroups))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func openAll(ctx context.Context, resolver *sink.Resolver, sources []string, batchSize int) ([]*columnar.RowReader, error) {
	cfg := columnar.DefaultReaderConfig()
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}

	readers := make([]*columnar.RowReader, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range sources {
		g.Go(func() error {
			rr, err := columnar.OpenRowReader(gctx, resolver, loc, cfg)
			if err != nil {
				return err
			}
			readers[i] = rr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll(readers, zap.NewNop())
		return nil, err
	}
	return readers, nil
}

func closeAll(readers []*columnar.RowReader, log *zap.Logger) {
	for _, rr := range readers {
		if rr == nil {
			continue
		}
		if err := rr.Close(); err != nil {
			log.Warn("failed to close merge source", zap.Error(err))
		}
	}
}
