package main

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pqflow/internal/pipeline"
	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/formats/columnar"
	"github.com/ajitpratap0/pqflow/pkg/merge"
)

func (c *cli) writeCommand() *cobra.Command {
	var output, parity string

	cmd := &cobra.Command{
		Use:   "write [num_recs] [group_size]",
		Short: "Write a sample Parquet file",
		Long: `Write num_recs generated rows (default 1_000_000) in row groups of
group_size rows (default 10_000). Both accept '_' digit separators.

Rows have an ascending int64 id, so files written with --parity even and
--parity odd can be merged back into one sorted file.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			numRecs := uint64(defaultNumRecs)
			groupSize := uint64(defaultGroupSize)
			if c.configFile != "" {
				groupSize = uint64(c.cfg.Pipeline.GroupSize)
			}

			var err error
			if len(args) > 0 {
				if numRecs, err = parseCount(args[0], "num_recs"); err != nil {
					return err
				}
			}
			if len(args) > 1 {
				if groupSize, err = parseCount(args[1], "group_size"); err != nil {
					return err
				}
				if groupSize == 0 {
					return errors.New(errors.ErrorTypeConfig, "group_size should be a positive integer, found '0'")
				}
			}
			filter, err := parityFilter(parity)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			start := time.Now()
			rb, err := pipeline.NewRowBuffer(ctx, pipeline.Config{
				Name:          c.cfg.Pipeline.Name,
				Schema:        sampleSchema,
				Location:      output,
				GroupSize:     int(groupSize),
				QueueCapacity: c.cfg.Pipeline.QueueCapacity,
				Resolver:      c.resolver,
				Writer:        &c.cfg.Writer,
				Logger:        c.log,
			})
			if err != nil {
				return err
			}

			gen := newGenerator(numRecs, filter)
			for row, ok := gen.row(); ok; row, ok = gen.row() {
				if err := rb.AppendRow(ctx, row); err != nil {
					closeCtx, cancel := c.closeContext(ctx)
					if cerr := rb.Close(closeCtx); cerr != nil {
						c.log.Warn("failed to close after write error", zap.Error(cerr))
					}
					cancel()
					return err
				}
			}

			closeCtx, cancel := c.closeContext(ctx)
			defer cancel()
			if err := rb.Close(closeCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows in %d row groups to %s in %s\n",
				rb.RowsWritten(), len(rb.Summaries()), output, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "Location of the file to write")
	cmd.Flags().StringVar(&parity, "parity", "all", "Which ids to emit: even, odd or all")
	return cmd
}

func (c *cli) metaCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "meta <location>",
		Short: "Print the footer metadata of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := columnar.Inspect(cmd.Context(), c.resolver, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode metadata")
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			printFileInfo(out, args[0], info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print metadata as JSON")
	return cmd
}

func printFileInfo(out io.Writer, location string, info *columnar.FileInfo) {
	fmt.Fprintf(out, "File: %s\n", location)
	fmt.Fprintf(out, "Created by: %s\n", info.CreatedBy)
	fmt.Fprintf(out, "Rows: %d\n", info.NumRows)
	fmt.Fprintf(out, "Row groups: %d\n", len(info.RowGroups))
	fmt.Fprintln(out, "Columns:")
	for _, col := range info.Columns {
		repetition := "optional"
		if col.Required {
			repetition = "required"
		}
		fmt.Fprintf(out, "  %s: %s (%s) %s\n", col.Name, col.Physical, col.Logical, repetition)
	}
	for _, rg := range info.RowGroups {
		fmt.Fprintf(out, "Row group %d: %d rows, %d bytes\n", rg.Index, rg.NumRows, rg.TotalByteSize)
		for _, cc := range rg.Columns {
			fmt.Fprintf(out, "  %s: %s, %d values, %d/%d bytes, nulls=%d",
				cc.Name, cc.Compression, cc.NumValues, cc.CompressedSize, cc.UncompressedSize, cc.Stats.NullCount)
			if cc.Stats.HasMinMax {
				fmt.Fprintf(out, ", min=%s, max=%s", cc.Stats.Min, cc.Stats.Max)
			}
			fmt.Fprintln(out)
		}
	}
}

func (c *cli) mergeCommand() *cobra.Command {
	var keyColumn int

	cmd := &cobra.Command{
		Use:   "merge <input> <input>... <output>",
		Short: "Merge pre-sorted Parquet files into one sorted file",
		Long: `Merge two or more Parquet files that share a schema and are each sorted
ascending on the key column. Ties keep the order of the inputs.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, output := args[:len(args)-1], args[len(args)-1]
			info, err := columnar.Inspect(cmd.Context(), c.resolver, sources[0])
			if err != nil {
				return err
			}
			if keyColumn < 0 || keyColumn >= len(info.Columns) {
				return errors.Newf(errors.ErrorTypeConfig, "key column %d out of range for %d columns", keyColumn, len(info.Columns))
			}

			start := time.Now()
			res, err := merge.Files(cmd.Context(), c.resolver, sources, output, merge.ByColumn(keyColumn), merge.Options{
				Name:          c.cfg.Pipeline.Name,
				GroupSize:     c.cfg.Pipeline.GroupSize,
				QueueCapacity: c.cfg.Pipeline.QueueCapacity,
				Writer:        &c.cfg.Writer,
				ReadBatchSize: c.cfg.Reader.BatchSize,
				Logger:        c.log,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d rows from %d files into %s (%d row groups) in %s\n",
				res.Rows, res.Sources, output, res.RowGroups, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&keyColumn, "key-column", 0, "Index of the column the inputs are sorted on")
	return cmd
}

func (c *cli) readCommand() *cobra.Command {
	var (
		limit   int64
		columns []string
	)

	cmd := &cobra.Command{
		Use:   "read <location>",
		Short: "Print the rows of a Parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rcfg := c.cfg.Reader
			if cmd.Flags().Changed("limit") {
				rcfg.Limit = limit
			}
			if len(columns) > 0 {
				rcfg.Columns = columns
			}

			rr, err := columnar.OpenRowReader(cmd.Context(), c.resolver, args[0], &rcfg)
			if err != nil {
				return err
			}
			defer rr.Close()

			out := cmd.OutOrStdout()
			var n int64
			for {
				row, err := rr.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, row.Format())
				n++
			}
			fmt.Fprintf(out, "Read %d of %d rows\n", n, rr.NumRows())
			return nil
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "n", 0, "Maximum number of rows to print; 0 prints all")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Comma separated columns to print, in order")
	return cmd
}
