// Package pqflow writes row-oriented data into Parquet files one bounded row
// group at a time and merges pre-sorted Parquet files into one.
//
// # Architecture
//
// A write pipeline has exactly two parties. The producer appends rows to an
// internal/pipeline.RowBuffer, which groups them into batches of at most
// GroupSize rows. Full batches travel through a small bounded queue to a
// single background BatchWriter, which owns the output sink and encodes each
// batch as exactly one row group. A slow sink blocks the producer in Flush,
// so no more than QueueCapacity+1 batches are ever in memory.
//
// Encoding lives in pkg/formats/columnar: rows are transposed into typed
// column slices through a closed dispatch table keyed by logical and
// physical type, with exact min, max and null count statistics. The Parquet
// file layout itself is produced by github.com/apache/arrow-go/v18/parquet.
//
// pkg/merge performs an N-way merge of sorted files under a caller-supplied
// ordering, keeping ties in source order, and writes the result through a
// RowBuffer.
//
// # Locations
//
// Every file is addressed by a location string resolved by pkg/sink:
//
//	events.parquet              local file
//	mem:events                  in-memory store owned by the resolver
//	s3:bucket/events.parquet    Amazon S3 or an S3-compatible store
//	gs:bucket/events.parquet    Google Cloud Storage
//
// # Quick Start
//
//	sch := schema.MustNew("events",
//	    schema.Int64Field("id", true),
//	    schema.UTF8Field("account", true),
//	)
//	rb, err := pipeline.NewRowBuffer(ctx, pipeline.Config{
//	    Schema:   sch,
//	    Location: "events.parquet",
//	    Resolver: sink.NewResolver(),
//	})
//	if err != nil {
//	    return err
//	}
//	err = rb.AppendRow(ctx, models.NewRow(
//	    models.Field("id", models.Int64(1)),
//	    models.Field("account", models.UTF8("aafqlr")),
//	))
//	...
//	return rb.Close(ctx)
//
// The pqflow command in cmd/pqflow exposes write, meta, read and merge on
// top of these packages.
package pqflow
