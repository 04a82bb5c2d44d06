package columnar

import (
	"context"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/metadata"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
	"github.com/ajitpratap0/pqflow/pkg/sink"
)

// FileInfo describes a Parquet file's footer.
type FileInfo struct {
	CreatedBy string         `json:"created_by"`
	NumRows   int64          `json:"num_rows"`
	Columns   []ColumnInfo   `json:"columns"`
	RowGroups []RowGroupInfo `json:"row_groups"`
}

// ColumnInfo describes one leaf column of the file schema.
type ColumnInfo struct {
	Name     string `json:"name"`
	Physical string `json:"physical_type"`
	Logical  string `json:"logical_type"`
	Required bool   `json:"required"`
}

// RowGroupInfo describes one row group.
type RowGroupInfo struct {
	Index         int               `json:"index"`
	NumRows       int64             `json:"num_rows"`
	TotalByteSize int64             `json:"total_byte_size"`
	Columns       []ColumnChunkInfo `json:"columns"`
}

// ColumnChunkInfo describes one column chunk of a row group.
type ColumnChunkInfo struct {
	Name             string      `json:"name"`
	Compression      string      `json:"compression"`
	NumValues        int64       `json:"num_values"`
	CompressedSize   int64       `json:"compressed_size"`
	UncompressedSize int64       `json:"uncompressed_size"`
	Stats            ColumnStats `json:"stats"`
}

// Inspect reads the footer of the file at location.
func Inspect(ctx context.Context, resolver *sink.Resolver, location string) (*FileInfo, error) {
	src, err := resolver.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info, err := InspectReader(src)
	if err != nil {
		return nil, errors.Wrap(err, errorType(err), "failed to inspect parquet file").
			WithDetail("location", location)
	}
	return info, nil
}

// InspectReader reads the footer of the Parquet file in r.
func InspectReader(r parquet.ReaderAtSeeker) (*FileInfo, error) {
	pr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "invalid parquet file")
	}
	defer pr.Close()

	md := pr.MetaData()
	sc := md.Schema
	info := &FileInfo{
		CreatedBy: md.GetCreatedBy(),
		NumRows:   pr.NumRows(),
		Columns:   make([]ColumnInfo, sc.NumColumns()),
		RowGroups: make([]RowGroupInfo, pr.NumRowGroups()),
	}
	for i := range info.Columns {
		col := sc.Column(i)
		info.Columns[i] = ColumnInfo{
			Name:     col.Name(),
			Physical: col.PhysicalType().String(),
			Logical:  col.LogicalType().String(),
			Required: col.MaxDefinitionLevel() == 0,
		}
	}

	for i := range info.RowGroups {
		rgm := md.RowGroup(i)
		rg := RowGroupInfo{
			Index:         i,
			NumRows:       rgm.NumRows(),
			TotalByteSize: rgm.TotalByteSize(),
			Columns:       make([]ColumnChunkInfo, rgm.NumColumns()),
		}
		for j := range rg.Columns {
			cc, err := rgm.ColumnChunk(j)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read column chunk metadata").
					WithDetail("row_group", i).
					WithDetail("column", j)
			}
			stats, err := chunkStats(sc.Column(j), cc)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read column statistics").
					WithDetail("row_group", i).
					WithDetail("column", j)
			}
			rg.Columns[j] = ColumnChunkInfo{
				Name:             sc.Column(j).Name(),
				Compression:      CompressionName(cc.Compression()),
				NumValues:        cc.NumValues(),
				CompressedSize:   cc.TotalCompressedSize(),
				UncompressedSize: cc.TotalUncompressedSize(),
				Stats:            stats,
			}
		}
		info.RowGroups[i] = rg
	}
	return info, nil
}

func chunkStats(col *pqschema.Column, cc *metadata.ColumnChunkMetaData) (ColumnStats, error) {
	out := ColumnStats{Name: col.Name()}
	st, err := cc.Statistics()
	if err != nil || st == nil {
		return out, err
	}
	out.NullCount = st.NullCount()
	if !st.HasMinMax() {
		return out, nil
	}

	out.HasMinMax = true
	switch s := st.(type) {
	case *metadata.Int64Statistics:
		if schema.IsTimestampMillis(col) {
			out.Min, out.Max = models.TimestampMillis(s.Min()), models.TimestampMillis(s.Max())
		} else {
			out.Min, out.Max = models.Int64(s.Min()), models.Int64(s.Max())
		}
	case *metadata.Int32Statistics:
		out.Min, out.Max = models.Int32(s.Min()), models.Int32(s.Max())
	case *metadata.ByteArrayStatistics:
		out.Min, out.Max = models.UTF8(string(s.Min())), models.UTF8(string(s.Max()))
	default:
		out.HasMinMax = false
	}
	return out, nil
}
