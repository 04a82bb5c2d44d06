package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/pqflow/pkg/errors"
	"github.com/ajitpratap0/pqflow/pkg/models"
	"github.com/ajitpratap0/pqflow/pkg/schema"
)

const (
	defaultNumRecs   = 1_000_000
	defaultGroupSize = 10_000
	defaultOutput    = "data.parquet"
)

// sampleSchema is the layout of the rows the write command generates.
// id is the merge key.
var sampleSchema = schema.MustNew("events",
	schema.Int64Field("id", true),
	schema.UTF8Field("account", true),
	schema.TimestampMillisField("created_at", true),
	schema.Int32Field("score", false),
)

// epoch anchors created_at so that generated files are reproducible.
var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// parseCount parses an unsigned decimal that may contain '_' separators,
// such as 1_000_000.
func parseCount(s, name string) (uint64, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig,
			fmt.Sprintf("%s should be a positive integer, found '%s'", name, s))
	}
	return v, nil
}

// parityFilter selects which ids the generator emits.
func parityFilter(parity string) (func(uint64) bool, error) {
	switch strings.ToLower(parity) {
	case "all":
		return func(uint64) bool { return true }, nil
	case "even":
		return func(i uint64) bool { return i%2 == 0 }, nil
	case "odd":
		return func(i uint64) bool { return i%2 != 0 }, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown parity '%s', expected even, odd or all", parity)
	}
}

// generator yields sample rows with ascending ids in [0, n).
type generator struct {
	n      uint64
	next   uint64
	filter func(uint64) bool
}

func newGenerator(n uint64, filter func(uint64) bool) *generator {
	return &generator{n: n, filter: filter}
}

// row returns the next row and false once every id has been considered.
func (g *generator) row() (models.Row, bool) {
	for g.next < g.n {
		i := g.next
		g.next++
		if g.filter(i) {
			return sampleRow(i), true
		}
	}
	return models.Row{}, false
}

func sampleRow(i uint64) models.Row {
	score := models.Null()
	if i%7 != 0 {
		score = models.Int32(int32(i % 1000))
	}
	return models.NewRow(
		models.Field("id", models.Int64(int64(i))),
		models.Field("account", models.UTF8(accountName(i))),
		models.Field("created_at", models.Timestamp(epoch.Add(time.Duration(i)*time.Second))),
		models.Field("score", score),
	)
}

// accountName derives a stable six letter name from i.
func accountName(i uint64) string {
	x := i*0x9E3779B97F4A7C15 + 0x632BE59BD9B4E019
	x ^= x >> 31
	var b [6]byte
	for j := range b {
		b[j] = 'a' + byte(x%26)
		x /= 26
	}
	return string(b[:])
}
