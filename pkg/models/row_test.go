package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

func TestNewRowPositionalReadBack(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	pairs := []NamedValue{
		Field("id", Int64(42)),
		Field("account", UTF8("Hello")),
		Field("created", Timestamp(ts)),
		Field("score", Int32(-7)),
		Field("note", Null()),
	}

	row := NewRow(pairs...)
	require.Equal(t, len(pairs), row.Len())
	for i, p := range pairs {
		assert.Equal(t, p.Name, row.Name(i))
		assert.True(t, p.Value.Equal(row.Get(i)), "field %d", i)
	}

	id, err := row.Int64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	account, err := row.Text(1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", account)

	created, ok := row.Get(2).AsTime()
	require.True(t, ok)
	assert.True(t, ts.Equal(created))

	score, err := row.Int32(3)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), score)

	assert.True(t, row.Get(4).IsNull())
}

func TestRowAccessorErrors(t *testing.T) {
	row := NewRow(Field("id", Int64(1)))

	_, err := row.Text(0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))

	_, err = row.Int64(3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchemaMismatch))
}

func TestRowValuesIsACopy(t *testing.T) {
	row := NewRow(Field("id", Int64(1)))
	vals := row.Values()
	vals[0] = Int64(99)
	assert.True(t, row.Get(0).Equal(Int64(1)))
}

func TestRowEqualAndFormat(t *testing.T) {
	a := NewRow(Field("id", Int64(1)), Field("name", UTF8("x")))
	b := RowOf([]string{"id", "name"}, []Value{Int64(1), UTF8("x")})
	c := NewRow(Field("id", Int64(2)), Field("name", UTF8("x")))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, `{id: 1, name: "x"}`, a.Format())
}

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
		str  string
	}{
		{"null", Null(), KindNull, "null"},
		{"int32", Int32(5), KindInt32, "5"},
		{"int64", Int64(-9), KindInt64, "-9"},
		{"utf8", UTF8("a"), KindUTF8, `"a"`},
		{"timestamp", TimestampMillis(0), KindTimestampMillis, "1970-01-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
			assert.Equal(t, tt.str, tt.v.String())
		})
	}

	// Int32 and Int64 with the same payload are different values.
	assert.False(t, Int32(1).Equal(Int64(1)))
}

func TestRowBatch(t *testing.T) {
	b := NewRowBatch(4)
	assert.Equal(t, 0, b.Len())
	b.Append(NewRow(Field("id", Int64(1))))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 4, cap(b.Rows))
}

func TestValueMarshalJSON(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), `null`},
		{Int32(-4), `-4`},
		{Int64(1 << 40), `1099511627776`},
		{UTF8(`a"b`), `"a\"b"`},
		{TimestampMillis(1500), `"1970-01-01T00:00:01.5Z"`},
	}
	for _, tt := range tests {
		got, err := tt.v.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Value
		want int
	}{
		{Null(), Null(), 0},
		{Null(), Int64(-5), -1},
		{Int64(-5), Null(), 1},
		{Int64(1), Int64(2), -1},
		{Int64(2), Int64(2), 0},
		{Int32(3), Int32(-3), 1},
		{UTF8("apple"), UTF8("banana"), -1},
		{UTF8("Z"), UTF8("a"), -1},
		{TimestampMillis(10), TimestampMillis(9), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
