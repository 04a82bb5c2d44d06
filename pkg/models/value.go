package models

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt32
	KindInt64
	KindUTF8
	KindTimestampMillis
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindUTF8:
		return "utf8"
	case KindTimestampMillis:
		return "timestamp_millis"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single field value. The zero Value is Null.
type Value struct {
	kind Kind
	num  int64
	str  string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Int32 returns an Int32 value.
func Int32(v int32) Value { return Value{kind: KindInt32, num: int64(v)} }

// Int64 returns an Int64 value.
func Int64(v int64) Value { return Value{kind: KindInt64, num: v} }

// UTF8 returns a text value.
func UTF8(s string) Value { return Value{kind: KindUTF8, str: s} }

// TimestampMillis returns a timestamp value holding milliseconds since the Unix epoch (UTC).
func TimestampMillis(ms int64) Value { return Value{kind: KindTimestampMillis, num: ms} }

// Timestamp returns a timestamp value truncated to millisecond precision.
func Timestamp(t time.Time) Value { return TimestampMillis(t.UnixMilli()) }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt32 returns the Int32 payload.
func (v Value) AsInt32() (int32, bool) {
	if v.kind != KindInt32 {
		return 0, false
	}
	return int32(v.num), true
}

// AsInt64 returns the Int64 payload.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.num, true
}

// AsString returns the UTF8 payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindUTF8 {
		return "", false
	}
	return v.str, true
}

// AsTimestampMillis returns the timestamp payload in milliseconds.
func (v Value) AsTimestampMillis() (int64, bool) {
	if v.kind != KindTimestampMillis {
		return 0, false
	}
	return v.num, true
}

// AsTime returns the timestamp payload as a UTC time.
func (v Value) AsTime() (time.Time, bool) {
	ms, ok := v.AsTimestampMillis()
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// Compare orders values: Null first, then by kind, then by payload. Text
// compares byte-wise. It returns -1, 0 or +1.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}
	switch a.kind {
	case KindUTF8:
		return strings.Compare(a.str, b.str)
	case KindNull:
		return 0
	default:
		return cmp.Compare(a.num, b.num)
	}
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.num, 10)
	case KindUTF8:
		return strconv.Quote(v.str)
	case KindTimestampMillis:
		return time.UnixMilli(v.num).UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

// MarshalJSON encodes null as null, integers as numbers, text as a string
// and timestamps as RFC 3339 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt32, KindInt64:
		return strconv.AppendInt(nil, v.num, 10), nil
	case KindUTF8:
		return json.Marshal(v.str)
	case KindTimestampMillis:
		return json.Marshal(time.UnixMilli(v.num).UTC().Format(time.RFC3339Nano))
	default:
		return nil, fmt.Errorf("cannot marshal value of kind %s", v.kind)
	}
}
