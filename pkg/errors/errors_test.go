package errors

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "nothing"))
}

func TestDetailLooksThroughCauses(t *testing.T) {
	inner := New(ErrorTypeIO, "write failed").WithDetail("location", "mem:out")
	outer := Wrap(fmt.Errorf("flush: %w", inner), ErrorTypePipelineTerminated, "writer stopped").
		WithDetail("rows", 10)

	v, ok := outer.Detail("rows")
	require.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = outer.Detail("location")
	require.True(t, ok)
	assert.Equal(t, "mem:out", v)

	_, ok = outer.Detail("column")
	assert.False(t, ok)
}

func TestStackPointsAtCreator(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.True(t, strings.HasSuffix(err.Stack[0].Function, "TestStackPointsAtCreator"), err.Stack[0].Function)

	wrapped := Wrap(err, ErrorTypeIO, "outer")
	assert.Equal(t, err.Stack, wrapped.Stack)

	plain := Wrap(io.EOF, ErrorTypeIO, "read")
	require.NotEmpty(t, plain.Stack)
	assert.True(t, strings.HasSuffix(plain.Stack[0].Function, "TestStackPointsAtCreator"), plain.Stack[0].Function)
}

func TestIsTypeStopsAtForeignErrors(t *testing.T) {
	assert.False(t, IsType(nil, ErrorTypeIO))
	assert.False(t, IsType(io.EOF, ErrorTypeIO))
	assert.True(t, IsType(fmt.Errorf("ctx: %w", New(ErrorTypeCancelled, "stop")), ErrorTypeCancelled))
}
