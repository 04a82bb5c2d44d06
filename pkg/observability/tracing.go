// Package observability sets up OpenTelemetry tracing for pqflow.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/pqflow/pkg/errors"
)

const instrumentationName = "github.com/ajitpratap0/pqflow"

// Tracer returns the pqflow tracer from the global provider. Before Init,
// or with tracing disabled, spans are no-ops.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps a trace span and batches its attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operationName.
func StartSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)
	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	case time.Duration:
		attr = attribute.Int64(key+"_ms", v.Milliseconds())
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Finish records err, if any, as the span status and ends the span. Typed
// errors also set an error.type attribute.
func (s *Span) Finish(err error) {
	if err != nil {
		if t, ok := errors.TypeOf(err); ok {
			s.attributes = append(s.attributes, attribute.String("error.type", string(t)))
		}
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.End()
}

// End ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_ms", time.Since(s.startTime).Milliseconds()))
	s.span.End()
}

// Trace runs fn inside a span named operationName.
func Trace(ctx context.Context, operationName string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := StartSpan(ctx, operationName)
	err := fn(ctx, span)
	span.Finish(err)
	return err
}
