package logger

import (
	"context"

	"github.com/google/uuid"
)

type traceKey struct{}

// TraceContext captures identifiers used to correlate the log lines of one
// update check or download batch.
type TraceContext struct {
	TraceID string
	Class   string
	Phase   string
}

// NewTrace returns a TraceContext with a fresh random TraceID.
func NewTrace(class, phase string) TraceContext {
	return TraceContext{
		TraceID: uuid.NewString(),
		Class:   class,
		Phase:   phase,
	}
}

// ContextWithTrace returns a derived context carrying the provided trace metadata.
func ContextWithTrace(ctx context.Context, trace TraceContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey{}, trace)
}

// TraceFromContext extracts a TraceContext from ctx.
func TraceFromContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	if trace, ok := ctx.Value(traceKey{}).(TraceContext); ok {
		return trace
	}
	return TraceContext{}
}

func traceFieldsFromContext(ctx context.Context) []Field {
	return TraceFromContext(ctx).fields()
}

func (t TraceContext) fields() []Field {
	var fields []Field
	if t.TraceID != "" {
		fields = append(fields, String("trace_id", t.TraceID))
	}
	if t.Class != "" {
		fields = append(fields, String("class", t.Class))
	}
	if t.Phase != "" {
		fields = append(fields, String("phase", t.Phase))
	}
	return fields
}
