package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

// TracerName is the instrumentation scope of ledger spans.
const TracerName = "github.com/gezibash/arc-ledger"

// ErrorTypeKey is the span attribute carrying ErrorType.
const ErrorTypeKey = attribute.Key("error.type")

// StartSpan creates a new span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan ends a span, recording any error and its ErrorType.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(ErrorTypeKey.String(ErrorType(err)))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Typed is implemented by errors that name their own ErrorType.
type Typed interface {
	ErrorType() string
}

// ErrorType classifies err for span attributes and the errors metric. Errors
// implementing Typed anywhere in their chain name themselves; the shared
// sentinels map to fixed names; everything else is "other".
func ErrorType(err error) string {
	var typed Typed
	switch {
	case err == nil:
		return ""
	case errors.As(err, &typed):
		return typed.ErrorType()
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, arcerrors.ErrBadOrigin):
		return "bad_origin"
	case errors.Is(err, arcerrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, arcerrors.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, arcerrors.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, arcerrors.ErrOverflow):
		return "overflow"
	case errors.Is(err, arcerrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, arcerrors.ErrClosed):
		return "closed"
	}
	return "other"
}
