package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"

	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

type quotaError struct{}

func (quotaError) Error() string     { return "quota" }
func (quotaError) ErrorType() string { return "quota" }

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("dispatch: %w", quotaError{}), "quota"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), "deadline_exceeded"},
		{arcerrors.ErrBadOrigin, "bad_origin"},
		{fmt.Errorf("class 7: %w", arcerrors.ErrNotFound), "not_found"},
		{arcerrors.ErrAlreadyExists, "already_exists"},
		{fmt.Errorf("deposit: %w", arcerrors.ErrInsufficientBalance), "insufficient_balance"},
		{arcerrors.ErrOverflow, "overflow"},
		{arcerrors.ErrInvalidInput, "invalid_input"},
		{arcerrors.ErrClosed, "closed"},
		{errors.New("disk on fire"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestOperationCountsErrorType(t *testing.T) {
	m := NewMetrics()

	op, _ := StartOperation(context.Background(), m, "dispatch", attribute.String("call", "create_class"))
	op.End(nil)
	op, _ = StartOperation(context.Background(), m, "dispatch", attribute.String("call", "transfer"))
	op.End(fmt.Errorf("transfer: %w", arcerrors.ErrInsufficientBalance))

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("dispatch", "ok")); got != 1 {
		t.Fatalf("ok = %v", got)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("dispatch", "error")); got != 1 {
		t.Fatalf("error = %v", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("dispatch", "insufficient_balance")); got != 1 {
		t.Fatalf("errors{insufficient_balance} = %v", got)
	}
	if got := testutil.CollectAndCount(m.ErrorsTotal); got != 1 {
		t.Fatalf("errors series = %d, want 1", got)
	}
}

func TestOperationNilMetrics(t *testing.T) {
	op, _ := StartOperation(context.Background(), nil, "query")
	op.With(attribute.String("class", "7"))
	op.End(arcerrors.ErrNotFound)
	if op.Logger() == nil {
		t.Fatal("nil logger")
	}
}
