package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tracenoop "go.opentelemetry.io/otel/trace/noop"

	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

func newTestObservability(t *testing.T) *Observability {
	t.Helper()
	obs, err := New(context.Background(), ObsConfig{LogLevel: "error", LogFormat: "json", ChainID: "ledger-test"}, io.Discard)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = obs.Close(context.Background()) })
	return obs
}

func TestNewDefaults(t *testing.T) {
	obs := newTestObservability(t)
	if obs.ServiceName != DefaultServiceName {
		t.Fatalf("service name = %q, want %q", obs.ServiceName, DefaultServiceName)
	}
	if obs.ChainID != "ledger-test" {
		t.Fatalf("chain id = %q", obs.ChainID)
	}
	if _, ok := obs.TracerProvider.(tracenoop.TracerProvider); !ok {
		t.Fatalf("tracer provider = %T, want noop without an endpoint", obs.TracerProvider)
	}
	if got := obs.Shutdown.Components(); len(got) != 0 {
		t.Fatalf("components = %v, want none", got)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		checks  map[string]error
		status  string
		wantErr error
	}{
		{name: "no checks", status: "ok"},
		{
			name:   "ready",
			checks: map[string]error{"ledger": nil, "event-bus": nil},
			status: "ok",
		},
		{
			name:    "bus closed",
			checks:  map[string]error{"ledger": nil, "event-bus": arcerrors.ErrClosed},
			status:  "unavailable",
			wantErr: arcerrors.ErrClosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := newTestObservability(t)
			for name, err := range tt.checks {
				obs.AddReadinessCheck(name, func(context.Context) error { return err })
			}

			report, err := obs.Health(context.Background())
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Health: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Health error = %v, want %v", err, tt.wantErr)
			}
			if report.Status != tt.status {
				t.Fatalf("status = %q, want %q", report.Status, tt.status)
			}
			if len(report.Checks) != len(tt.checks) {
				t.Fatalf("checks = %v", report.Checks)
			}
			for name, want := range tt.checks {
				got := report.Checks[name]
				if want == nil && got != "ok" {
					t.Fatalf("check %s = %q, want ok", name, got)
				}
				if want != nil && got != want.Error() {
					t.Fatalf("check %s = %q, want %q", name, got, want.Error())
				}
			}
		})
	}
}

func TestHandlerHealth(t *testing.T) {
	obs := newTestObservability(t)
	ready := true
	obs.AddReadinessCheck("ledger", func(context.Context) error {
		if !ready {
			return arcerrors.ErrNotFound
		}
		return nil
	})
	h := obs.Handler()

	get := func() (*httptest.ResponseRecorder, HealthReport) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var report HealthReport
		if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		return rec, report
	}

	rec, report := get()
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if report.Service != DefaultServiceName || report.ChainID != "ledger-test" || report.Checks["ledger"] != "ok" {
		t.Fatalf("report = %+v", report)
	}

	ready = false
	rec, report = get()
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", rec.Code)
	}
	if report.Status != "unavailable" || report.Checks["ledger"] != arcerrors.ErrNotFound.Error() {
		t.Fatalf("report = %+v", report)
	}
}

func TestHandlerMetrics(t *testing.T) {
	obs := newTestObservability(t)
	obs.Metrics.CallsTotal.WithLabelValues("transfer", "ok").Inc()

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `arc_ledger_calls_total{kind="transfer",status="ok"} 1`) {
		t.Fatalf("metrics body missing calls counter:\n%s", body)
	}
}

func TestServeMetricsRegistersShutdown(t *testing.T) {
	obs := newTestObservability(t)
	srv := obs.ServeMetrics(context.Background(), "127.0.0.1:0")
	if srv.Addr != "127.0.0.1:0" {
		t.Fatalf("addr = %q", srv.Addr)
	}
	if got := obs.Shutdown.Components(); len(got) != 1 || got[0] != "metrics-server" {
		t.Fatalf("components = %v", got)
	}
	if err := obs.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewWithOTLP(t *testing.T) {
	for _, protocol := range []string{"http", "grpc"} {
		t.Run(protocol, func(t *testing.T) {
			obs, err := New(context.Background(), ObsConfig{
				LogLevel:     "error",
				OTLPEndpoint: "127.0.0.1:4318",
				OTLPProtocol: protocol,
				ChainID:      "ledger-test",
			}, io.Discard)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := obs.Shutdown.Components(); len(got) != 1 || got[0] != "tracer" {
				t.Fatalf("components = %v", got)
			}
			_ = obs.Close(context.Background())
		})
	}
}

func TestNewUnknownProtocol(t *testing.T) {
	_, err := New(context.Background(), ObsConfig{
		LogLevel:     "error",
		OTLPEndpoint: "127.0.0.1:4318",
		OTLPProtocol: "carrier-pigeon",
	}, io.Discard)
	if !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("New error = %v, want ErrUnknownProtocol", err)
	}
}
