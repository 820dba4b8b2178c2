package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName names the service in traces and health reports when the
// configuration leaves it empty.
const DefaultServiceName = "arc-ledger"

// healthTimeout bounds one run of the readiness checks.
const healthTimeout = 2 * time.Second

// Observability holds all observability components.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
	Shutdown       *ShutdownCoordinator
	ServiceName    string
	ServiceVersion string
	ChainID        string

	sdkTP *sdktrace.TracerProvider

	mu     sync.RWMutex
	checks []readinessCheck
}

// ReadinessCheck reports whether a component can serve. A nil error means
// ready.
type ReadinessCheck func(ctx context.Context) error

type readinessCheck struct {
	name string
	fn   ReadinessCheck
}

// New initializes logging, tracing, and metrics.
func New(ctx context.Context, cfg ObsConfig, w io.Writer) (*Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, w)
	shutdown := NewShutdownCoordinator(logger)

	o := &Observability{
		Logger:         logger,
		Metrics:        NewMetrics(),
		Shutdown:       shutdown,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		ChainID:        cfg.ChainID,
	}

	if cfg.OTLPEndpoint == "" {
		o.TracerProvider = tracenoop.NewTracerProvider()
		logger.Info("tracing disabled (no otlp_endpoint configured)")
		return o, nil
	}

	tp, err := InitTracer(ctx, TracerConfig{
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		ChainID:        cfg.ChainID,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	o.TracerProvider, o.sdkTP = tp, tp
	shutdown.Register("tracer", tp.Shutdown)
	return o, nil
}

// Close flushes traces and runs shutdown handlers.
func (o *Observability) Close(ctx context.Context) error {
	return o.Shutdown.Shutdown(ctx)
}

// AddReadinessCheck registers a check reported by /health. Checks run in
// registration order on every request.
func (o *Observability) AddReadinessCheck(name string, fn ReadinessCheck) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks = append(o.checks, readinessCheck{name: name, fn: fn})
}

// HealthReport is the body served by /health.
type HealthReport struct {
	Service string            `json:"service"`
	Version string            `json:"version,omitempty"`
	ChainID string            `json:"chain_id,omitempty"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health runs the readiness checks. The error joins every failed check.
func (o *Observability) Health(ctx context.Context) (HealthReport, error) {
	o.mu.RLock()
	checks := make([]readinessCheck, len(o.checks))
	copy(checks, o.checks)
	o.mu.RUnlock()

	report := HealthReport{
		Service: o.ServiceName,
		Version: o.ServiceVersion,
		ChainID: o.ChainID,
		Status:  "ok",
	}
	var errs []error
	for _, c := range checks {
		if report.Checks == nil {
			report.Checks = make(map[string]string, len(checks))
		}
		if err := c.fn(ctx); err != nil {
			report.Checks[c.name] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		report.Checks[c.name] = "ok"
	}
	if len(errs) > 0 {
		report.Status = "unavailable"
	}
	return report, errors.Join(errs...)
}

// Handler serves /metrics and /health.
func (o *Observability) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		report, err := o.Health(ctx)
		code := http.StatusOK
		if err != nil {
			code = http.StatusServiceUnavailable
			o.Logger.WarnContext(ctx, "health check failed", "error", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}

// ServeMetrics starts the HTTP server for /metrics and /health and registers
// its shutdown.
func (o *Observability) ServeMetrics(ctx context.Context, addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           o.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		o.Logger.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("metrics server error", "error", err)
		}
	}()

	o.Shutdown.Register("metrics-server", srv.Shutdown)
	return srv
}

// ObsConfig is the config subset needed by the observability package.
type ObsConfig struct {
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
	// ChainID is attached to the trace resource and the health report.
	ChainID string
	// TraceSampleRatio is the fraction of root spans sampled. Values outside
	// (0, 1) sample everything.
	TraceSampleRatio float64
}
