package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

func TestTracerResource(t *testing.T) {
	res, err := tracerResource(TracerConfig{ServiceVersion: "v0.3.0", ChainID: "ledger-test"})
	if err != nil {
		t.Fatalf("tracerResource: %v", err)
	}
	set := res.Set()
	if v, ok := set.Value(semconv.ServiceNameKey); !ok || v.AsString() != DefaultServiceName {
		t.Fatalf("service.name = %v", v)
	}
	if v, ok := set.Value(ChainIDKey); !ok || v.AsString() != "ledger-test" {
		t.Fatalf("ledger.chain_id = %v", v)
	}

	res, err = tracerResource(TracerConfig{ServiceName: "ledger-east"})
	if err != nil {
		t.Fatalf("tracerResource: %v", err)
	}
	if v, _ := res.Set().Value(semconv.ServiceNameKey); v.AsString() != "ledger-east" {
		t.Fatalf("service.name = %v", v)
	}
	if _, ok := res.Set().Value(ChainIDKey); ok {
		t.Fatal("empty chain id set on resource")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{-0.5, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); !strings.Contains(got, tt.want) {
			t.Errorf("sampler(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestInitTracer(t *testing.T) {
	for _, protocol := range []string{"", "http/protobuf", "GRPC"} {
		t.Run(protocol, func(t *testing.T) {
			tp, err := InitTracer(context.Background(), TracerConfig{
				Endpoint:    "127.0.0.1:4318",
				Protocol:    protocol,
				ChainID:     "ledger-test",
				SampleRatio: 0.5,
			})
			if err != nil {
				t.Fatalf("InitTracer: %v", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		})
	}

	_, err := InitTracer(context.Background(), TracerConfig{Endpoint: "127.0.0.1:4318", Protocol: "zipkin"})
	if !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("InitTracer error = %v, want ErrUnknownProtocol", err)
	}
}
