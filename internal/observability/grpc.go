package observability

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC unary interceptor that traces each
// call and records it under its method name. A nil Metrics records nothing.
func UnaryServerInterceptor(m *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span, start := startRPC(ctx, info.FullMethod)
		resp, err := handler(ctx, req)
		finishRPC(m, span, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor that traces each
// stream and counts the messages it carries. A nil Metrics records nothing.
func StreamServerInterceptor(m *Metrics) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span, start := startRPC(ss.Context(), info.FullMethod)
		wrapped := &wrappedStream{ServerStream: ss, ctx: ctx}
		err := handler(srv, wrapped)
		span.SetAttributes(
			attribute.Int64("rpc.messages_sent", wrapped.sent.Load()),
			attribute.Int64("rpc.messages_received", wrapped.recv.Load()),
		)
		finishRPC(m, span, info.FullMethod, start, err)
		return err
	}
}

// splitMethod splits "/arc.ledger.v1.Ledger/Submit" into service and method.
func splitMethod(fullMethod string) (service, method string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func startRPC(ctx context.Context, fullMethod string) (context.Context, trace.Span, time.Time) {
	service, method := splitMethod(fullMethod)
	ctx, span := otel.Tracer(TracerName).Start(extractTraceContext(ctx), fullMethod,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		),
	)
	return ctx, span, time.Now()
}

func finishRPC(m *Metrics, span trace.Span, fullMethod string, start time.Time, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(fullMethod, code.String()).Observe(time.Since(start).Seconds())
	m.OperationTotal.WithLabelValues(fullMethod, code.String()).Inc()
	if code != grpccodes.OK {
		m.ErrorsTotal.WithLabelValues(fullMethod, code.String()).Inc()
	}
}

func extractTraceContext(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(md))
}

type wrappedStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent atomic.Int64
	recv atomic.Int64
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

func (w *wrappedStream) SendMsg(m any) error {
	err := w.ServerStream.SendMsg(m)
	if err == nil {
		w.sent.Add(1)
	}
	return err
}

func (w *wrappedStream) RecvMsg(m any) error {
	err := w.ServerStream.RecvMsg(m)
	if err == nil {
		w.recv.Add(1)
	}
	return err
}
