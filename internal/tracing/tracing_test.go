package tracing_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/nioload/internal/config"
	"github.com/torosent/nioload/internal/tracing"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, tp.Tracer("test")
}

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	p, err := tracing.Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}
	_, span := p.Tracer().Start(context.Background(), "noop")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled provider produced a valid span context")
	}
}

func TestInitProtocols(t *testing.T) {
	for _, protocol := range []string{"grpc", "http", ""} {
		t.Run("protocol="+protocol, func(t *testing.T) {
			p, err := tracing.Init(context.Background(), config.TracingConfig{
				Endpoint:    "localhost:4317",
				Protocol:    protocol,
				ServiceName: "nioload-test",
				SampleRate:  1.0,
				Insecure:    true,
			})
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if !p.ShouldPropagate() {
				t.Error("ShouldPropagate() = false, want true when tracing enabled")
			}
		})
	}
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "zipkin",
		Insecure: true,
	})
	if err == nil {
		t.Fatal("Init() with unsupported protocol should return error")
	}
}

func TestInitInvalidSampleRate(t *testing.T) {
	for _, rate := range []float64{-0.5, 1.5} {
		_, err := tracing.Init(context.Background(), config.TracingConfig{
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: rate,
		})
		if err == nil {
			t.Errorf("Init() with sample_rate=%g should return error", rate)
		}
	}
}

func TestShouldPropagateOverride(t *testing.T) {
	off := false
	p, err := tracing.Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Insecure:   true,
		SampleRate: 1.0,
		Propagate:  &off,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when explicitly disabled")
	}
}

func TestNilProviderSafety(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider ShouldPropagate() = true, want false")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("nil provider Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "test")
	span.End()
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestStartRequestSpan(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		wantHost string
		wantPort int64
	}{
		{"host and port", "127.0.0.1:8080", "127.0.0.1", 8080},
		{"named host", "example.com:80", "example.com", 80},
		{"no port", "example.com", "example.com", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, tracer := setupTestTracer(t)

			_, span := tracing.StartRequestSpan(context.Background(), tracer, "tcp", tt.address)
			span.End()

			spans := exporter.GetSpans().Snapshots()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name() != "tcp request" {
				t.Errorf("span name = %q, want %q", spans[0].Name(), "tcp request")
			}
			if spans[0].SpanKind() != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", spans[0].SpanKind())
			}
			attrs := spanAttrs(spans[0])
			if got := attrs["server.address"].AsString(); got != tt.wantHost {
				t.Errorf("server.address = %q, want %q", got, tt.wantHost)
			}
			if got := attrs["server.port"].AsInt64(); got != tt.wantPort {
				t.Errorf("server.port = %d, want %d", got, tt.wantPort)
			}
			if got := attrs["nioload.transport"].AsString(); got != "tcp" {
				t.Errorf("nioload.transport = %q, want tcp", got)
			}
		})
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	exporter, tracer := setupTestTracer(t)

	_, span := tracer.Start(context.Background(), "test-error")
	tracing.EndSpan(span, errors.New("connection refused"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status code = %d, want %d (Error)", spans[0].Status.Code, codes.Error)
	}
}

func TestRecordResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantStatus bool
	}{
		{"with status line", 503, true},
		{"bare header block", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter, tracer := setupTestTracer(t)

			_, span := tracer.Start(context.Background(), "test-ok")
			tracing.Step(span, tracing.EventConnected)
			tracing.RecordResponse(span, tt.statusCode, 5)
			tracing.EndSpan(span, nil)

			spans := exporter.GetSpans().Snapshots()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Status().Code != codes.Ok {
				t.Errorf("span status code = %d, want Ok", spans[0].Status().Code)
			}
			attrs := spanAttrs(spans[0])
			if attrs["nioload.body_bytes"].AsInt64() != 5 {
				t.Errorf("attributes = %v, want body_bytes=5", spans[0].Attributes())
			}
			code, ok := attrs["http.response.status_code"]
			if ok != tt.wantStatus || (ok && code.AsInt64() != int64(tt.statusCode)) {
				t.Errorf("status attribute = %v (present %v), want %d", code, ok, tt.statusCode)
			}
			var events []string
			for _, ev := range spans[0].Events() {
				events = append(events, ev.Name)
			}
			if len(events) != 2 || events[0] != tracing.EventConnected || events[1] != tracing.EventFramed {
				t.Errorf("events = %v", events)
			}
		})
	}
}

func TestInjectHTTPHeaders(t *testing.T) {
	_, tracer := setupTestTracer(t)

	ctx, span := tracer.Start(context.Background(), "test-inject")
	defer span.End()

	headers := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, headers)

	got := headers.Get("Traceparent")
	if len(got) < 55 {
		t.Errorf("traceparent header missing or too short: %q", got)
	}
}

func TestInjectHTTPHeadersNoSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
	))
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)

	if got := headers.Get("Traceparent"); got != "" {
		t.Errorf("traceparent header should be empty without span, got %q", got)
	}
}
