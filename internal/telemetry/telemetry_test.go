package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"

	"github.com/nimbusfs/nimbusfs/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("DefaultConfig: Enabled = true, want false")
	}
	if cfg.ServiceName != "nimbusfs" {
		t.Errorf("ServiceName = %q, want nimbusfs", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.SampleRate)
	}
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init: shutdown func is nil")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if IsEnabled() {
		t.Error("IsEnabled() = true after disabled Init")
	}
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}

func TestStartSpanAndHelpers(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	if newCtx == nil || span == nil {
		t.Fatal("StartSpan returned nil")
	}
	span.End()

	if span := SpanFromContext(ctx); span == nil {
		t.Fatal("SpanFromContext returned nil")
	}

	AddEvent(ctx, "test.event")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("boom"))
	SetStatus(ctx, codes.Ok, "fine")
	SetAttributes(ctx, FSPath("/a"))

	if id := TraceID(ctx); id != "" {
		t.Errorf("TraceID(ctx) = %q, want empty without an active span", id)
	}
	if id := SpanID(ctx); id != "" {
		t.Errorf("SpanID(ctx) = %q, want empty without an active span", id)
	}
}

func TestStartDispatchCacheRemoteSpans(t *testing.T) {
	ctx := context.Background()

	if _, span := StartDispatchSpan(ctx, "read", "/a.txt", FSOffset(0), FSCount(4096)); span == nil {
		t.Fatal("StartDispatchSpan returned nil span")
	} else {
		span.End()
	}
	if _, span := StartCacheSpan(ctx, "lookup", CacheHit(true)); span == nil {
		t.Fatal("StartCacheSpan returned nil span")
	} else {
		span.End()
	}
	if _, span := StartRemoteSpan(ctx, "fetch", RemoteScheme("s3")); span == nil {
		t.Fatal("StartRemoteSpan returned nil span")
	} else {
		span.End()
	}
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(DefaultProfilingConfig())
	if err != nil {
		t.Fatalf("InitProfiling: %v", err)
	}
	if err := shutdown(); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if IsProfilingEnabled() {
		t.Error("IsProfilingEnabled() = true after disabled InitProfiling")
	}
}

func TestFromConfig(t *testing.T) {
	tc := config.TelemetryConfig{
		Enabled:           true,
		Endpoint:          "collector:4317",
		SampleRate:        0.25,
		ProfilingEnabled:  true,
		ProfilingEndpoint: "http://pyroscope:4040",
	}

	tracing, profiling := FromConfig(tc, "1.2.3")
	if !tracing.Enabled || tracing.Endpoint != "collector:4317" || tracing.SampleRate != 0.25 {
		t.Errorf("tracing config = %+v", tracing)
	}
	if !profiling.Enabled || profiling.Endpoint != "http://pyroscope:4040" {
		t.Errorf("profiling config = %+v", profiling)
	}
	if tracing.ServiceVersion != "1.2.3" || profiling.ServiceVersion != "1.2.3" {
		t.Errorf("service version not propagated: %+v / %+v", tracing, profiling)
	}
}
