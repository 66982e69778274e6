package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProviderLogsFinishedSpans(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	provider := NewProvider(zap.New(core))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	_, span := provider.Tracer("test").Start(context.Background(), "core.create_therapy")
	span.SetAttributes(attribute.String("afya.operation", "create_therapy"))
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()

	entries := logs.FilterMessage("span finished").All()
	if len(entries) != 1 {
		t.Fatalf("expected one span entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["span"] != "core.create_therapy" || fields["afya.operation"] != "create_therapy" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["status"] != "Error" || fields["error"] != "boom" {
		t.Fatalf("expected error status, got %v", fields)
	}
}

func TestExporterHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	spans := []sdktrace.ReadOnlySpan{tracetest.SpanStub{Name: "core.get_baseline"}.Snapshot()}
	if err := NewLogExporter(nil).ExportSpans(ctx, spans); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if err := NewLogExporter(nil).ExportSpans(context.Background(), spans); err != nil {
		t.Fatalf("export: %v", err)
	}
}
