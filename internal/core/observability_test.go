package core

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"afyafamilia/pkg/domain"
)

func TestPrometheusMetricsRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder("", reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(rec))
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, domain.CategoryTransfusion, "child-1", domain.Transfusion{Date: testStart}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(ctx, domain.CategoryTransfusion, "missing"); err == nil {
		t.Fatalf("expected not found")
	}

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_transfusions", "success")); got != 1 {
		t.Fatalf("expected one successful create, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("get_transfusions", "error")); got != 1 {
		t.Fatalf("expected one failed get, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.duration); n != 2 {
		t.Fatalf("expected two latency series, got %d", n)
	}

	if _, err := NewPrometheusMetricsRecorder("", reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestOTelTracerRecordsSpanStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	svc := newTestService(t, WithTracer(NewOTelTracer(provider)))
	ctx := context.Background()
	if _, err := svc.List(ctx, domain.CategoryVaccination, "child-1", ListOptions{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.Baseline(ctx, "child-1"); err == nil {
		t.Fatalf("expected missing baseline")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "core.list_vaccinations" || spans[0].Status.Code != codes.Ok {
		t.Fatalf("unexpected first span %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Name != "core.get_baseline" || spans[1].Status.Code != codes.Error {
		t.Fatalf("unexpected second span %s %v", spans[1].Name, spans[1].Status)
	}
	var sawAttr bool
	for _, attr := range spans[1].Attributes {
		if string(attr.Key) == "afya.operation" && attr.Value.AsString() == "get_baseline" {
			sawAttr = true
		}
	}
	if !sawAttr {
		t.Fatalf("expected operation attribute, got %v", spans[1].Attributes)
	}
}

func TestZapLoggerWritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := newTestService(t, WithLogger(NewZapLogger(zap.New(core))))
	ctx := context.Background()

	if _, err := svc.Get(ctx, domain.CategoryOperation, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
	failed := logs.FilterMessage("operation failed").All()
	if len(failed) != 1 {
		t.Fatalf("expected one failure entry, got %d", len(failed))
	}
	fields := failed[0].ContextMap()
	if fields["operation"] != "get_operations" {
		t.Fatalf("expected operation field, got %v", fields)
	}
	if failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", failed[0].Level)
	}

	if _, _, err := svc.Create(ctx, domain.CategoryRedFlag, "child-1", domain.RedFlagEvent{Date: testStart.AddDate(0, 0, 5), Symptoms: []string{"pallor"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if logs.FilterMessage("rule warning").FilterField(zap.String("rule", "future_date")).Len() != 1 {
		t.Fatalf("expected future date warning, got %v", logs.All())
	}

	if NewZapLogger(nil) == nil {
		t.Fatalf("nil zap logger must yield a usable logger")
	}
}
