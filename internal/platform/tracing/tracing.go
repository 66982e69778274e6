// Package tracing configures the OpenTelemetry tracer provider. Finished
// spans are written to the process logger; there is no collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// LogExporter writes each finished span as one debug log entry.
type LogExporter struct {
	log *zap.Logger
}

// NewLogExporter returns an exporter writing to log.
func NewLogExporter(log *zap.Logger) *LogExporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogExporter{log: log}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("trace_id", s.SpanContext().TraceID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, attributeField(kv))
		}
		if desc := s.Status().Description; desc != "" {
			fields = append(fields, zap.String("error", desc))
		}
		e.log.Debug("span finished", fields...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error { return nil }

func attributeField(kv attribute.KeyValue) zap.Field {
	return zap.String(string(kv.Key), kv.Value.Emit())
}

// NewProvider returns a provider sampling every span into a synchronous
// log exporter. Callers shut it down on exit.
func NewProvider(log *zap.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(NewLogExporter(log)),
	)
}
