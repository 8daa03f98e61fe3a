package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlplog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

// Event names
const (
	EventFolderCreated = "folder_created"
	EventDeleted       = "deleted"
	EventUploaded      = "uploaded"
)

// Event is a completed change to the managed tree
type Event struct {
	Name  string
	User  string
	Path  string
	Files int
	Bytes int64
}

// Attributes returns the non-empty fields of the event as span attributes.
func (e Event) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("fm.path", e.Path)}
	if e.User != "" {
		attrs = append(attrs, attribute.String("fm.user", e.User))
	}
	if e.Files > 0 {
		attrs = append(attrs,
			attribute.Int("fm.files", e.Files),
			attribute.Int64("fm.bytes", e.Bytes),
		)
	}
	return attrs
}

// RecordEvent attaches e to the span in ctx, or to a new span when ctx carries
// none that records, emits it as an OpenTelemetry log record and logs it at
// debug level.
func RecordEvent(ctx context.Context, logger *logrus.Logger, e Event) {
	attrs := e.Attributes()

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		ctx, span = otel.Tracer(ServiceName).Start(ctx, e.Name)
		defer span.End()
	}
	span.AddEvent(e.Name, trace.WithAttributes(attrs...))

	fields := logrus.Fields{"event": e.Name}
	for _, kv := range attrs {
		fields[string(kv.Key)] = kv.Value.Emit()
	}
	logger.WithFields(fields).Debug("File manager event")

	var record otlplog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(otlplog.SeverityInfo)
	record.SetSeverityText("INFO")
	record.SetBody(otlplog.StringValue(e.Name))
	for _, kv := range attrs {
		record.AddAttributes(otlplog.String(string(kv.Key), kv.Value.Emit()))
	}
	global.GetLoggerProvider().Logger(ServiceName).Emit(ctx, record)
}
