package telemetry

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEventAttributes(t *testing.T) {
	attrs := Event{Name: EventFolderCreated, Path: "docs/new"}.Attributes()
	assert.Equal(t, []attribute.KeyValue{attribute.String("fm.path", "docs/new")}, attrs)

	attrs = Event{Name: EventUploaded, User: "admin", Path: "inbox", Files: 2, Bytes: 10}.Attributes()
	assert.Contains(t, attrs, attribute.String("fm.user", "admin"))
	assert.Contains(t, attrs, attribute.Int("fm.files", 2))
	assert.Contains(t, attrs, attribute.Int64("fm.bytes", 10))
}

func TestRecordEvent_LogsAtDebug(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	RecordEvent(context.Background(), logger, Event{Name: EventFolderCreated, User: "admin", Path: "docs/new"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, EventFolderCreated, entry.Data["event"])
	assert.Equal(t, "docs/new", entry.Data["fm.path"])
	assert.Equal(t, "admin", entry.Data["fm.user"])
}

func TestRecordEvent_AddsToCurrentSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	logger, _ := test.NewNullLogger()

	ctx, span := tp.Tracer("test").Start(context.Background(), "handle_upload")
	RecordEvent(ctx, logger, Event{Name: EventUploaded, Path: "inbox", Files: 3, Bytes: 42})
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventUploaded, events[0].Name)
	assert.Contains(t, events[0].Attributes, attribute.Int("fm.files", 3))
	assert.Contains(t, events[0].Attributes, attribute.String("fm.path", "inbox"))
}
