package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger(&buf, "production", "debug")
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestNewSpan_TagsLogsWithTraceID(t *testing.T) {
	exp := recordSpans(t)
	logs := captureLogs(t)

	span, ctx := NewSpan(context.Background(), "session.refresh")
	span.AddAttributes(attribute.Bool("session.rotated", true))
	span.SetError(errors.New("refresh rejected"))
	Logger.InfoContext(ctx, "inside span")
	span.End()

	require.NotEmpty(t, span.TraceID())
	assert.Contains(t, logs.String(), `"trace_id":"`+span.TraceID()+`"`)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.refresh", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Bool("session.rotated", true))
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestStartClientSpan_NamedByRoute(t *testing.T) {
	exp := recordSpans(t)

	req, err := http.NewRequest(http.MethodGet, "http://localhost/api/posts/", nil)
	require.NoError(t, err)
	span, ctx := StartClientSpan(context.Background(), req, "/posts/")
	span.SetStatusCode(http.StatusOK)
	span.End()

	assert.Equal(t, span.TraceID(), ctx.Value(TraceIDKey))
	require.Len(t, exp.GetSpans(), 1)
	assert.Equal(t, "GET /posts/", exp.GetSpans()[0].Name)
}

func TestSpan_DisabledTracing(t *testing.T) {
	prev := Tracer
	Tracer = noop.NewTracerProvider().Tracer("off")
	t.Cleanup(func() { Tracer = prev })

	span, ctx := NewSpan(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, span.TraceID())
	assert.Nil(t, ctx.Value(TraceIDKey))
}

func TestWithUsername(t *testing.T) {
	logs := captureLogs(t)
	ctx := WithRequestID(WithUsername(context.Background(), "sana"), "req-1")
	Logger.InfoContext(ctx, "hello")
	assert.Contains(t, logs.String(), `"username":"sana"`)
	assert.Contains(t, logs.String(), `"request_id":"req-1"`)
}
