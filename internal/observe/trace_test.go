package observe

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider with an in-memory exporter
// for inspecting recorded spans.
func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestTraceID_EmptyByDefault(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestTraceID_ReturnsHex(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "test-span")
	defer span.End()

	assert.Regexp(t, `^[0-9a-f]{32}$`, TraceID(ctx))
}

func TestStartSpan_CreatesSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)

	// Temporarily override the global provider.
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "sco.setup")
	assert.NotEmpty(t, TraceID(ctx))

	span.End()
	spans := exp.GetSpans()
	require.NotEmpty(t, spans)
	assert.Equal(t, "sco.setup", spans[0].Name)
}

func TestWithTrace_KeepsBaseAttributes(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil)).With("peer", "00:11:22:33:44:55")

	ctx, span := tp.Tracer("test").Start(context.Background(), "log-test")
	defer span.End()

	WithTrace(ctx, base).Info("test message")

	logged := buf.String()
	for _, want := range []string{"peer=00:11:22:33:44:55", "trace_id=", "span_id="} {
		assert.Contains(t, logged, want)
	}
}

func TestWithTrace_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	l := WithTrace(context.Background(), base)
	assert.Same(t, base, l)
	l.Info("test message")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestLogger_UsesDefault(t *testing.T) {
	assert.Same(t, slog.Default(), Logger(context.Background()))
}
