package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
}

func TestFromContext_NotFound(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("dropped") })
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestRequestAndUserID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetUserID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUserID(ctx, "42")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "42", GetUserID(ctx))

	ctx = WithRequestID(ctx, "req-2")
	assert.Equal(t, "req-2", GetRequestID(ctx))
}

func TestL_WithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		L(context.Background()).Info("nothing attached")
	})
}

func TestContextLogger_EnrichesWithContextFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-9")
	ctx = WithUserID(ctx, "5")

	L(ctx).Info("merged", zap.Int("lines", 3))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "5", fields["user_id"])
	assert.Equal(t, int64(3), fields["lines"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextLogger_EmptyContextFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))

	L(ctx).Warn("plain")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Context)
}

func TestContextLogger_TraceFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx, span := tp.Tracer("test").Start(ctx, "cart.add")
	defer span.End()

	L(ctx).Error("backend failed")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestContextLogger_NoopSpanAddsNoTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx, span := noop.NewTracerProvider().Tracer("test").Start(ctx, "noop")
	defer span.End()
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())

	L(ctx).Debug("noop")

	require.Len(t, recorded.All(), 1)
	assert.NotContains(t, recorded.All()[0].ContextMap(), "trace_id")
}

func TestContextLogger_With(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-3")

	cl := L(ctx).With(zap.String("cart.backend", "anonymous"))
	cl.Info("first")
	cl.With(zap.String("cart.operation", "add")).Info("second")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "anonymous", entries[0].ContextMap()["cart.backend"])
	assert.Equal(t, "req-3", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "add", entries[1].ContextMap()["cart.operation"])
	assert.Equal(t, "anonymous", entries[1].ContextMap()["cart.backend"])
}

func TestContextLogger_Zap(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithRequestID(WithContext(context.Background(), zap.New(core)), "req-4")

	L(ctx).Zap().Info("raw")

	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "req-4", recorded.All()[0].ContextMap()["request_id"])
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := &ContextLogger{ctx: context.Background()}
	assert.NotPanics(t, func() { cl.Info("nil logger") })
}
