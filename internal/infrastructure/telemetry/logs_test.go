package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewZapOTELCore_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	for name, provider := range map[string]*LoggerProvider{"nil provider": nil, "disabled provider": lp} {
		t.Run(name, func(t *testing.T) {
			core := NewZapOTELCore(ZapBridgeConfig{
				ServiceName:    "storefront-test",
				LoggerProvider: provider,
				Level:          zapcore.InfoLevel,
			})
			assert.False(t, core.Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestNewZapOTELCore_Enabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "storefront-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = lp.Shutdown(ctx) }()

	core := NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    "storefront-test",
		LoggerProvider: lp,
		Level:          zapcore.WarnLevel,
	})

	_, ok := core.(*exportCore)
	assert.True(t, ok)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestExportCore_LevelGate(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&exportCore{Core: observed, minLevel: zapcore.WarnLevel})

	logger.Info("cart updated")
	logger.Warn("slow catalog query")
	logger.Error("cart store unavailable")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "slow catalog query", entries[0].Message)
	assert.Equal(t, "cart store unavailable", entries[1].Message)
}

func TestExportCore_StripsClientFields(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	core := &exportCore{Core: observed, minLevel: zapcore.InfoLevel}

	logger := zap.New(core).With(
		zap.String("component", "cart"),
		zap.String("client_ip", "203.0.113.9"),
	)
	logger.Warn("request failed",
		zap.Int("status", 503),
		zap.String("user_agent", "curl/8.0"),
		zap.String("query", "sku=100"),
		zap.String("request_id", "req-1"),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "cart", fields["component"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.EqualValues(t, 503, fields["status"])
	assert.NotContains(t, fields, "client_ip")
	assert.NotContains(t, fields, "user_agent")
	assert.NotContains(t, fields, "query")
}
