package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTelemetry_LoggerWithoutExportReturnsBase(t *testing.T) {
	base := zap.NewExample()

	var none *Telemetry
	assert.Same(t, base, none.Logger(base))

	tel, err := Setup(context.Background(), Settings{ServiceName: "ledger"}, nil)
	require.NoError(t, err)
	assert.Same(t, base, tel.Logger(base))
}

func TestTelemetry_LoggerTeesIntoExport(t *testing.T) {
	tel, err := Setup(context.Background(), Settings{
		ServiceName:       "ledger",
		CollectorEndpoint: "127.0.0.1:4317",
		Insecure:          true,
		Logs:              true,
		LogLevel:          zapcore.WarnLevel,
	}, nil)
	require.NoError(t, err)
	require.True(t, tel.LogsEnabled())
	assert.False(t, tel.TracesEnabled())
	assert.False(t, tel.MetricsEnabled())

	core, local := observer.New(zapcore.DebugLevel)
	base := zap.New(core)
	log := tel.Logger(base)
	assert.NotSame(t, base, log)

	log.Info("kept locally")
	log.Warn("kept and exported")
	assert.Equal(t, 2, local.Len(), "the local core still sees every entry")

	// nothing listens on the endpoint, so the final flush may fail
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
	assert.False(t, tel.LogsEnabled())
	assert.Same(t, base, tel.Logger(base))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(&levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel})

	log.Info("dropped")
	log.With(zap.String("tenant_id", "t1")).Warn("kept")
	log.Error("also kept")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "t1", entries[0].ContextMap()["tenant_id"])
	assert.Equal(t, "also kept", entries[1].Message)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(2).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, sampler(0.25).Description(), "ParentBased")
}
