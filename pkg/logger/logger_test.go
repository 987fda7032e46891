package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, shutdown, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, log)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
}

func TestNewRejectsBadLevel(t *testing.T) {
	cfg := &Config{Level: "chatty"}

	_, _, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestWithComponentChains(t *testing.T) {
	log := NewTestLogger()

	scoped := log.WithComponent("registry").WithFields(map[string]interface{}{"n": 1})
	require.NotNil(t, scoped)

	// Disabled logger: events must still be safe to fire.
	scoped.Info().Str("k", "v").Msg("dropped")
}

func TestNewOTelWriterValidation(t *testing.T) {
	_, err := NewOTelWriter(context.Background(), OTelConfig{Enabled: false})
	assert.ErrorIs(t, err, ErrOTelLoggingDisabled)

	_, err = NewOTelWriter(context.Background(), OTelConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrOTelEndpointRequired)
}

func TestMapZerologLevelToOTel(t *testing.T) {
	assert.Equal(t, "TRACE", mapZerologLevelToOTel("trace").String())
	assert.Equal(t, "WARN", mapZerologLevelToOTel("warning").String())
	assert.Equal(t, "FATAL", mapZerologLevelToOTel("panic").String())
	assert.Equal(t, "INFO", mapZerologLevelToOTel("whatever").String())
}

func TestTruncateString(t *testing.T) {
	long := make([]byte, maxAttributeValueLength+100)
	for i := range long {
		long[i] = 'a'
	}

	out := truncateString(string(long), maxAttributeValueLength)
	assert.Len(t, out, maxAttributeValueLength)
	assert.Equal(t, "...", out[len(out)-3:])

	assert.Equal(t, "short", truncateString("short", maxAttributeValueLength))
}

func TestDefaultConfigEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_OUTPUT", "stderr")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS", "x-api-key=secret, tenant=ops")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", "9s")

	cfg := DefaultConfig()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "secret", cfg.OTel.Headers["x-api-key"])
	assert.Equal(t, "ops", cfg.OTel.Headers["tenant"])
	assert.Equal(t, 9*time.Second, cfg.OTel.BatchTimeout)
}
