package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"vidgenius/internal/config"
)

func TestNewRespectsLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	logger, err := New(config.LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDebugEnvOverrides(t *testing.T) {
	t.Setenv(DebugEnv, "1")
	logger, err := New(config.LoggingConfig{Level: "error", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Setenv(DebugEnv, "")
	_, err := New(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)
}
