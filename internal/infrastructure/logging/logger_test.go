package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "production", cfg: DefaultConfig()},
		{name: "development", cfg: DevelopmentConfig()},
		{name: "no outputs", cfg: Config{Level: "warn"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
		})
	}
}

func TestNewWithLevelFallsBackToNop(t *testing.T) {
	logger := NewWithLevel("loud", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))

	debug := NewWithLevel("debug", false)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestWrapNil(t *testing.T) {
	assert.NotNil(t, Wrap(nil).Logger)
	assert.NotNil(t, Wrap(zap.NewNop()).Logger)
}

func TestConsoleMirrorRouting(t *testing.T) {
	var stdout, stderr bytes.Buffer
	mirror := NewConsoleMirrorWithSyncers(zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))
	require.True(t, mirror.Enabled())

	mirror.Mirror("log", "plain line")
	mirror.Mirror("info", "info line")
	mirror.Mirror("warn", "warn line")
	mirror.Mirror("error", "error line")

	assert.Contains(t, stdout.String(), "plain line")
	assert.Contains(t, stdout.String(), "info line")
	assert.NotContains(t, stdout.String(), "warn line")
	assert.NotContains(t, stdout.String(), "error line")

	assert.Contains(t, stderr.String(), "warn line")
	assert.Contains(t, stderr.String(), "error line")
	assert.NotContains(t, stderr.String(), "plain line")
}

func TestConsoleMirrorDisabled(t *testing.T) {
	mirror := NewConsoleMirror(false)
	assert.False(t, mirror.Enabled())
	mirror.Mirror("error", "dropped")

	var nilMirror *ConsoleMirror
	assert.False(t, nilMirror.Enabled())
	nilMirror.Mirror("log", "dropped")
}
