package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleMirror copies captured snippet console records to the process's
// diagnostic output.
type ConsoleMirror struct {
	logger  *zap.Logger
	enabled bool
}

// NewConsoleMirror builds a mirror that routes log/info records to stdout and
// warn/error records to stderr. A disabled mirror drops everything.
func NewConsoleMirror(enabled bool) *ConsoleMirror {
	if !enabled {
		return &ConsoleMirror{logger: zap.NewNop()}
	}
	return NewConsoleMirrorWithSyncers(zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
}

// NewConsoleMirrorWithSyncers builds an enabled mirror over custom writers.
func NewConsoleMirrorWithSyncers(stdout, stderr zapcore.WriteSyncer) *ConsoleMirror {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	enc := zapcore.NewConsoleEncoder(encCfg)

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l < zapcore.WarnLevel })
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.WarnLevel })

	core := zapcore.NewTee(
		zapcore.NewCore(enc, stdout, low),
		zapcore.NewCore(enc, stderr, high),
	)
	return &ConsoleMirror{
		logger:  zap.New(core).Named("snippet"),
		enabled: true,
	}
}

// Enabled reports whether records are being mirrored.
func (m *ConsoleMirror) Enabled() bool {
	return m != nil && m.enabled
}

// Mirror writes one console record at the zap level matching its console level.
func (m *ConsoleMirror) Mirror(level, message string) {
	if !m.Enabled() {
		return
	}
	switch level {
	case "error":
		m.logger.Error(message)
	case "warn":
		m.logger.Warn(message)
	case "info":
		m.logger.Info(message)
	default:
		m.logger.Debug(message)
	}
}
