package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGoRecoversPanic(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	Go(zap.New(core), "worker", func() { panic("worker exploded") })

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Recovered panic in background goroutine").Len() == 1
	}, time.Second, 5*time.Millisecond)

	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "worker", entry.ContextMap()["goroutine"])
	assert.Equal(t, "worker exploded", entry.ContextMap()["panic"])
	assert.Contains(t, entry.ContextMap()["stack"], "goroutine")
}

func TestGoRunsToCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	done := make(chan struct{})

	Go(zap.New(core), "worker", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fn did not run")
	}
	assert.Zero(t, logs.Len())
}

func TestRecoverWithNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover(nil, "nil-logger")
		panic("ignored")
	})
}
