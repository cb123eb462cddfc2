package logging

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Go runs fn on a new goroutine. A panic in fn is logged with its stack and
// swallowed, so background work cannot take the process down.
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs a recovered panic. It only works when deferred directly:
//
//	defer logging.Recover(logger, "span-collector")
func Recover(logger *zap.Logger, name string) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Error("Recovered panic in background goroutine",
		zap.String("goroutine", name),
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()),
	)
}
