// Package logging provides structured logging using uber/zap.
//
// Two encoder modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Verbose mode lowers the level to debug and turns on the console mirror,
// which copies every captured snippet console record to the process's own
// output: log/info records to stdout, warn/error records to stderr.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "3210"))
//
//	mirror := logging.NewConsoleMirror(cfg.Logging.Verbose)
//	mirror.Mirror("warn", "disk almost full")
package logging
