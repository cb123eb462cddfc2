// Package main is the entry point for the jsrun snippet server.
//
// The server executes JavaScript snippets posted to /run, each in a fresh
// isolated context, and answers GET /health.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Defaults: 0.0.0.0:3210, ./examples as the module base
//	./server
//
//	# Serial execution with a five second limit and metrics on :9090
//	./server -max-concurrent 1 -timeout 5s -metrics :9090
//
//	# Echo snippet console output to the terminal
//	VERBOSE=1 ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown bounded by SHUTDOWN_TIMEOUT
package main
