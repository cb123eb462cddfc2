// Package server assembles the jsrun HTTP service.
//
// New wires, in order: logger, metrics, tracer, module resolver, snippet
// executor, and a gin router carrying
//
//	RequestID -> Recovery -> tracing -> metrics -> [CORS] -> [rate limit]
//
// in front of GET /health, POST /run and a catch-all 404. Method mismatches,
// trailing slashes and unknown paths are all plain 404s. The router is
// optionally wrapped in gzip compression.
//
// Prometheus metrics are served on their own listener (METRICS_ADDR) so the
// public route table stays exactly the three outcomes above.
//
// Lifecycle:
//
//	s, err := server.New(cfg)
//	go s.Run()
//	...
//	s.Shutdown(ctx) // drains in-flight requests, flushes spans
package server
