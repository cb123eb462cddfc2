// Package middleware provides the HTTP middleware of the execution service.
//
// Always installed:
//   - RequestID: tags each request and echoes X-Request-ID
//   - Recovery: converts panics into {"ok":false,...} JSON 500 responses
//
// Optional, off by default so unmatched requests always end in the 404 route:
//   - CORS: cross-origin access with exposed tracing headers
//   - RateLimit: per-IP token bucket, idle clients evicted
//   - GlobalRateLimit: one bucket for the whole process
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(logger))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
