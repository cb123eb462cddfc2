// Package client calls a running jsrun server.
//
// Run posts a snippet to /run through a circuit breaker and an optional rate
// limiter. Answers of 429 and 503 are retried since the snippet never ran;
// anything else is returned as is. A snippet that throws is a normal
// Response with OK false, and neither it nor a rejected request counts
// against the breaker.
//
// WaitHealthy polls /health with retryablehttp until the server is up.
package client
