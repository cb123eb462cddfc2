/*
Package monitoring provides Prometheus metrics for the execution service.

# Overview

Metrics are registered on a per-instance registry rather than the global
default, so tests and embedded servers can create as many collectors as they
need. The registry is exposed on its own listener (METRICS_ADDR), never on the
public router.

# Metrics

  - jsrun_http_requests_total, jsrun_http_request_duration_seconds,
    jsrun_http_request_size_bytes
  - jsrun_executions_total{status}, jsrun_execution_duration_seconds{status}
  - jsrun_console_records_total{level}
  - jsrun_module_loads_total{kind,status}
  - jsrun_uptime_seconds

# Usage

	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	router.Use(monitoring.Middleware(metrics))
	go http.ListenAndServe(cfg.Metrics.Addr, metrics.Handler())

Metrics also satisfies the sandbox observer interface, so it can be handed
straight to the executor.
*/
package monitoring
