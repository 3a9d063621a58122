/*
Package monitoring provides Prometheus metrics for sandkasse runtimes.

# Metrics

  - sandkasse_evals_total{kind,status}
  - sandkasse_eval_duration_seconds{kind}
  - sandkasse_callbacks_total{status}
  - sandkasse_callback_duration_seconds
  - sandkasse_sessions_active
  - sandkasse_boundary_bytes_total{direction}

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	timer := monitoring.NewTimer()
	// ... perform eval ...
	metrics.RecordEval("int", err, timer.Elapsed())

The registry can be exposed with promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).
*/
package monitoring
