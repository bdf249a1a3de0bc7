// Package metrics aggregates per-request latency and outcome for a load run.
//
//	collector := metrics.NewCollector()
//	collector.AttachTransport(clientMetrics)
//	collector.Start()
//	// ... harness calls collector.RecordRequest(latency, err) per request
//	stats := collector.Stats(collector.Elapsed())
//
// Latency percentiles come from an HDR histogram (1µs to 60s, 3 significant
// figures). Failures are grouped by [Classify], which maps the sentinel errors
// of the bridge, framer and transport packages to short labels such as
// "Truncated response" or "Timeout".
package metrics
