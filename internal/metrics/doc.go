// Package metrics provides request metrics collection and reporting.
//
// Metrics collects statistics about response latency, success/failure rates,
// status codes, and throughput (RPS). A response with a status code below
// 400 counts as a success. It is thread-safe and optimized for
// high-concurrency use.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	// ... serve a connection ...
//	m.RecordResponse(200, time.Since(start))
//
//	fmt.Println(m.Snapshot())
//
// # Configuration
//
// Use NewWithConfig for custom settings:
//
//	config := metrics.Config{
//	    MaxLatencySamples: 5000, // More samples for P99 accuracy
//	}
//	m := metrics.NewWithConfig(config)
//
// # Prometheus
//
// Collectors exposes the same signals, plus worker pool counters and gauges,
// as Prometheus collectors registered on a caller-supplied registry:
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollectors("poolhttpd", reg)
//	c.WatchPool(pool.QueueSize, pool.Busy, pool.Running)
//
// # Thread Safety
//
// All operations use atomic counters or a RWMutex and are safe for
// concurrent access.
package metrics
