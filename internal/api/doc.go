// Package api serves the optional admin endpoints of a running server.
//
// Routes (gorilla/mux):
//
//	GET /api/status   pool size, live and busy workers, queue depth, uptime
//	GET /api/workers  per-worker state and executed job count
//	GET /api/metrics  request counters, latency and status code breakdown
//	GET /metrics      Prometheus exposition of the server's registry
//	    /ws           websocket feed: bus events plus a status message every second
package api
