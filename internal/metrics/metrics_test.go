package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := New()

	if m.TotalRequests() != 0 {
		t.Errorf("expected 0 total requests, got %d", m.TotalRequests())
	}
	if m.SuccessRequests() != 0 {
		t.Errorf("expected 0 success requests, got %d", m.SuccessRequests())
	}
}

func TestMetricsRecordSuccess(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	if m.TotalRequests() != 3 {
		t.Errorf("expected 3 total requests, got %d", m.TotalRequests())
	}
	if m.SuccessRequests() != 3 {
		t.Errorf("expected 3 success requests, got %d", m.SuccessRequests())
	}
	if m.FailedRequests() != 0 {
		t.Errorf("expected 0 failed requests, got %d", m.FailedRequests())
	}
}

func TestMetricsRecordFailure(t *testing.T) {
	m := New()

	m.RecordFailure(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)

	if m.TotalRequests() != 2 {
		t.Errorf("expected 2 total requests, got %d", m.TotalRequests())
	}
	if m.FailedRequests() != 1 {
		t.Errorf("expected 1 failed request, got %d", m.FailedRequests())
	}
}

func TestMetricsAverageLatency(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	avg := m.AverageLatency()
	expected := 20 * time.Millisecond

	if avg != expected {
		t.Errorf("expected average latency %v, got %v", expected, avg)
	}
}

func TestMetricsErrorRate(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(10 * time.Millisecond)

	rate := m.ErrorRate()
	if rate != 0.5 {
		t.Errorf("expected error rate 0.5, got %f", rate)
	}
}

func TestMetricsP99Latency(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	p99 := m.P99Latency()
	// P99 should be around 99ms or 100ms
	if p99 < 99*time.Millisecond || p99 > 100*time.Millisecond {
		t.Errorf("expected P99 around 99-100ms, got %v", p99)
	}
}

func TestMetricsReset(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)

	m.Reset()

	// Window metrics should be reset
	if m.RPS() != 0 {
		t.Errorf("expected RPS 0 after reset, got %f", m.RPS())
	}

	// But total should remain
	if m.TotalRequests() != 2 {
		t.Errorf("expected total 2 after reset, got %d", m.TotalRequests())
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordSuccess(time.Millisecond)
			}
		}()
	}

	wg.Wait()

	if m.TotalRequests() != 10000 {
		t.Errorf("expected 10000 requests, got %d", m.TotalRequests())
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(20 * time.Millisecond)

	snap := m.Snapshot()

	if snap.TotalRequests != 2 {
		t.Errorf("expected 2 total, got %d", snap.TotalRequests)
	}
	if snap.SuccessRequests != 1 {
		t.Errorf("expected 1 success, got %d", snap.SuccessRequests)
	}
	if snap.FailedRequests != 1 {
		t.Errorf("expected 1 failed, got %d", snap.FailedRequests)
	}
}

func TestMetricsRecordResponse(t *testing.T) {
	m := New()

	m.RecordResponse(200, 5*time.Millisecond)
	m.RecordResponse(200, 5*time.Millisecond)
	m.RecordResponse(404, 5*time.Millisecond)
	m.RecordResponse(405, 5*time.Millisecond)

	if m.SuccessRequests() != 2 {
		t.Errorf("expected 2 success, got %d", m.SuccessRequests())
	}
	if m.FailedRequests() != 2 {
		t.Errorf("expected 2 failed, got %d", m.FailedRequests())
	}

	counts := m.StatusCounts()
	if counts[200] != 2 || counts[404] != 1 || counts[405] != 1 {
		t.Errorf("unexpected status counts: %v", counts)
	}

	// Returned map is a copy
	counts[200] = 99
	if m.StatusCounts()[200] != 2 {
		t.Error("StatusCounts must return a copy")
	}

	snap := m.Snapshot()
	if snap.StatusCounts[404] != 1 {
		t.Errorf("expected snapshot to carry status counts, got %v", snap.StatusCounts)
	}
	if !strings.Contains(snap.String(), "requests=4") {
		t.Errorf("unexpected summary: %s", snap.String())
	}
}

func TestNewWithConfigSampleLimit(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 10})

	for i := 1; i <= 50; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	// Only the first 10 samples are kept for P99
	if p99 := m.P99Latency(); p99 != 10*time.Millisecond {
		t.Errorf("expected P99 10ms from limited samples, got %v", p99)
	}

	if NewWithConfig(Config{}).maxLatencySamples != DefaultConfig().MaxLatencySamples {
		t.Error("expected default sample limit for zero config")
	}
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors("test", reg)

	c.JobsSubmitted.Inc()
	c.JobsSubmitted.Inc()
	c.ObserveJob(3 * time.Millisecond)
	c.ObserveResponse(200, time.Millisecond)
	c.ObserveResponse(404, time.Millisecond)
	c.ObserveResponse(404, time.Millisecond)

	if got := testutil.ToFloat64(c.JobsSubmitted); got != 2 {
		t.Errorf("expected 2 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(c.JobsCompleted); got != 1 {
		t.Errorf("expected 1 completed, got %v", got)
	}
	if got := testutil.ToFloat64(c.Responses.WithLabelValues("404")); got != 2 {
		t.Errorf("expected 2 not-found responses, got %v", got)
	}

	queue := 7
	c.WatchPool(func() int { return queue }, func() int { return 1 }, func() int { return 4 })

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "test_pool_queue_depth" {
			found = true
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 7 {
				t.Errorf("expected queue depth 7, got %v", v)
			}
		}
	}
	if !found {
		t.Error("expected test_pool_queue_depth to be registered")
	}
}
