package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors は Prometheus 向けのコレクタ群
type Collectors struct {
	JobsSubmitted   prometheus.Counter
	JobsCompleted   prometheus.Counter
	JobPanics       prometheus.Counter
	JobLatency      prometheus.Histogram
	Responses       *prometheus.CounterVec
	ResponseLatency prometheus.Histogram

	registerer prometheus.Registerer
	namespace  string
}

// NewCollectors はコレクタを作成して reg に登録する
func NewCollectors(namespace string, reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the worker pool",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs the workers ran to completion",
		}),
		JobPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_panics_total",
			Help:      "Total number of jobs that panicked and were recovered",
		}),
		JobLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "Total number of responses by status code",
		}, []string{"code"}),
		ResponseLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of time from accept to response written",
			Buckets:   prometheus.DefBuckets,
		}),
		registerer: reg,
		namespace:  namespace,
	}
	reg.MustRegister(
		c.JobsSubmitted,
		c.JobsCompleted,
		c.JobPanics,
		c.JobLatency,
		c.Responses,
		c.ResponseLatency,
	)
	return c
}

// ObserveResponse は応答を記録する
func (c *Collectors) ObserveResponse(status int, latency time.Duration) {
	c.Responses.WithLabelValues(strconv.Itoa(status)).Inc()
	c.ResponseLatency.Observe(latency.Seconds())
}

// ObserveJob はジョブの実行時間を記録する
func (c *Collectors) ObserveJob(elapsed time.Duration) {
	c.JobsCompleted.Inc()
	c.JobLatency.Observe(elapsed.Seconds())
}

// WatchPool はプールの状態を読み出すゲージを登録する
func (c *Collectors) WatchPool(queueSize, busy, running func() int) {
	gauge := func(name, help string, f func() int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(f()) })
	}
	c.registerer.MustRegister(
		gauge("queue_depth", "Messages waiting in the pool queue", queueSize),
		gauge("busy_workers", "Workers currently running a job", busy),
		gauge("running_workers", "Workers that have not terminated", running),
	)
}
