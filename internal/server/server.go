package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"
	"poolhttpd/internal/events"
	"poolhttpd/internal/httpd"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Namespace は Prometheus メトリクスの名前空間
const Namespace = "poolhttpd"

const maxAcceptDelay = time.Second

// ErrNotListening は Listen 前に Serve が呼ばれた場合
var ErrNotListening = errors.New("server: not listening")

// Option は Server の生成オプション
type Option func(*options)

type options struct {
	registry *prometheus.Registry
	bus      *events.Bus
	wrap     func(worker.Job) worker.Job
}

// WithRegistry はコレクタの登録先を指定する
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithBus はイベントの配信先を指定する。指定したバスは Shutdown で閉じない
func WithBus(bus *events.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithJobWrapper は接続ジョブをプールに投入する前に wrap で包む
func WithJobWrapper(wrap func(worker.Job) worker.Job) Option {
	return func(o *options) {
		o.wrap = wrap
	}
}

// Server は受け付けた接続をワーカープールに投入する
type Server struct {
	config     *config.Config
	source     docroot.Source
	pool       *worker.Pool
	handler    *httpd.Handler
	metrics    *metrics.Metrics
	collectors *metrics.Collectors
	registry   *prometheus.Registry
	bus        *events.Bus
	ownsBus    bool
	wrap       func(worker.Job) worker.Job
	limiter    *rate.Limiter
	startTime  time.Time

	mu           sync.Mutex
	listener     net.Listener
	closing      atomic.Bool
	shutdownOnce sync.Once
}

// New は Server を作成する。ワーカーはこの時点で起動する
func New(cfg *config.Config, source docroot.Source, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		config:    cfg,
		source:    source,
		metrics:   metrics.New(),
		registry:  o.registry,
		bus:       o.bus,
		wrap:      o.wrap,
		startTime: time.Now(),
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.bus == nil {
		s.bus = events.NewBus()
		s.ownsBus = true
	}
	s.collectors = metrics.NewCollectors(Namespace, s.registry)

	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: cfg.Workers,
		Hooks:      s.hooks(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	s.pool = pool
	s.collectors.WatchPool(pool.QueueSize, pool.Busy, pool.Running)

	s.handler = httpd.NewHandler(cfg, source, s.observe)

	if cfg.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), max(cfg.AcceptBurst, 1))
	}

	return s, nil
}

func (s *Server) hooks() worker.Hooks {
	return worker.Hooks{
		OnSubmit: func() {
			s.collectors.JobsSubmitted.Inc()
		},
		OnFinish: func(_ int, elapsed time.Duration) {
			s.collectors.ObserveJob(elapsed)
		},
		OnPanic: func(workerID int, recovered any) {
			s.collectors.JobPanics.Inc()
			s.bus.Publish(events.NewJobPanicEvent(workerID, recovered))
		},
		OnExit: func(workerID int) {
			s.bus.Publish(events.NewWorkerExitEvent(workerID))
		},
	}
}

// observe は接続ジョブの結果をメトリクスとイベントに反映する
func (s *Server) observe(r httpd.Result) {
	if r.Status == 0 {
		s.metrics.RecordFailure(r.Latency)
		s.bus.Publish(events.NewConnectionFailedEvent(r.ConnID, r.Err))
		return
	}
	s.metrics.RecordResponse(r.Status, r.Latency)
	s.collectors.ObserveResponse(r.Status, r.Latency)
	s.bus.Publish(events.NewRequestServedEvent(r.ConnID, r.Method, r.Path, r.Status, r.Latency))
}

// Listen は 127.0.0.1:<port> で待ち受けを開始する
func (s *Server) Listen() error {
	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("", "Listening on %s (root: %s)", ln.Addr(), s.source.Name())
	s.bus.Publish(events.NewServerStartedEvent(ln.Addr().String()))
	return nil
}

// Serve は ctx がキャンセルされるかリスナーが閉じられるまで接続を受け付ける
// 受け付けた接続は接続ジョブとしてプールに投入し、拒否された場合は閉じる
func (s *Server) Serve(ctx context.Context) error {
	ln := s.getListener()
	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var delay time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			logger.Warn("", "Accept failed: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		job := s.handler.Job(conn)
		if s.wrap != nil {
			job = s.wrap(job)
		}
		if !s.pool.Submit(job) {
			logger.Warn("", "Connection from %s rejected: pool is stopping", conn.RemoteAddr())
			_ = conn.Close()
		}
	}
}

// ListenAndServe は Listen と Serve をまとめて行う
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown はリスナーを閉じ、実行中のジョブを含めてプールの停止を待つ
// 2回目以降の呼び出しは何もしない
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.closing.Store(true)
		logger.Info("", "Shutting down server")
		s.bus.Publish(events.NewServerStoppingEvent())

		if ln := s.getListener(); ln != nil {
			_ = ln.Close()
		}
		s.pool.Stop()

		if s.ownsBus {
			s.bus.Close()
		}
		logger.Info("", "Server stopped")
	})
}

func (s *Server) getListener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

// Addr は待ち受けアドレスを返す。Listen 前は空文字列
func (s *Server) Addr() string {
	if ln := s.getListener(); ln != nil {
		return ln.Addr().String()
	}
	return ""
}

// Config は設定を返す
func (s *Server) Config() *config.Config {
	return s.config
}

// Source はドキュメントルートを返す
func (s *Server) Source() docroot.Source {
	return s.source
}

// Pool はワーカープールを返す
func (s *Server) Pool() *worker.Pool {
	return s.pool
}

// Metrics はリクエストメトリクスを返す
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Registry は Prometheus レジストリを返す
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Bus はイベントバスを返す
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// Uptime は起動からの経過時間を返す
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// ShuttingDown は Shutdown が開始済みかどうかを返す
func (s *Server) ShuttingDown() bool {
	return s.closing.Load()
}
