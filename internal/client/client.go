package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/worker"
)

// ErrNoPaths はリクエスト対象のパスが1つも無い場合
var ErrNoPaths = errors.New("client: at least one path is required")

// Config はClientの設定
type Config struct {
	Addr          string        // 接続先（host:port）
	Concurrency   int           // 並行数（0でCPU数）
	Paths         []string      // リクエストするパス（ランダムに選ぶ）
	RequestsLimit uint64        // リクエスト上限（0で無制限）
	Timeout       time.Duration // 1リクエストのタイムアウト
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:8082",
		Concurrency:   0, // CPU数
		Paths:         []string{"/"},
		RequestsLimit: 0,
		Timeout:       5 * time.Second,
	}
}

// Client は負荷生成器
// 並行数と同じ数のワーカーで、それぞれがリクエストを繰り返すループを実行する
// 一度 Stop したClientは再開できない
type Client struct {
	config  Config
	pool    *worker.Pool
	metrics *metrics.Metrics

	issued  atomic.Uint64
	running atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New は新しいClientを作成する
func New(config Config) (*Client, error) {
	if len(config.Paths) == 0 {
		return nil, ErrNoPaths
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.NumCPU()
	}

	pool, err := worker.NewPool(config.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Client{
		config:  config,
		pool:    pool,
		metrics: metrics.New(),
	}, nil
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.stopped.Load() || c.running.Swap(true) {
		return
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	logger.Info("", "Client started (target: %s, concurrency: %d, paths: %d)",
		c.config.Addr, c.pool.NumWorkers(), len(c.config.Paths))

	for range c.pool.NumWorkers() {
		c.wg.Add(1)
		if !c.pool.Submit(c.loop) {
			c.wg.Done()
		}
	}
}

// loop はキャンセルか上限到達までリクエストを送り続ける
func (c *Client) loop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		if limit := c.config.RequestsLimit; limit > 0 && c.issued.Add(1) > limit {
			return
		}
		c.request(c.config.Paths[rand.IntN(len(c.config.Paths))])
	}
}

// request は1回分のリクエストを送り、結果をメトリクスに記録する
func (c *Client) request(path string) {
	ctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := Get(ctx, c.config.Addr, path)
	latency := time.Since(start)

	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		logger.Debug("", "Request %s failed: %v", path, err)
		c.metrics.RecordFailure(latency)
		return
	}
	c.metrics.RecordResponse(resp.Status, latency)
}

// Stop は負荷生成を停止する
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return
	}
	c.stopped.Store(true)

	c.cancel()
	c.wg.Wait()
	c.pool.Stop()

	logger.Info("", "Client stopped")
}

// Metrics はメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する
func (c *Client) RunFor(ctx context.Context, duration time.Duration) *metrics.Snapshot {
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}

// RunRequests は指定数のリクエストを実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	c.config.RequestsLimit = count
	c.Start(ctx)
	c.wg.Wait()
	c.Stop()

	snapshot := c.metrics.Snapshot()
	return &snapshot
}
