package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"poolhttpd/internal/chaos"
	"poolhttpd/internal/client"
	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"
	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/server"
)

// Config はシナリオの設定
type Config struct {
	Name          string        // シナリオ名
	Description   string        // 説明
	Duration      time.Duration // 実行時間
	ServerWorkers int           // サーバーのワーカー数

	// クライアント設定
	Concurrency int      // 並行数
	Paths       []string // リクエストするパス

	// カオス設定
	EnableChaos   bool               // カオス注入を有効化
	ChaosInterval time.Duration      // 攻撃間隔
	ChaosTargets  int                // 1回の攻撃で狙うジョブ数
	AttackTypes   []chaos.AttackType // 有効な攻撃タイプ
	DelayDuration time.Duration      // Delay攻撃の遅延
	SuspendTime   time.Duration      // Suspend攻撃の占有時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:          "default",
		Description:   "Default scenario",
		Duration:      10 * time.Second,
		ServerWorkers: 4,
		Concurrency:   10,
		Paths:         []string{"/"},
		EnableChaos:   true,
		ChaosInterval: 2 * time.Second,
		ChaosTargets:  1,
		AttackTypes:   []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay},
		DelayDuration: 100 * time.Millisecond,
		SuspendTime:   5 * time.Second,
	}
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration

	// クライアント側メトリクス
	TotalRequests   uint64
	SuccessRequests uint64
	FailedRequests  uint64
	ErrorRate       float64
	AvgLatency      time.Duration
	P99Latency      time.Duration
	StatusCounts    map[int]uint64

	// サーバー側メトリクス
	ServerResponses uint64
	ServerFailures  uint64

	// カオス統計
	TotalAttacks  uint64
	AttacksByType map[string]uint64

	// ワーカー状態（停止前）
	Workers        int
	RunningWorkers int
}

// Engine はシナリオ実行エンジン
// 同じプロセス内でサーバーを起動し、負荷と障害を同時にかける
type Engine struct {
	config   Config
	source   docroot.Source
	eventBus *events.Bus

	server *server.Server
	client *client.Client
	monkey *chaos.Monkey
	served chan struct{}

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する。source はサーバーのドキュメントルート
func New(config Config, source docroot.Source) *Engine {
	return &Engine{
		config: config,
		source: source,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// Run はシナリオを実行する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
	}

	// セットアップ
	if err := e.setup(ctx); err != nil {
		e.teardown()
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	defer e.teardown()

	// シナリオ実行
	scenarioCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.runScenario(scenarioCtx)

	// 結果収集
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// setup はサーバー、クライアント、ChaosMonkey を用意する
func (e *Engine) setup(ctx context.Context) error {
	e.server, e.client, e.monkey, e.served = nil, nil, nil, nil

	cfg := config.Default()
	cfg.Port = "0"
	if e.config.ServerWorkers > 0 {
		cfg.Workers = e.config.ServerWorkers
	}
	cfg.LingerTimeout = 50 * time.Millisecond

	var opts []server.Option
	if e.eventBus != nil {
		opts = append(opts, server.WithBus(e.eventBus))
	}

	if e.config.EnableChaos {
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		chaosConfig.AttackTypes = e.config.AttackTypes
		if e.config.DelayDuration > 0 {
			chaosConfig.DelayDuration = e.config.DelayDuration
		}
		if e.config.SuspendTime > 0 {
			chaosConfig.SuspendTime = e.config.SuspendTime
		}
		e.monkey = chaos.New(chaosConfig)
		if e.eventBus != nil {
			e.monkey.SetEventBus(e.eventBus)
		}
		opts = append(opts, server.WithJobWrapper(e.monkey.Wrap))
	}

	srv, err := server.New(&cfg, e.source, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	e.server = srv
	if err := srv.Listen(); err != nil {
		return err
	}

	e.served = make(chan struct{})
	go func() {
		defer close(e.served)
		if err := srv.Serve(ctx); err != nil {
			logger.Error("", "Serve failed: %v", err)
		}
	}()

	clientConfig := client.DefaultConfig()
	clientConfig.Addr = srv.Addr()
	clientConfig.Concurrency = e.config.Concurrency
	if len(e.config.Paths) > 0 {
		clientConfig.Paths = e.config.Paths
	}
	cl, err := client.New(clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	e.client = cl

	return nil
}

// teardown はシナリオ実行後のクリーンアップ
func (e *Engine) teardown() {
	if e.client != nil {
		e.client.Stop()
	}
	if e.monkey != nil {
		e.monkey.Stop()
	}
	if e.server != nil {
		e.server.Shutdown()
	}
	if e.served != nil {
		<-e.served
	}
}

// runScenario はシナリオのメイン処理
func (e *Engine) runScenario(ctx context.Context) {
	e.client.Start(ctx)

	if e.monkey != nil {
		e.monkey.Start(ctx, e.server.Pool())
	}

	<-ctx.Done()

	logger.Info("", "Scenario duration completed, stopping components...")
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	snapshot := e.client.Metrics().Snapshot()
	result.TotalRequests = snapshot.TotalRequests
	result.SuccessRequests = snapshot.SuccessRequests
	result.FailedRequests = snapshot.FailedRequests
	result.ErrorRate = snapshot.ErrorRate
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.StatusCounts = snapshot.StatusCounts

	serverMetrics := e.server.Metrics()
	result.ServerResponses = serverMetrics.SuccessRequests()
	result.ServerFailures = serverMetrics.FailedRequests()

	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.TotalAttacks = stats.TotalAttacks
		result.AttacksByType = stats.ByType
	}

	pool := e.server.Pool()
	result.Workers = pool.NumWorkers()
	result.RunningWorkers = pool.Running()
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

TRAFFIC METRICS
---------------
  Total Requests:   %d
  Success:          %d
  Failed:           %d
  Error Rate:       %.2f%%
  Avg Latency:      %v
  P99 Latency:      %v

SERVER
------
  Responses:        %d
  Failed Conns:     %d
  Workers:          %d/%d running

CHAOS STATISTICS
----------------
  Total Attacks:    %d
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.TotalRequests,
		r.SuccessRequests,
		r.FailedRequests,
		r.ErrorRate*100,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.ServerResponses,
		r.ServerFailures,
		r.RunningWorkers,
		r.Workers,
		r.TotalAttacks,
	)

	attacks := make([]string, 0, len(r.AttacksByType))
	for name := range r.AttacksByType {
		attacks = append(attacks, name)
	}
	sort.Strings(attacks)
	for _, name := range attacks {
		report += fmt.Sprintf("  %-18s%d\n", name+":", r.AttacksByType[name])
	}

	report += "\nSTATUS CODES\n------------\n"
	codes := make([]int, 0, len(r.StatusCounts))
	for code := range r.StatusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		report += fmt.Sprintf("  %-18d%d\n", code, r.StatusCounts[code])
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// Metrics はクライアントメトリクスを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil
	}
	snapshot := e.client.Metrics().Snapshot()
	return &snapshot
}
