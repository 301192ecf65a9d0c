package worker

import (
	"errors"
	"sync"
	"sync/atomic"

	"poolhttpd/internal/logger"
)

// ErrInvalidSize はワーカー数が 1 未満の場合に返される
var ErrInvalidSize = errors.New("worker: pool size must be at least 1")

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int   // ワーカー数（1以上）
	Hooks      Hooks // ライフサイクルの観測用
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 4,
	}
}

// Pool は固定数のワーカーと共有キューを管理する
type Pool struct {
	queue   *queue
	workers []*Worker
	hooks   *Hooks

	stopOnce sync.Once
	stopping atomic.Bool
}

// NewPool は指定数のワーカーを持つプールを作成する
func NewPool(numWorkers int) (*Pool, error) {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してプールを作成する
// ワーカーは作成時点で全て起動する
func NewPoolWithConfig(config PoolConfig) (*Pool, error) {
	if config.NumWorkers < 1 {
		return nil, ErrInvalidSize
	}

	hooks := config.Hooks
	p := &Pool{
		queue:   newQueue(),
		workers: make([]*Worker, 0, config.NumWorkers),
		hooks:   &hooks,
	}
	for i := range config.NumWorkers {
		p.workers = append(p.workers, newWorker(i, p.queue, p.hooks))
	}

	logger.Info("", "WorkerPool started with %d workers", config.NumWorkers)
	return p, nil
}

// Submit はジョブをキューに追加する
// ワーカーの空きを待たずに返る。停止処理の開始後は false を返し、ジョブは実行されない
func (p *Pool) Submit(job Job) bool {
	if job == nil || p.stopping.Load() {
		return false
	}
	if !p.queue.push(newJobMessage(job)) {
		return false
	}
	if p.hooks.OnSubmit != nil {
		p.hooks.OnSubmit()
	}
	return true
}

// Stop はワーカー数と同じ数の終了メッセージを送り、全ワーカーの終了を待つ
// 先に投入済みのジョブは全て実行される。2回目以降の呼び出しは何もしない
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)

		terminates := make([]message, len(p.workers))
		for i := range terminates {
			terminates[i] = terminateMessage()
		}
		p.queue.closeWith(terminates...)

		for _, w := range p.workers {
			logger.Info("", "Shutting down worker %d", w.id)
			w.join()
		}

		logger.Info("", "WorkerPool stopped")
	})
}

// Stopped は停止処理が開始済みかどうかを返す
func (p *Pool) Stopped() bool {
	return p.stopping.Load()
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// QueueSize は未取得のメッセージ数を返す
func (p *Pool) QueueSize() int {
	return p.queue.len()
}

// Running は終了していないワーカー数を返す
func (p *Pool) Running() int {
	n := 0
	for _, w := range p.workers {
		if w.State() != StateTerminated {
			n++
		}
	}
	return n
}

// Busy はジョブ実行中のワーカー数を返す
func (p *Pool) Busy() int {
	n := 0
	for _, w := range p.workers {
		if w.State() == StateBusy {
			n++
		}
	}
	return n
}

// Workers は全ワーカーのスナップショットを ID 順に返す
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.Info())
	}
	return infos
}
