package worker

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"poolhttpd/internal/logger"
)

// State はワーカーの状態を表す
type State int32

const (
	StateIdle State = iota
	StateBusy
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Hooks はプールのライフサイクルを観測するコールバック
// いずれも nil でよい。OnStart/OnFinish/OnPanic/OnExit はワーカーのゴルーチン上で呼ばれる
type Hooks struct {
	OnSubmit func()
	OnStart  func(workerID int)
	OnFinish func(workerID int, elapsed time.Duration)
	OnPanic  func(workerID int, recovered any)
	OnExit   func(workerID int)
}

// WorkerInfo はワーカー状態のスナップショット
type WorkerInfo struct {
	ID       int    `json:"id"`
	State    string `json:"state"`
	Executed uint64 `json:"executed"`
}

// Worker は共有キューからメッセージを取り出して実行する
type Worker struct {
	id    int
	queue *queue
	hooks *Hooks

	state    atomic.Int32
	executed atomic.Uint64
	done     chan struct{}
}

// newWorker はワーカーを作成し、ゴルーチンを起動する
func newWorker(id int, q *queue, hooks *Hooks) *Worker {
	w := &Worker{
		id:    id,
		queue: q,
		hooks: hooks,
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// ID はワーカーIDを返す
func (w *Worker) ID() int {
	return w.id
}

// State は現在の状態を返す
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Executed は実行したジョブ数を返す
func (w *Worker) Executed() uint64 {
	return w.executed.Load()
}

// Info はスナップショットを返す
func (w *Worker) Info() WorkerInfo {
	return WorkerInfo{
		ID:       w.id,
		State:    w.State().String(),
		Executed: w.Executed(),
	}
}

func (w *Worker) source() string {
	return fmt.Sprintf("worker-%d", w.id)
}

// run はワーカーのメインループ
// キューのロックは pop の間だけ保持し、ジョブ実行中は保持しない
func (w *Worker) run() {
	defer close(w.done)

	for {
		msg := w.queue.pop()
		switch msg.kind {
		case msgNewJob:
			logger.Debug(w.source(), "Got a job, executing")
			w.execute(msg.job)
		case msgTerminate:
			w.state.Store(int32(StateTerminated))
			logger.Debug(w.source(), "Terminating")
			if w.hooks.OnExit != nil {
				w.hooks.OnExit(w.id)
			}
			return
		}
	}
}

// execute はジョブを同期的に実行する
// ジョブ内の panic はここで回収し、ワーカーは停止しない
func (w *Worker) execute(job Job) {
	w.state.Store(int32(StateBusy))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(w.source(), "Job panicked: %v\n%s", r, debug.Stack())
			if w.hooks.OnPanic != nil {
				w.hooks.OnPanic(w.id, r)
			}
		}
		w.executed.Add(1)
		if w.hooks.OnFinish != nil {
			w.hooks.OnFinish(w.id, time.Since(start))
		}
		w.state.Store(int32(StateIdle))
	}()

	if w.hooks.OnStart != nil {
		w.hooks.OnStart(w.id)
	}
	job()
}

// join はワーカーの終了を待つ
func (w *Worker) join() {
	<-w.done
}
