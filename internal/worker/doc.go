// Package worker provides a fixed-size goroutine pool fed by one shared,
// unbounded FIFO queue.
//
// The Pool spawns all of its workers at construction. Each worker competes
// for the next message on the queue; the queue mutex is held only while a
// message is taken, never while a job runs, so a slow job does not stop
// other workers from picking up work.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(4) // 4 workers
//	if err != nil {
//	    return err // size < 1
//	}
//	defer pool.Stop()
//
//	for i := 0; i < 100; i++ {
//	    pool.Submit(func() {
//	        // do work
//	    })
//	}
//
// # Hooks
//
// Use NewPoolWithConfig to observe the pool:
//
//	config := worker.PoolConfig{
//	    NumWorkers: 8,
//	    Hooks: worker.Hooks{
//	        OnFinish: func(id int, d time.Duration) { ... },
//	    },
//	}
//	pool, err := worker.NewPoolWithConfig(config)
//
// # Graceful Shutdown
//
// Stop sends one terminate message per worker behind every job already
// queued, then joins the workers in id order. In-flight and queued jobs run
// to completion; Submit returns false once Stop has begun. A panicking job
// is recovered and logged, and its worker keeps serving.
package worker
