package chaos

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"poolhttpd/internal/events"
	"poolhttpd/internal/worker"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Interval != 5*time.Second {
		t.Errorf("expected interval 5s, got %v", config.Interval)
	}
	if config.TargetCount != 1 {
		t.Errorf("expected target count 1, got %d", config.TargetCount)
	}
	if len(config.AttackTypes) != 3 {
		t.Errorf("expected 3 attack types, got %d", len(config.AttackTypes))
	}
}

func TestAttackTypeString(t *testing.T) {
	tests := []struct {
		attack   AttackType
		expected string
	}{
		{AttackKill, "kill"},
		{AttackSuspend, "suspend"},
		{AttackDelay, "delay"},
		{AttackType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.attack.String(); got != tt.expected {
			t.Errorf("AttackType(%d).String() = %s, want %s", tt.attack, got, tt.expected)
		}
	}
}

func TestParseAttackTypes(t *testing.T) {
	types, err := ParseAttackTypes([]string{"delay", "kill", "suspend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []AttackType{AttackDelay, AttackKill, AttackSuspend}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types[%d] = %v, want %v", i, types[i], want[i])
		}
	}

	if _, err := ParseAttackTypes([]string{"delay", "nuke"}); err == nil {
		t.Error("expected error for unknown attack")
	}
}

func TestNewMonkey(t *testing.T) {
	monkey := New(DefaultConfig())

	if monkey == nil {
		t.Fatal("expected non-nil monkey")
	}
	if monkey.IsRunning() {
		t.Error("expected monkey to not be running initially")
	}
	if monkey.AttackCount() != 0 {
		t.Errorf("expected 0 attacks, got %d", monkey.AttackCount())
	}
}

func TestWrapWithoutAttack(t *testing.T) {
	monkey := New(DefaultConfig())

	var ran atomic.Int32
	monkey.Wrap(func() { ran.Add(1) })()

	if ran.Load() != 1 {
		t.Errorf("expected job to run once, ran %d times", ran.Load())
	}
	if monkey.AttackCount() != 0 {
		t.Errorf("expected no attacks, got %d", monkey.AttackCount())
	}
}

func TestWrapDelay(t *testing.T) {
	config := DefaultConfig()
	config.DelayDuration = 50 * time.Millisecond
	monkey := New(config)

	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe()
	monkey.SetEventBus(bus)

	monkey.executeAttack(AttackDelay)

	var ran atomic.Bool
	start := time.Now()
	monkey.Wrap(func() { ran.Store(true) })()
	elapsed := time.Since(start)

	if !ran.Load() {
		t.Fatal("expected delayed job to run")
	}
	if elapsed < config.DelayDuration {
		t.Errorf("expected at least %v delay, got %v", config.DelayDuration, elapsed)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.EventChaosAttack || ev.Data.Attack != "delay" || ev.Data.DelayMs != 50 {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected chaos attack event")
	}

	// 攻撃は1回だけ消費される
	start = time.Now()
	monkey.Wrap(func() {})()
	if time.Since(start) >= config.DelayDuration {
		t.Error("second job should not be delayed")
	}
	if stats := monkey.Stats(); stats.TotalAttacks != 1 || stats.ByType["delay"] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestKilledJobKeepsWorkerAlive(t *testing.T) {
	var panics atomic.Int32
	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: 1,
		Hooks: worker.Hooks{
			OnPanic: func(_ int, recovered any) {
				if _, ok := recovered.(KilledJob); ok {
					panics.Add(1)
				}
			},
		},
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Stop()

	monkey := New(DefaultConfig())
	monkey.executeAttack(AttackKill)

	var wg sync.WaitGroup
	var served atomic.Int32
	for range 2 {
		wg.Add(1)
		pool.Submit(monkey.Wrap(func() {
			defer wg.Done()
			served.Add(1)
		}))
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for panics.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if served.Load() != 2 {
		t.Errorf("expected both jobs to be served, got %d", served.Load())
	}
	if panics.Load() != 1 {
		t.Errorf("expected 1 killed job, got %d", panics.Load())
	}
	if pool.Running() != 1 {
		t.Errorf("expected worker to survive, running = %d", pool.Running())
	}
	if monkey.Stats().ByType["kill"] != 1 {
		t.Errorf("expected 1 kill attack, got %+v", monkey.Stats())
	}
}

func TestSuspendOccupiesWorker(t *testing.T) {
	pool, err := worker.NewPool(2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Stop()

	config := DefaultConfig()
	config.Interval = time.Hour
	config.SuspendTime = time.Hour
	monkey := New(config)
	monkey.Start(context.Background(), pool)

	monkey.executeAttack(AttackSuspend)

	deadline := time.Now().Add(time.Second)
	for pool.Busy() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pool.Busy() != 1 {
		t.Fatalf("expected 1 busy worker, got %d", pool.Busy())
	}

	// 残りのワーカーは処理を続ける
	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job was not served while a worker was suspended")
	}

	// Stop で占有が解除される
	monkey.Stop()
	deadline = time.Now().Add(time.Second)
	for pool.Busy() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pool.Busy() != 0 {
		t.Errorf("expected suspended worker to be released, busy = %d", pool.Busy())
	}
	if monkey.Stats().ByType["suspend"] != 1 {
		t.Errorf("expected 1 suspend attack, got %+v", monkey.Stats())
	}
}

func TestMonkeyStartStop(t *testing.T) {
	pool, err := worker.NewPool(2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Stop()

	config := DefaultConfig()
	config.Interval = 20 * time.Millisecond
	config.AttackTypes = []AttackType{AttackSuspend}
	config.SuspendTime = 10 * time.Millisecond

	monkey := New(config)
	monkey.Start(context.Background(), pool)

	if !monkey.IsRunning() {
		t.Error("expected monkey to be running after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for monkey.AttackCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	monkey.Stop()
	monkey.Stop()

	if monkey.IsRunning() {
		t.Error("expected monkey to stop")
	}
	if monkey.AttackCount() == 0 {
		t.Error("expected at least one attack")
	}
	if monkey.LastAttack().IsZero() {
		t.Error("expected last attack time to be set")
	}
}

func TestArmedAttacksAreBounded(t *testing.T) {
	monkey := New(DefaultConfig())
	for range maxArmed + 10 {
		monkey.executeAttack(AttackDelay)
	}
	if got := monkey.Stats().Armed; got != maxArmed {
		t.Errorf("armed = %d, want %d", got, maxArmed)
	}
}
