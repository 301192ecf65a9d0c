package chaos

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/worker"
)

// maxArmed は消費されずに溜まる攻撃の上限。トラフィックが無い間も増え続けないようにする
const maxArmed = 64

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackKill AttackType = iota
	AttackSuspend
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackKill:
		return "kill"
	case AttackSuspend:
		return "suspend"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParseAttackType は攻撃名を AttackType に変換する
func ParseAttackType(name string) (AttackType, error) {
	switch name {
	case "kill":
		return AttackKill, nil
	case "suspend":
		return AttackSuspend, nil
	case "delay":
		return AttackDelay, nil
	default:
		return 0, fmt.Errorf("unknown attack type: %s", name)
	}
}

// ParseAttackTypes は攻撃名の一覧を変換する
func ParseAttackTypes(names []string) ([]AttackType, error) {
	types := make([]AttackType, 0, len(names))
	for _, name := range names {
		t, err := ParseAttackType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 1回の攻撃で狙うジョブ数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
	SuspendTime   time.Duration // Suspend攻撃でワーカーを占有する時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackKill, AttackSuspend, AttackDelay},
		DelayDuration: 100 * time.Millisecond,
		SuspendTime:   5 * time.Second,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
	Armed        int               `json:"armed"`
}

// Submitter はジョブの投入先（*worker.Pool）
type Submitter interface {
	Submit(job worker.Job) bool
}

// KilledJob は Kill 攻撃で接続ジョブが応答後に起こす panic の値
type KilledJob struct{}

func (KilledJob) String() string { return "chaos: job killed" }

// Monkey は接続ジョブとワーカーに障害を注入する
//
// Kill と Delay は次に Wrap されたジョブが実行される時に消費され、
// Suspend はワーカーを占有するジョブをプールに直接投入する
type Monkey struct {
	config   Config
	eventBus *events.Bus
	pool     Submitter

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	armed        []AttackType
	attackCount  uint64
	attackByType map[AttackType]uint64
	lastAttack   time.Time
}

// New は新しいChaosMonkeyを作成する
func New(config Config) *Monkey {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monkey{
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start はカオス注入を開始する。Suspend 攻撃は pool に投入される
func (m *Monkey) Start(ctx context.Context, pool Submitter) {
	if m.running.Swap(true) {
		return
	}

	m.mu.Lock()
	m.pool = pool
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.attackLoop()

	logger.Info("", "ChaosMonkey started (interval: %v, targets: %d)",
		m.config.Interval, m.config.TargetCount)
}

// Stop はカオス注入を停止する
// 占有中の Suspend ジョブは解放され、未消費の攻撃は捨てられる
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.armed = nil
	total := m.attackCount
	m.mu.Unlock()

	logger.Info("", "ChaosMonkey stopped (total attacks: %d)", total)
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// attack は TargetCount 回分の攻撃を仕掛ける
func (m *Monkey) attack() {
	for range max(m.config.TargetCount, 1) {
		m.executeAttack(m.selectAttackType())
	}

	m.mu.Lock()
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// selectAttackType は攻撃タイプをランダムに選択する
func (m *Monkey) selectAttackType() AttackType {
	if len(m.config.AttackTypes) == 0 {
		return AttackKill
	}
	return m.config.AttackTypes[rand.IntN(len(m.config.AttackTypes))]
}

// executeAttack は指定された攻撃を実行、または次のジョブに仕掛ける
func (m *Monkey) executeAttack(attackType AttackType) {
	switch attackType {
	case AttackSuspend:
		m.attackSuspend()
	case AttackKill, AttackDelay:
		m.arm(attackType)
	}
}

// arm は次に実行されるジョブへの攻撃を予約する
func (m *Monkey) arm(attackType AttackType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.armed) >= maxArmed {
		return
	}
	m.armed = append(m.armed, attackType)
}

// take は予約済みの攻撃を1つ取り出す
func (m *Monkey) take() (AttackType, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.armed) == 0 {
		return 0, false
	}
	attackType := m.armed[0]
	m.armed = m.armed[1:]
	return attackType, true
}

func (m *Monkey) record(attackType AttackType) {
	m.mu.Lock()
	m.attackCount++
	m.attackByType[attackType]++
	m.mu.Unlock()
}

// Wrap は job に予約済みの攻撃を適用するジョブを返す
// server.WithJobWrapper に渡して使う
func (m *Monkey) Wrap(job worker.Job) worker.Job {
	return func() {
		attackType, ok := m.take()
		if !ok {
			job()
			return
		}

		switch attackType {
		case AttackDelay:
			m.attackDelay()
			job()
		case AttackKill:
			// 接続には応答してから落ちる。ワーカーが回復して次のジョブを拾えることを確かめる
			job()
			m.record(AttackKill)
			logger.Warn("", "ChaosMonkey: killing job after response")
			m.publishEvent(events.NewChaosAttackEvent(AttackKill.String()))
			panic(KilledJob{})
		default:
			job()
		}
	}
}

// attackDelay は接続ジョブの開始を遅らせる
func (m *Monkey) attackDelay() {
	delay := m.config.DelayDuration
	m.record(AttackDelay)
	logger.Warn("", "ChaosMonkey: injected %v delay into job", delay)
	m.publishEvent(events.NewChaosAttackEventWithDelay(AttackDelay.String(), delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.done():
	}
}

// attackSuspend は SuspendTime の間ワーカーを1つ占有するジョブを投入する
func (m *Monkey) attackSuspend() {
	m.mu.RLock()
	pool := m.pool
	m.mu.RUnlock()
	if pool == nil {
		return
	}

	done := m.done()
	suspend := m.config.SuspendTime
	if !pool.Submit(func() {
		timer := time.NewTimer(suspend)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-done:
		}
	}) {
		logger.Warn("", "ChaosMonkey: failed to suspend a worker: pool is stopping")
		return
	}

	m.record(AttackSuspend)
	logger.Warn("", "ChaosMonkey: suspended a worker for %v", suspend)
	m.publishEvent(events.NewChaosAttackEventWithDelay(AttackSuspend.String(), suspend))
}

func (m *Monkey) done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx.Done()
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は実行された攻撃の回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// LastAttack は最後に攻撃を仕掛けた時刻を返す
func (m *Monkey) LastAttack() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAttack
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
		Armed:        len(m.armed),
	}
}
