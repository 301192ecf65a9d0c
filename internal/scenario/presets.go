package scenario

import (
	"time"

	"poolhttpd/internal/chaos"
)

// BasicScenario は基本的なシナリオ設定を返す
// カオス注入なし、純粋な負荷テスト
func BasicScenario() Config {
	return Config{
		Name:          "basic",
		Description:   "Basic load test without chaos injection",
		Duration:      10 * time.Second,
		ServerWorkers: 4,
		Concurrency:   10,
		Paths:         []string{"/"},
		EnableChaos:   false,
	}
}

// ResilienceScenario は耐障害性テストシナリオを返す
// Kill攻撃のみ。panic したジョブの後もワーカーが生き残るかを見る
func ResilienceScenario() Config {
	return Config{
		Name:          "resilience",
		Description:   "Job kills; every worker must survive",
		Duration:      15 * time.Second,
		ServerWorkers: 4,
		Concurrency:   10,
		Paths:         []string{"/"},
		EnableChaos:   true,
		ChaosInterval: time.Second,
		ChaosTargets:  2,
		AttackTypes:   []chaos.AttackType{chaos.AttackKill},
	}
}

// LatencyScenario はレイテンシ注入シナリオを返す
// Delay攻撃のみ
func LatencyScenario() Config {
	return Config{
		Name:          "latency",
		Description:   "Latency injection into connection jobs",
		Duration:      10 * time.Second,
		ServerWorkers: 4,
		Concurrency:   10,
		Paths:         []string{"/"},
		EnableChaos:   true,
		ChaosInterval: 500 * time.Millisecond,
		ChaosTargets:  1,
		AttackTypes:   []chaos.AttackType{chaos.AttackDelay},
		DelayDuration: 200 * time.Millisecond,
	}
}

// StressScenario は高負荷シナリオを返す
// 多数の並行接続、複数の攻撃タイプ
func StressScenario() Config {
	return Config{
		Name:          "stress",
		Description:   "High load stress test with multiple attack types",
		Duration:      20 * time.Second,
		ServerWorkers: 8,
		Concurrency:   50,
		Paths:         []string{"/"},
		EnableChaos:   true,
		ChaosInterval: time.Second,
		ChaosTargets:  2,
		AttackTypes:   []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay},
		DelayDuration: 100 * time.Millisecond,
		SuspendTime:   2 * time.Second,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 長いジョブが1つのワーカーを塞いでも、他のワーカーが処理を続けるかを見る
func QuickScenario() Config {
	return Config{
		Name:          "quick",
		Description:   "Quick test: a suspended worker must not stall the others",
		Duration:      5 * time.Second,
		ServerWorkers: 2,
		Concurrency:   4,
		Paths:         []string{"/"},
		EnableChaos:   true,
		ChaosInterval: time.Second,
		ChaosTargets:  1,
		AttackTypes:   []chaos.AttackType{chaos.AttackSuspend},
		SuspendTime:   2 * time.Second,
	}
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"basic":      BasicScenario,
		"resilience": ResilienceScenario,
		"latency":    LatencyScenario,
		"stress":     StressScenario,
		"quick":      QuickScenario,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "resilience", "latency", "stress", "quick"}
}
