// Package scenario は負荷と障害注入を組み合わせたシナリオを実行する。
//
// Engine は同じプロセス内で server.Server をエフェメラルポートで起動し、
// client.Client で負荷をかけながら chaos.Monkey で障害を注入する。
// 実行後はクライアント側・サーバー側のメトリクスと、停止前に稼働していた
// ワーカー数を Result にまとめる。
//
// # プリセット
//
// - basic: カオスなしの負荷テスト
// - resilience: Kill のみ。全ワーカーが生き残ることを確認
// - latency: Delay のみ
// - stress: 高並行、全攻撃タイプ
// - quick: Suspend のみの短時間シナリオ
//
// # 使用例
//
//	config, _ := scenario.GetPreset("quick")
//	engine := scenario.New(config, source)
//	result, err := engine.Run(ctx)
//	fmt.Println(result.Report())
package scenario
