// Package chaos はワーカープールと接続ジョブへの障害注入を提供する。
//
// Monkey は一定間隔で攻撃を仕掛け、プールの処理能力がジョブ単位で
// 分離されていること、ジョブが panic してもワーカーが生き残ることを確かめる。
//
// # 障害タイプ
//
// - Kill: 次の接続ジョブが応答した後に panic させる
// - Suspend: SuspendTime の間ワーカーを1つ占有するジョブを投入する
// - Delay: 次の接続ジョブの開始を DelayDuration だけ遅らせる
//
// # 使用例
//
//	monkey := chaos.New(chaos.DefaultConfig())
//	srv, _ := server.New(cfg, source, server.WithJobWrapper(monkey.Wrap))
//	monkey.Start(ctx, srv.Pool())
//	defer monkey.Stop()
package chaos
