// Package server はリスナー、ワーカープール、接続ジョブを結びつける。
//
// New の時点でプールのワーカーが起動する。Listen は 127.0.0.1:<port> で待ち受け、
// Serve は呼び出し元のゴルーチン上で accept ループを回し、受け付けた接続を
// httpd のジョブとしてプールに投入する。プールが停止処理に入っていれば
// ジョブは拒否され、接続はその場で閉じられる。
//
// # 流量制御
//
// AcceptRate / AcceptBurst を設定すると、accept はトークンバケット
// (golang.org/x/time/rate) で制限される。
//
// # 停止
//
// Shutdown はリスナーを閉じてからプールを停止する。各ワーカーは投入済みの
// ジョブを処理した後に終了メッセージを1つずつ受け取り、全ワーカーの終了を
// 待ってから Shutdown は戻る。
//
// 終了したジョブはすべて metrics.Metrics、Prometheus コレクタ、イベントバスに
// 記録され、api パッケージから参照できる。
package server
