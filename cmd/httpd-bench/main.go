// Package main is a load generator for poolhttpd.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"poolhttpd/internal/client"
	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/scenario"

	"github.com/spf13/afero"
)

func main() {
	defaults := client.DefaultConfig()

	// フラグ定義
	var (
		addr        = flag.String("addr", defaults.Addr, "接続先アドレス (例: 127.0.0.1:8082)")
		paths       = flag.String("paths", "/", "リクエストするパス（カンマ区切り）")
		concurrency = flag.Int("c", 0, "並行数 (0でCPU数)")
		duration    = flag.Duration("duration", 10*time.Second, "実行時間 (-n 指定時は無視)")
		requests    = flag.Uint64("n", 0, "リクエスト数 (0で時間指定)")
		timeout     = flag.Duration("timeout", defaults.Timeout, "1リクエストのタイムアウト")
		verbose     = flag.Bool("v", false, "デバッグログを出力")

		scenarioName  = flag.String("scenario", "", "プリセットシナリオを同一プロセス内のサーバーに対して実行")
		root          = flag.String("root", "", "シナリオ用サーバーのドキュメントルート（空でメモリ上のページ）")
		listScenarios = flag.Bool("list-scenarios", false, "プリセットシナリオの一覧を表示")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `httpd-bench - load generator for poolhttpd

Usage:
  httpd-bench [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # 10秒間、CPU数の並行数で / を取得
  httpd-bench

  # 1000リクエストを8並行で
  httpd-bench -n 1000 -c 8 -paths /,/missing.html

  # 障害注入シナリオ（サーバーも同じプロセスで起動する）
  httpd-bench -scenario quick
  httpd-bench -scenario resilience -duration 30s -root ./public
`)
	}

	flag.Parse()

	if *verbose {
		logger.Default.SetLevel(logger.LevelDebug)
	}

	if *listScenarios {
		for _, name := range scenario.ListPresets() {
			preset, _ := scenario.GetPreset(name)
			fmt.Printf("  %-12s %s\n", name, preset.Description)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、負荷生成を終了中...")
		cancel()
	}()

	if *scenarioName != "" {
		// -duration は明示された場合だけプリセットを上書きする
		var override time.Duration
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "duration" {
				override = *duration
			}
		})
		result, err := runScenario(ctx, *scenarioName, *root, override)
		if err != nil {
			logger.Error("", "シナリオエラー: %v", err)
			os.Exit(1)
		}
		fmt.Println(result.Report())
		return
	}

	clientConfig := client.Config{
		Addr:        *addr,
		Concurrency: *concurrency,
		Paths:       splitPaths(*paths),
		Timeout:     *timeout,
	}
	cl, err := client.New(clientConfig)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	var snap *metrics.Snapshot
	if *requests > 0 {
		snap = cl.RunRequests(ctx, *requests)
	} else {
		snap = cl.RunFor(ctx, *duration)
	}

	printReport(*addr, snap)
}

// runScenario はプリセットシナリオを実行する。duration が正ならプリセットの実行時間を上書きする
func runScenario(ctx context.Context, name, root string, duration time.Duration) (*scenario.Result, error) {
	preset, ok := scenario.GetPreset(name)
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s (available: %v)", name, scenario.ListPresets())
	}
	if duration > 0 {
		preset.Duration = duration
	}

	source, err := scenarioSource(root)
	if err != nil {
		return nil, err
	}
	return scenario.New(preset, source).Run(ctx)
}

// scenarioSource は root が空ならデフォルトページだけを持つメモリ上のソースを返す
func scenarioSource(root string) (docroot.Source, error) {
	if root != "" {
		return docroot.NewOSSource(root)
	}
	fs := afero.NewMemMapFs()
	page := []byte("<!DOCTYPE html><html><body><h1>Hello!</h1></body></html>\n")
	if err := afero.WriteFile(fs, config.Default().DefaultFile, page, 0o644); err != nil {
		return nil, err
	}
	return docroot.NewFSSource(fs, "memory"), nil
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// printReport は結果を表示する
func printReport(addr string, snap *metrics.Snapshot) {
	fmt.Println("httpd-bench report")
	fmt.Println("==================")
	fmt.Printf("Target:   %s\n", addr)
	fmt.Printf("Elapsed:  %v\n", snap.Elapsed.Round(time.Millisecond))
	fmt.Printf("Requests: %d (ok: %d, failed: %d)\n", snap.TotalRequests, snap.SuccessRequests, snap.FailedRequests)
	fmt.Printf("RPS:      %.1f\n", snap.OverallRPS)
	fmt.Printf("Latency:  avg %v, p99 %v\n", snap.AverageLatency, snap.P99Latency)

	codes := make([]int, 0, len(snap.StatusCounts))
	for code := range snap.StatusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, snap.StatusCounts[code])
	}
}
