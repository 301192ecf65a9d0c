// Package main is the entry point for poolhttpd.
//
// The server takes no command-line flags; it is configured through the
// HTTPD_* environment variables and an optional HTTPD_CONFIG file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"poolhttpd/internal/api"
	"poolhttpd/internal/chaos"
	"poolhttpd/internal/config"
	"poolhttpd/internal/docroot"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/server"
)

var (
	version = "dev"
)

func main() {
	if err := run(); err != nil {
		logger.Error("", "%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("設定エラー: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("設定エラー: %w", err)
	}
	logger.Default.SetLevel(level)

	source, err := openSource(&cfg)
	if err != nil {
		return fmt.Errorf("ドキュメントルートエラー: %w", err)
	}

	monkey, err := newMonkey(&cfg)
	if err != nil {
		return fmt.Errorf("設定エラー: %w", err)
	}
	var opts []server.Option
	if monkey != nil {
		opts = append(opts, server.WithJobWrapper(monkey.Wrap))
	}

	srv, err := server.New(&cfg, source, opts...)
	if err != nil {
		return err
	}
	if monkey != nil {
		monkey.SetEventBus(srv.Bus())
	}
	if err := srv.Listen(); err != nil {
		srv.Shutdown()
		return err
	}

	logger.Info("", "poolhttpd %s (workers: %d, default file: %s)", version, cfg.Workers, cfg.DefaultFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("", "Received %v, shutting down", sig)
		cancel()
	}()

	if cfg.Admin.Enabled {
		admin := api.NewServer(cfg.Admin.Addr, srv)
		go func() {
			if err := admin.Start(ctx); err != nil {
				logger.Error("", "Admin API error: %v", err)
			}
		}()
	}

	if monkey != nil {
		monkey.Start(ctx, srv.Pool())
	}

	err = srv.Serve(ctx)
	if monkey != nil {
		// 占有中のワーカーを解放してからプールを止める
		monkey.Stop()
	}
	srv.Shutdown()
	return err
}

// newMonkey は chaos 設定が有効なら ChaosMonkey を作成する。無効なら nil
func newMonkey(cfg *config.Config) (*chaos.Monkey, error) {
	if !cfg.Chaos.Enabled {
		return nil, nil
	}
	attacks, err := chaos.ParseAttackTypes(cfg.Chaos.Attacks)
	if err != nil {
		return nil, err
	}
	logger.Warn("", "Chaos injection enabled (attacks: %v)", cfg.Chaos.Attacks)
	return chaos.New(chaos.Config{
		Interval:      cfg.Chaos.Interval,
		TargetCount:   cfg.Chaos.Targets,
		AttackTypes:   attacks,
		DelayDuration: cfg.Chaos.Delay,
		SuspendTime:   cfg.Chaos.SuspendTime,
	}), nil
}

// openSource は設定されたバックエンドのドキュメントルートを開く
func openSource(cfg *config.Config) (docroot.Source, error) {
	if cfg.Storage.Backend == config.BackendS3 {
		s3 := cfg.Storage.S3
		src, err := docroot.NewS3Source(docroot.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			Prefix:    s3.Prefix,
			Secure:    s3.Secure,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}

	src, err := docroot.NewOSSource(cfg.RootDir)
	if err != nil {
		return nil, err
	}
	return src, nil
}
