package config

import (
	"fmt"
	"os"
	"strconv"
)

// LookupFunc は環境変数の参照関数（os.LookupEnv と同じ形）
type LookupFunc func(key string) (string, bool)

// ApplyEnv は環境変数で config を上書きする
func ApplyEnv(config *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		config.Port = v
	}
	if v, ok := lookup(EnvRootDir); ok && v != "" {
		config.RootDir = v
	}
	if v, ok := lookup(EnvDefaultFile); ok && v != "" {
		config.DefaultFile = v
	}
	if v, ok := lookup(EnvNotFoundFile); ok && v != "" {
		config.NotFoundFile = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWorkers, err)
		}
		config.Workers = n
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		config.LogLevel = v
	}
	if v, ok := lookup(EnvAdminAddr); ok && v != "" {
		config.Admin.Enabled = true
		config.Admin.Addr = v
	}
	if v, ok := lookup(EnvS3AccessKey); ok {
		config.Storage.S3.AccessKey = v
	}
	if v, ok := lookup(EnvS3SecretKey); ok {
		config.Storage.S3.SecretKey = v
	}
	if v, ok := lookup(EnvChaos); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvChaos, err)
		}
		config.Chaos.Enabled = enabled
	}
	return nil
}

// Load はデフォルト → 設定ファイル → 環境変数 の順に設定を構築し、検証する
func Load(lookup LookupFunc) (Config, error) {
	config := Default()

	if path, ok := lookup(EnvConfigFile); ok && path != "" {
		fileConfig, err := LoadFile(path)
		if err != nil {
			return config, err
		}
		if err := fileConfig.Validate(); err != nil {
			return config, fmt.Errorf("config validation failed: %w", err)
		}
		if err := fileConfig.Apply(&config); err != nil {
			return config, fmt.Errorf("config conversion failed: %w", err)
		}
	}

	if err := ApplyEnv(&config, lookup); err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// LoadFromEnv はプロセスの環境変数から設定を読み込む
func LoadFromEnv() (Config, error) {
	return Load(os.LookupEnv)
}
