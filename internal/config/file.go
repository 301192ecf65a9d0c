package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server  ServerFileConfig  `yaml:"server" json:"server"`
	Admin   AdminFileConfig   `yaml:"admin" json:"admin"`
	Storage StorageFileConfig `yaml:"storage" json:"storage"`
	Chaos   ChaosFileConfig   `yaml:"chaos" json:"chaos"`
}

// ServerFileConfig はサーバー設定
type ServerFileConfig struct {
	Port           string  `yaml:"port" json:"port"`
	RootDir        string  `yaml:"root_dir" json:"root_dir"`
	DefaultFile    string  `yaml:"default_file" json:"default_file"`
	NotFoundFile   string  `yaml:"not_found_file" json:"not_found_file"`
	Workers        int     `yaml:"workers" json:"workers"`
	MaxRequestLine int     `yaml:"max_request_line" json:"max_request_line"`
	ReadTimeout    string  `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   string  `yaml:"write_timeout" json:"write_timeout"`
	LingerTimeout  string  `yaml:"linger_timeout" json:"linger_timeout"`
	FetchTimeout   string  `yaml:"fetch_timeout" json:"fetch_timeout"`
	AcceptRate     float64 `yaml:"accept_rate" json:"accept_rate"`
	AcceptBurst    int     `yaml:"accept_burst" json:"accept_burst"`
	LogLevel       string  `yaml:"log_level" json:"log_level"`
}

// AdminFileConfig は管理API設定
type AdminFileConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// ChaosFileConfig は障害注入設定
type ChaosFileConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Interval    string   `yaml:"interval" json:"interval"`
	Targets     int      `yaml:"targets" json:"targets"`
	Attacks     []string `yaml:"attacks" json:"attacks"`
	Delay       string   `yaml:"delay" json:"delay"`
	SuspendTime string   `yaml:"suspend_time" json:"suspend_time"`
}

// StorageFileConfig はストレージ設定
type StorageFileConfig struct {
	Backend string       `yaml:"backend" json:"backend"`
	S3      S3FileConfig `yaml:"s3" json:"s3"`
}

// S3FileConfig は S3 設定（認証情報は環境変数で渡す）
type S3FileConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Bucket   string `yaml:"bucket" json:"bucket"`
	Region   string `yaml:"region" json:"region"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	Secure   bool   `yaml:"secure" json:"secure"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate はファイル上の値を検証する
func (f *FileConfig) Validate() error {
	sc := f.Server

	if sc.Workers < 0 {
		return fmt.Errorf("server.workers must be non-negative")
	}

	if sc.MaxRequestLine < 0 {
		return fmt.Errorf("server.max_request_line must be non-negative")
	}

	if sc.AcceptRate < 0 {
		return fmt.Errorf("server.accept_rate must be non-negative")
	}

	if sc.AcceptBurst < 0 {
		return fmt.Errorf("server.accept_burst must be non-negative")
	}

	switch f.Storage.Backend {
	case "", BackendFS, BackendS3:
	default:
		return fmt.Errorf("unknown storage backend: %s", f.Storage.Backend)
	}

	if f.Chaos.Targets < 0 {
		return fmt.Errorf("chaos.targets must be non-negative")
	}

	return nil
}

// Apply はファイルで指定された値を config に上書きする
// 空文字列やゼロ値は「未指定」として扱う
func (f *FileConfig) Apply(config *Config) error {
	sc := f.Server

	if sc.Port != "" {
		config.Port = sc.Port
	}
	if sc.RootDir != "" {
		config.RootDir = sc.RootDir
	}
	if sc.DefaultFile != "" {
		config.DefaultFile = sc.DefaultFile
	}
	if sc.NotFoundFile != "" {
		config.NotFoundFile = sc.NotFoundFile
	}
	if sc.Workers > 0 {
		config.Workers = sc.Workers
	}
	if sc.MaxRequestLine > 0 {
		config.MaxRequestLine = sc.MaxRequestLine
	}
	if sc.AcceptRate > 0 {
		config.AcceptRate = sc.AcceptRate
	}
	if sc.AcceptBurst > 0 {
		config.AcceptBurst = sc.AcceptBurst
	}
	if sc.LogLevel != "" {
		config.LogLevel = sc.LogLevel
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"read_timeout", sc.ReadTimeout, &config.ReadTimeout},
		{"write_timeout", sc.WriteTimeout, &config.WriteTimeout},
		{"linger_timeout", sc.LingerTimeout, &config.LingerTimeout},
		{"fetch_timeout", sc.FetchTimeout, &config.FetchTimeout},
		{"chaos.interval", f.Chaos.Interval, &config.Chaos.Interval},
		{"chaos.delay", f.Chaos.Delay, &config.Chaos.Delay},
		{"chaos.suspend_time", f.Chaos.SuspendTime, &config.Chaos.SuspendTime},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	// Admin設定
	config.Admin.Enabled = config.Admin.Enabled || f.Admin.Enabled
	if f.Admin.Addr != "" {
		config.Admin.Addr = f.Admin.Addr
	}

	// Storage設定
	if f.Storage.Backend != "" {
		config.Storage.Backend = f.Storage.Backend
	}
	s3 := f.Storage.S3
	if s3.Endpoint != "" {
		config.Storage.S3.Endpoint = s3.Endpoint
	}
	if s3.Bucket != "" {
		config.Storage.S3.Bucket = s3.Bucket
	}
	if s3.Region != "" {
		config.Storage.S3.Region = s3.Region
	}
	if s3.Prefix != "" {
		config.Storage.S3.Prefix = s3.Prefix
	}
	config.Storage.S3.Secure = config.Storage.S3.Secure || s3.Secure

	// Chaos設定
	config.Chaos.Enabled = config.Chaos.Enabled || f.Chaos.Enabled
	if f.Chaos.Targets > 0 {
		config.Chaos.Targets = f.Chaos.Targets
	}
	if len(f.Chaos.Attacks) > 0 {
		config.Chaos.Attacks = f.Chaos.Attacks
	}

	return nil
}
