package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

// 環境変数名
const (
	EnvConfigFile   = "HTTPD_CONFIG"
	EnvPort         = "HTTPD_PORT"
	EnvRootDir      = "HTTPD_ROOT_DIR"
	EnvDefaultFile  = "HTTPD_DEFAULT_FILE"
	EnvNotFoundFile = "HTTPD_NOT_FOUND_FILE"
	EnvWorkers      = "HTTPD_WORKERS"
	EnvLogLevel     = "HTTPD_LOG_LEVEL"
	EnvAdminAddr    = "HTTPD_ADMIN_ADDR"
	EnvS3AccessKey  = "HTTPD_S3_ACCESS_KEY"
	EnvS3SecretKey  = "HTTPD_S3_SECRET_KEY"
	EnvChaos        = "HTTPD_CHAOS"
)

// ストレージバックエンド
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config はサーバーの実行時設定
// 起動時に一度だけ構築され、以後は読み取り専用で共有される
type Config struct {
	Port           string
	RootDir        string
	DefaultFile    string
	NotFoundFile   string // 空なら 404 は短いテキストを返す
	Workers        int
	MaxRequestLine int // リクエスト行の最大バイト数
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	LingerTimeout  time.Duration // 応答後に残りの入力を捨てる最大時間
	FetchTimeout   time.Duration // ドキュメントルートからの読み込み1回の上限（0で無制限）
	AcceptRate     float64       // 1秒あたりの accept 上限（0で無制限）
	AcceptBurst    int
	LogLevel       string

	Admin   AdminConfig
	Storage StorageConfig
	Chaos   ChaosConfig
}

// AdminConfig は管理APIの設定
type AdminConfig struct {
	Enabled bool
	Addr    string
}

// ChaosConfig は接続ジョブへの障害注入の設定
type ChaosConfig struct {
	Enabled     bool
	Interval    time.Duration // 攻撃間隔
	Targets     int           // 1回の攻撃で狙うジョブ数
	Attacks     []string      // "kill", "suspend", "delay"
	Delay       time.Duration // delay 攻撃の遅延
	SuspendTime time.Duration // suspend 攻撃でワーカーを占有する時間
}

// ChaosAttacks は指定できる攻撃名
var ChaosAttacks = []string{"kill", "suspend", "delay"}

// StorageConfig はドキュメントルートの保存先
type StorageConfig struct {
	Backend string // "fs" または "s3"
	S3      S3Config
}

// S3Config は S3 互換ストレージの設定
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		Port:           "8082",
		RootDir:        ".",
		DefaultFile:    "hello-world.html",
		Workers:        4,
		MaxRequestLine: 8 << 10,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		LingerTimeout:  500 * time.Millisecond,
		FetchTimeout:   5 * time.Second,
		LogLevel:       "info",
		Admin: AdminConfig{
			Addr: "127.0.0.1:9090",
		},
		Storage: StorageConfig{
			Backend: BackendFS,
		},
		Chaos: ChaosConfig{
			Interval:    5 * time.Second,
			Targets:     1,
			Attacks:     []string{"kill", "suspend", "delay"},
			Delay:       100 * time.Millisecond,
			SuspendTime: 5 * time.Second,
		},
	}
}

// Addr はリスナーのアドレスを返す（ループバック固定）
func (c Config) Addr() string {
	return net.JoinHostPort("127.0.0.1", c.Port)
}

// Validate は設定を検証する
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("port must be a number between 0 and 65535, got %q", c.Port)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if strings.TrimSpace(c.DefaultFile) == "" {
		return fmt.Errorf("default_file must not be empty")
	}

	if c.MaxRequestLine < 16 {
		return fmt.Errorf("max_request_line must be at least 16 bytes, got %d", c.MaxRequestLine)
	}

	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.LingerTimeout < 0 || c.FetchTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}

	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return fmt.Errorf("accept_rate and accept_burst must be non-negative")
	}

	switch c.Storage.Backend {
	case BackendFS:
		if c.RootDir == "" {
			return fmt.Errorf("root_dir must not be empty")
		}
	case BackendS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3 requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Admin.Enabled && c.Admin.Addr == "" {
		return fmt.Errorf("admin.addr must be set when admin is enabled")
	}

	if c.Chaos.Enabled {
		if err := c.Chaos.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (c ChaosConfig) validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("chaos.interval must be positive")
	}
	if c.Targets < 1 {
		return fmt.Errorf("chaos.targets must be at least 1, got %d", c.Targets)
	}
	if c.Delay < 0 || c.SuspendTime < 0 {
		return fmt.Errorf("chaos.delay and chaos.suspend_time must be non-negative")
	}
	if len(c.Attacks) == 0 {
		return fmt.Errorf("chaos.attacks must not be empty")
	}
	for _, a := range c.Attacks {
		if !slices.Contains(ChaosAttacks, a) {
			return fmt.Errorf("unknown chaos attack: %s (available: %v)", a, ChaosAttacks)
		}
	}
	return nil
}
