// Package config đọc cấu hình tĩnh của ứng dụng từ file env và biến môi trường.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng.
// Remote store là tùy chọn — vắng cấu hình remote thì ứng dụng chạy thuần offline.
type Configuration struct {
	Address      string `env:"ADDRESS" envDefault:":8080"`              // Địa chỉ server
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data/nexus.db"` // File bbolt chứa snapshot các collection

	// Remote store (HTTP row API)
	RemoteBaseURL string `env:"REMOTE_BASE_URL"`                    // Base URL của remote store (rỗng = offline-only)
	RemoteAPIKey  string `env:"REMOTE_API_KEY"`                     // API key gửi kèm mọi request
	RemoteTimeout int    `env:"REMOTE_TIMEOUT" envDefault:"5"`      // Timeout mỗi request (giây)
	SyncInterval  int    `env:"SYNC_INTERVAL" envDefault:"900"`     // Chu kỳ chạy sync worker (giây, 0 = tắt)

	// Phiên remote khởi tạo (tùy chọn). Không có thì server khởi động
	// offline và chờ POST /session/renew.
	SessionToken string `env:"SESSION_TOKEN"` // Bearer token ban đầu
	SessionOrg   string `env:"SESSION_ORG"`   // Organization của phiên ban đầu

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`   // debug | info | warn | error
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`  // text | json
	LogOutput string `env:"LOG_OUTPUT" envDefault:"both"`  // stdout | file | both
	LogPath   string `env:"LOG_PATH" envDefault:"logs"`    // Thư mục chứa file log

	// PushAlerts bật mirror notification mức alert sang error log
	PushAlerts bool `env:"PUSH_ALERTS" envDefault:"false"`

	// SMTP cho kênh gửi email hàng loạt
	SMTPHost     string `env:"SMTP_HOST"`                  // Host SMTP (rỗng = tắt kênh email)
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"` // Port SMTP
	SMTPUsername string `env:"SMTP_USERNAME"`              // Tài khoản SMTP
	SMTPPassword string `env:"SMTP_PASSWORD"`              // Mật khẩu SMTP
	SMTPFrom     string `env:"SMTP_FROM"`                  // Địa chỉ người gửi
	SMTPFromName string `env:"SMTP_FROM_NAME"`             // Tên người gửi

	// Gửi hàng loạt: khoảng delay ngẫu nhiên giữa các item (giây).
	// Mặc định 120–420s để tránh bị chặn bởi hệ thống chống spam của kênh gửi.
	DispatchDelayMin int `env:"DISPATCH_DELAY_MIN" envDefault:"120"`
	DispatchDelayMax int `env:"DISPATCH_DELAY_MAX" envDefault:"420"`
}

// getEnvPath trả về đường dẫn đến file env theo môi trường (GO_ENV).
func getEnvPath() string {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Tìm thư mục config/env bằng cách đi lên từ working directory
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", goEnv))
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig đọc cấu hình từ file env (nếu có) rồi parse từ biến môi trường.
func NewConfig() (*Configuration, error) {
	if envPath := getEnvPath(); envPath != "" {
		// File env là tùy chọn — thiếu file thì dùng biến môi trường có sẵn
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("không thể load file env tại %s: %w", envPath, err)
			}
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("lỗi khi parse config: %w", err)
	}

	if cfg.DispatchDelayMax < cfg.DispatchDelayMin {
		cfg.DispatchDelayMax = cfg.DispatchDelayMin
	}

	return &cfg, nil
}
