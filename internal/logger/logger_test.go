// Package logger - Test áp dụng lại cấu hình logging lúc khởi động.
package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestReconfigure_AppliesNewLevel(t *testing.T) {
	if err := Reconfigure(nil); err != nil {
		t.Fatalf("Reconfigure(nil) trả lỗi: %v", err)
	}
	if lvl := GetAppLogger().GetLevel(); lvl != logrus.InfoLevel {
		t.Fatalf("cấu hình mặc định phải là info, got %v", lvl)
	}

	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.Output = "stdout"
	if err := Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure trả lỗi: %v", err)
	}
	if lvl := GetAppLogger().GetLevel(); lvl != logrus.DebugLevel {
		t.Errorf("logger lấy sau Reconfigure phải theo level mới, got %v", lvl)
	}
}

func TestReconfigure_DropsCachedLoggers(t *testing.T) {
	if err := Reconfigure(nil); err != nil {
		t.Fatalf("Reconfigure(nil) trả lỗi: %v", err)
	}
	before := GetAppLogger()

	cfg := DefaultConfig()
	cfg.Level = "error"
	cfg.Output = "stdout"
	if err := Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure trả lỗi: %v", err)
	}

	after := GetAppLogger()
	if before == after {
		t.Error("Reconfigure phải bỏ logger đã cache để cấu hình mới có hiệu lực")
	}
	if after.GetLevel() != logrus.ErrorLevel {
		t.Errorf("logger mới phải ở level error, got %v", after.GetLevel())
	}
}
