package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
telegram:
  token: "123:abc"
admin:
  main_id: 777
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Transfer.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, expected default 3", cfg.Transfer.RetryAttempts)
	}
	if cfg.Transfer.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, expected default 3", cfg.Transfer.MaxConcurrent)
	}
	if cfg.Progress.BarWidth != 10 || cfg.Progress.StepPct != 5 {
		t.Errorf("progress defaults = width %d step %d", cfg.Progress.BarWidth, cfg.Progress.StepPct)
	}
	if cfg.progressInterval() != 2*time.Second {
		t.Errorf("progressInterval = %s, expected 2s", cfg.progressInterval())
	}
	if cfg.retryBackoff() != 2*time.Second {
		t.Errorf("retryBackoff = %s, expected 2s", cfg.retryBackoff())
	}
	if cfg.Web.Port != "8080" {
		t.Errorf("port = %q, expected 8080", cfg.Web.Port)
	}
	if cfg.maxSizeBytes() != 0 {
		t.Errorf("maxSizeBytes = %d, unset limit should mean unlimited", cfg.maxSizeBytes())
	}
}

func TestLoadConfigExplicit(t *testing.T) {
	path := writeConfigFile(t, `
telegram:
  token: "123:abc"
admin:
  main_id: 777
transfer:
  max_size_mb: 512
  retry_attempts: 5
  retry_backoff_s: 1
  max_concurrent: 8
progress:
  bar_width: 20
  step_pct: 2
  interval_s: 4
web:
  port: "9090"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.maxSizeBytes() != 512*1024*1024 {
		t.Errorf("maxSizeBytes = %d", cfg.maxSizeBytes())
	}
	if cfg.Transfer.RetryAttempts != 5 || cfg.Transfer.MaxConcurrent != 8 {
		t.Errorf("transfer settings not honored: %+v", cfg.Transfer)
	}
	if cfg.Progress.BarWidth != 20 || cfg.progressInterval() != 4*time.Second {
		t.Errorf("progress settings not honored: %+v", cfg.Progress)
	}
	if cfg.Web.Port != "9090" {
		t.Errorf("port = %q", cfg.Web.Port)
	}
}

func TestLoadConfigRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no token", "admin:\n  main_id: 777\n"},
		{"no main admin", "telegram:\n  token: \"123:abc\"\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadConfig(writeConfigFile(t, tc.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
