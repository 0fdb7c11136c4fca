package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadNotificationsConfigDefaults(t *testing.T) {
	cfg, err := loadNotificationsConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScanSchedule != "0 * * * *" || cfg.Horizon != 24*time.Hour || cfg.SoonWindow != time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RetainPerUser != 10 || cfg.RetentionDays != 30 {
		t.Fatalf("unexpected retention defaults: %+v", cfg)
	}
}

func TestLoadNotificationsConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte("notifications:\n  scan_schedule: \"*/30 * * * *\"\n  horizon: 12h\n  retain_per_user: 5\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKS_NOTIFICATIONS_RETAIN_PER_USER", "20")

	cfg, err := loadNotificationsConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ScanSchedule != "*/30 * * * *" || cfg.Horizon != 12*time.Hour {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RetainPerUser != 20 {
		t.Fatalf("expected env override, got %d", cfg.RetainPerUser)
	}
	if cfg.Debounce != time.Hour {
		t.Fatalf("expected default debounce for missing key, got %s", cfg.Debounce)
	}
}

func TestLoadNotificationsConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadNotificationsConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Horizon != 24*time.Hour {
		t.Fatalf("unexpected horizon %s", cfg.Horizon)
	}
}

func TestLoadNotificationsConfigRejectsBadWindows(t *testing.T) {
	t.Setenv("TASKS_NOTIFICATIONS_SOON_WINDOW", "48h")
	if _, err := loadNotificationsConfig(""); err == nil {
		t.Fatalf("expected soon window longer than horizon to be rejected")
	}
}
