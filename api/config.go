package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type config struct {
	port        int
	env         string
	configFile  string
	frontendURL string
	db          struct {
		dsn                string
		maxOpenConnections int
		maxIdleConnections int
		maxIdleTime        time.Duration
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	jwt struct {
		secret string
		ttl    time.Duration
	}
	limiter struct {
		enabled             bool
		maxRequestPerSecond float64
		burst               int
	}
	cors struct {
		trustedOrigins []string
	}
	notifications notificationsConfig
}

// notificationsConfig drives the background jobs. Schedules use standard
// five-field cron syntax or descriptors like "@every 5m".
type notificationsConfig struct {
	ScanSchedule     string
	Horizon          time.Duration
	SoonWindow       time.Duration
	Debounce         time.Duration
	OverdueLookback  time.Duration
	RetainPerUser    int
	RetentionDays    int
	DeliverySchedule string
	PruneSchedule    string
}

func setNotificationDefaults(v *viper.Viper) {
	v.SetDefault("notifications.scan_schedule", "0 * * * *")
	v.SetDefault("notifications.horizon", "24h")
	v.SetDefault("notifications.soon_window", "1h")
	v.SetDefault("notifications.debounce", "1h")
	v.SetDefault("notifications.overdue_lookback", "24h")
	v.SetDefault("notifications.retain_per_user", 10)
	v.SetDefault("notifications.retention_days", 30)
	v.SetDefault("notifications.delivery_schedule", "@every 5m")
	v.SetDefault("notifications.prune_schedule", "0 3 * * *")
}

// loadNotificationsConfig reads the notifications block from an optional YAML
// file. Every key can be overridden from the environment, e.g.
// TASKS_NOTIFICATIONS_SCAN_SCHEDULE.
func loadNotificationsConfig(path string) (notificationsConfig, error) {
	v := viper.New()
	setNotificationDefaults(v)

	v.SetEnvPrefix("TASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return notificationsConfig{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := notificationsConfig{
		ScanSchedule:     v.GetString("notifications.scan_schedule"),
		Horizon:          v.GetDuration("notifications.horizon"),
		SoonWindow:       v.GetDuration("notifications.soon_window"),
		Debounce:         v.GetDuration("notifications.debounce"),
		OverdueLookback:  v.GetDuration("notifications.overdue_lookback"),
		RetainPerUser:    v.GetInt("notifications.retain_per_user"),
		RetentionDays:    v.GetInt("notifications.retention_days"),
		DeliverySchedule: v.GetString("notifications.delivery_schedule"),
		PruneSchedule:    v.GetString("notifications.prune_schedule"),
	}

	switch {
	case cfg.Horizon <= 0:
		return cfg, errors.New("notifications.horizon must be positive")
	case cfg.SoonWindow <= 0 || cfg.SoonWindow > cfg.Horizon:
		return cfg, errors.New("notifications.soon_window must be positive and no longer than the horizon")
	case cfg.Debounce <= 0:
		return cfg, errors.New("notifications.debounce must be positive")
	case cfg.RetainPerUser <= 0:
		return cfg, errors.New("notifications.retain_per_user must be positive")
	case cfg.RetentionDays <= 0:
		return cfg, errors.New("notifications.retention_days must be positive")
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
