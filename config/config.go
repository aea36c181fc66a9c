package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Feeder     FeederConfig     `yaml:"feeder"`
	Push       PushConfig       `yaml:"push"`
	Chat       ChatConfig       `yaml:"chat"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the detached task and notification workers.
type WorkerPoolConfig struct {
	Size               int           `yaml:"size"`
	QueueSize          int           `yaml:"queue_size"`
	TaskTimeoutSeconds int           `yaml:"task_timeout_seconds"`
	TaskTimeout        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ChatConfig holds the outbound chat webhook used for feed announcements.
type ChatConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	OperatorToken   string  `yaml:"operator_token"`
	DeviceToken     string  `yaml:"device_token"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// FeederConfig holds the scheduling knobs of the feeder.
type FeederConfig struct {
	Timezone                    string         `yaml:"timezone"`
	Location                    *time.Location `yaml:"-"`
	CheckIntervalSeconds        int            `yaml:"check_interval_seconds"`
	CheckInterval               time.Duration  `yaml:"-"`
	StoreTimeoutSeconds         int            `yaml:"store_timeout_seconds"`
	StoreTimeout                time.Duration  `yaml:"-"`
	OnlineWindowSeconds         int            `yaml:"online_window_seconds"`
	StrictOnlineWindowSeconds   int            `yaml:"strict_online_window_seconds"`
	OfflineAlertThrottleMinutes int            `yaml:"offline_alert_throttle_minutes"`
	HistoryLimit                int            `yaml:"history_limit"`

	// Seed values written once when the feeder row does not exist yet.
	DefaultCooldownHours           int `yaml:"default_cooldown_hours"`
	DefaultCooldownMinutes         int `yaml:"default_cooldown_minutes"`
	DefaultReservationDelayMinutes int `yaml:"default_reservation_delay_minutes"`
	DefaultAutoFeedDelayMinutes    int `yaml:"default_auto_feed_delay_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	f := &cfg.Feeder
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", f.Timezone, err)
	}
	f.Location = loc

	if f.CheckIntervalSeconds <= 0 {
		f.CheckIntervalSeconds = 60
	}
	f.CheckInterval = time.Duration(f.CheckIntervalSeconds) * time.Second

	if f.StoreTimeoutSeconds <= 0 {
		f.StoreTimeoutSeconds = 6
	}
	f.StoreTimeout = time.Duration(f.StoreTimeoutSeconds) * time.Second

	if f.OnlineWindowSeconds <= 0 {
		f.OnlineWindowSeconds = 60
	}
	if f.StrictOnlineWindowSeconds <= 0 {
		f.StrictOnlineWindowSeconds = 120
	}
	if f.OfflineAlertThrottleMinutes <= 0 {
		f.OfflineAlertThrottleMinutes = 30
	}
	if f.HistoryLimit <= 0 {
		f.HistoryLimit = 20
	}
	if f.DefaultCooldownHours <= 0 && f.DefaultCooldownMinutes <= 0 {
		log.Printf("feeder.default_cooldown is not set; defaulting to 8 hours")
		f.DefaultCooldownHours = 8
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Chat.TimeoutSeconds <= 0 {
		cfg.Chat.TimeoutSeconds = 5
	}
	cfg.Chat.Timeout = time.Duration(cfg.Chat.TimeoutSeconds) * time.Second

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}
	if cfg.WorkerPool.TaskTimeoutSeconds <= 0 {
		cfg.WorkerPool.TaskTimeoutSeconds = 8
	}
	cfg.WorkerPool.TaskTimeout = time.Duration(cfg.WorkerPool.TaskTimeoutSeconds) * time.Second

	return nil
}

// OnlineWindow is the tolerant heartbeat freshness window used by periodic checks.
func (f FeederConfig) OnlineWindow() time.Duration {
	return time.Duration(f.OnlineWindowSeconds) * time.Second
}

// StrictOnlineWindow is the heartbeat freshness window used for operator feeds.
func (f FeederConfig) StrictOnlineWindow() time.Duration {
	return time.Duration(f.StrictOnlineWindowSeconds) * time.Second
}

// OfflineAlertThrottle is the minimum gap between two device offline alerts.
func (f FeederConfig) OfflineAlertThrottle() time.Duration {
	return time.Duration(f.OfflineAlertThrottleMinutes) * time.Minute
}
