package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Queue         QueueConfig         `yaml:"queue"`
	Stream        StreamConfig        `yaml:"stream"`
	Push          PushConfig          `yaml:"push"`
	WorkerPool    WorkerPoolConfig    `yaml:"worker_pool"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// QueueConfig holds the waiting-list tuning knobs.
type QueueConfig struct {
	PerSlotMinutes     int           `yaml:"per_slot_minutes"`
	ClaimWindowMinutes int           `yaml:"claim_window_minutes"`
	SweepIntervalSecs  int           `yaml:"sweep_interval_seconds"`
	ClaimWindow        time.Duration `yaml:"-"` // Derived, ignored by YAML parser
	SweepInterval      time.Duration `yaml:"-"`
}

// StreamConfig holds settings for the live event streams.
type StreamConfig struct {
	HeartbeatSeconds int           `yaml:"heartbeat_seconds"`
	BufferSize       int           `yaml:"buffer_size"`
	Heartbeat        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the push worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// NotificationsConfig controls stored-notification retention.
type NotificationsConfig struct {
	RetentionDays     int           `yaml:"retention_days"`
	PurgeIntervalMins int           `yaml:"purge_interval_minutes"`
	PurgeInterval     time.Duration `yaml:"-"`
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

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in fallback values and derives duration fields.
func (cfg *Config) ApplyDefaults() {
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
		// Short TTL: the poll path is the correctness backstop for clients
		// that missed a push, so it must converge quickly.
		cfg.Server.CacheTTLSeconds = 3
	}

	if cfg.Queue.PerSlotMinutes <= 0 {
		cfg.Queue.PerSlotMinutes = 15
	}
	if cfg.Queue.ClaimWindowMinutes <= 0 {
		cfg.Queue.ClaimWindowMinutes = 5
	}
	if cfg.Queue.SweepIntervalSecs <= 0 {
		cfg.Queue.SweepIntervalSecs = 30
	}
	cfg.Queue.ClaimWindow = time.Duration(cfg.Queue.ClaimWindowMinutes) * time.Minute
	cfg.Queue.SweepInterval = time.Duration(cfg.Queue.SweepIntervalSecs) * time.Second

	if cfg.Stream.HeartbeatSeconds <= 0 {
		cfg.Stream.HeartbeatSeconds = 30
	}
	if cfg.Stream.BufferSize <= 0 {
		cfg.Stream.BufferSize = 16
	}
	cfg.Stream.Heartbeat = time.Duration(cfg.Stream.HeartbeatSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Notifications.RetentionDays <= 0 {
		cfg.Notifications.RetentionDays = 30
	}
	if cfg.Notifications.PurgeIntervalMins <= 0 {
		cfg.Notifications.PurgeIntervalMins = 60
	}
	cfg.Notifications.PurgeInterval = time.Duration(cfg.Notifications.PurgeIntervalMins) * time.Minute
}
