package config

import (
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. BILLIARD_DATABASE_DSN.
const EnvPrefix = "BILLIARD"

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DATABASE"`
	Sweep      SweepConfig      `yaml:"sweep" envconfig:"SWEEP"`
	Booking    BookingConfig    `yaml:"booking" envconfig:"BOOKING"`
	Push       PushConfig       `yaml:"push" envconfig:"PUSH"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool" envconfig:"WORKER_POOL"`
	Events     EventsConfig     `yaml:"events" envconfig:"EVENTS"`
	Redis      RedisConfig      `yaml:"redis" envconfig:"REDIS"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" envconfig:"PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" envconfig:"RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" envconfig:"CACHE_TTL_SECONDS"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" envconfig:"CONN_MAX_LIFETIME_MINUTES"`
	LogLevel               string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	// EnableExclusionConstraint adds a GiST exclusion constraint on postgres so
	// the database itself rejects two active bookings on one table.
	EnableExclusionConstraint bool `yaml:"enable_exclusion_constraint" envconfig:"ENABLE_EXCLUSION_CONSTRAINT"`
}

// SweepConfig controls the periodic reconciliation sweep.
type SweepConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"ENABLED"`
	IntervalSeconds int           `yaml:"interval_seconds" envconfig:"INTERVAL_SECONDS"`
	Interval        time.Duration `yaml:"-" ignored:"true"`
	Lock            LockConfig    `yaml:"lock" envconfig:"LOCK"`
}

// LockConfig enables the cross-instance sweep lock held in Redis.
type LockConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Key     string `yaml:"key" envconfig:"KEY"`
}

// BookingConfig holds the booking rules.
type BookingConfig struct {
	Timezone string         `yaml:"timezone" envconfig:"TIMEZONE"`
	Location *time.Location `yaml:"-" ignored:"true"`
	MaxHours float64        `yaml:"max_hours" envconfig:"MAX_HOURS"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" envconfig:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" envconfig:"SUBJECT"`
	TTL        int    `yaml:"ttl" envconfig:"TTL"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size" envconfig:"SIZE"`
}

// EventsConfig configures the RabbitMQ booking event publisher.
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	URL      string `yaml:"url" envconfig:"URL"`
	Exchange string `yaml:"exchange" envconfig:"EXCHANGE"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// Load reads the configuration from the given path, applies environment
// overrides and fills in defaults. A missing file is not an error as long as
// the environment supplies what is needed.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Printf("config file %s not found; using environment and defaults", path)
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5500
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:billiard.db?_busy_timeout=5000"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 60
	}
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second
	if cfg.Sweep.Lock.Key == "" {
		cfg.Sweep.Lock.Key = "billiard:sweep"
	}

	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = "Asia/Jakarta"
	}
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Booking.Timezone, err)
	}
	cfg.Booking.Location = loc
	if cfg.Booking.MaxHours <= 0 {
		cfg.Booking.MaxHours = 12
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "billiard.bookings"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	return nil
}
