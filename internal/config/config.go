// Package config loads application configuration from defaults, an optional
// YAML file and SLATRACKER_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/domain"
	"github.com/AbubakarMahmood1/Incident-SLA-Tracker/internal/sla"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: SLATRACKER_DATABASE__URL sets database.url.
const EnvPrefix = "SLATRACKER_"

// Lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config is the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	SLA           SLAConfig           `koanf:"sla"`
	Scanner       ScannerConfig       `koanf:"scanner"`
	Redis         RedisConfig         `koanf:"redis"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	SecretKey string `koanf:"secret_key"`
	Issuer    string `koanf:"issuer"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// TargetsConfig holds the deadline offsets of one priority.
type TargetsConfig struct {
	Response   time.Duration `koanf:"response"`
	Resolution time.Duration `koanf:"resolution"`
}

// PolicyConfig holds the offset table per priority.
type PolicyConfig struct {
	Critical TargetsConfig `koanf:"critical"`
	High     TargetsConfig `koanf:"high"`
	Medium   TargetsConfig `koanf:"medium"`
	Low      TargetsConfig `koanf:"low"`
}

// Policy converts the offset table to an sla.Policy.
func (p PolicyConfig) Policy() sla.Policy {
	return sla.Policy{
		domain.PriorityCritical: sla.Targets(p.Critical),
		domain.PriorityHigh:     sla.Targets(p.High),
		domain.PriorityMedium:   sla.Targets(p.Medium),
		domain.PriorityLow:      sla.Targets(p.Low),
	}
}

// SLAConfig holds SLA service settings.
type SLAConfig struct {
	Policy           PolicyConfig  `koanf:"policy"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
}

// LockConfig holds scan lock settings.
type LockConfig struct {
	Backend string        `koanf:"backend"`
	Key     string        `koanf:"key"`
	TTL     time.Duration `koanf:"ttl"`
}

// ScannerConfig holds breach scanner settings.
type ScannerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Interval         time.Duration `koanf:"interval"`
	BatchSize        int           `koanf:"batch_size"`
	Workers          int           `koanf:"workers"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	WarningRatio     float64       `koanf:"warning_ratio"`
	Lock             LockConfig    `koanf:"lock"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// NotificationsConfig holds notification delivery settings.
type NotificationsConfig struct {
	Enabled    bool                         `koanf:"enabled"`
	BaseURL    string                       `koanf:"base_url"`
	Channels   []domain.NotificationChannel `koanf:"channels"`
	Worker     WorkerConfig                 `koanf:"worker"`
	Retry      RetryConfig                  `koanf:"retry"`
	Email      EmailConfig                  `koanf:"email"`
	Telegram   TelegramConfig               `koanf:"telegram"`
	Mattermost MattermostConfig             `koanf:"mattermost"`
	Kafka      KafkaConfig                  `koanf:"kafka"`
}

// WorkerConfig holds notification worker settings.
type WorkerConfig struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	NumWorkers   int           `koanf:"num_workers"`
	SendTimeout  time.Duration `koanf:"send_timeout"`
	StuckAfter   time.Duration `koanf:"stuck_after"`
}

// RetryConfig holds notification retry settings.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled      bool          `koanf:"enabled"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUser     string        `koanf:"smtp_user"`
	SMTPPassword string        `koanf:"smtp_password"`
	FromAddress  string        `koanf:"from_address"`
	BatchSize    int           `koanf:"batch_size"`
	Timeout      time.Duration `koanf:"timeout"`
}

// TelegramConfig holds telegram bot settings.
type TelegramConfig struct {
	Enabled   bool    `koanf:"enabled"`
	BotToken  string  `koanf:"bot_token"`
	RateLimit float64 `koanf:"rate_limit"`
}

// MattermostConfig holds Mattermost webhook settings.
type MattermostConfig struct {
	Username string        `koanf:"username"`
	IconURL  string        `koanf:"icon_url"`
	Timeout  time.Duration `koanf:"timeout"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Brokers      []string      `koanf:"brokers"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	policy := sla.DefaultPolicy()
	scanner := sla.DefaultScannerConfig()

	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			AutoMigrate:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		JWT: JWTConfig{
			Issuer: "sla-tracker",
		},
		SLA: SLAConfig{
			Policy: PolicyConfig{
				Critical: TargetsConfig(policy[domain.PriorityCritical]),
				High:     TargetsConfig(policy[domain.PriorityHigh]),
				Medium:   TargetsConfig(policy[domain.PriorityMedium]),
				Low:      TargetsConfig(policy[domain.PriorityLow]),
			},
			OperationTimeout: 5 * time.Second,
		},
		Scanner: ScannerConfig{
			Enabled:          true,
			Interval:         scanner.Interval,
			BatchSize:        scanner.BatchSize,
			Workers:          scanner.Workers,
			OperationTimeout: scanner.OperationTimeout,
			WarningRatio:     scanner.WarningRatio,
			Lock: LockConfig{
				Backend: LockBackendLocal,
				Key:     "slatracker:scan-lock",
				TTL:     2 * time.Minute,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Worker: WorkerConfig{
				BatchSize:    100,
				PollInterval: 5 * time.Second,
				NumWorkers:   5,
				SendTimeout:  30 * time.Second,
				StuckAfter:   10 * time.Minute,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        5 * time.Minute,
				BackoffMultiplier: 2.0,
			},
			Email: EmailConfig{
				SMTPPort:  587,
				BatchSize: 50,
				Timeout:   30 * time.Second,
			},
			Telegram: TelegramConfig{
				RateLimit: 25,
			},
			Kafka: KafkaConfig{
				WriteTimeout: 10 * time.Second,
			},
		},
	}
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PathFromEnv returns the config file path set in SLATRACKER_CONFIG.
func PathFromEnv() string {
	return os.Getenv(EnvPrefix + "CONFIG")
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "config" {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

// Validate checks the configuration for invalid values and combinations.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	if err := c.SLA.Policy.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sla.%w", err))
	}

	if c.Scanner.Enabled {
		if c.Scanner.Interval <= 0 {
			errs = append(errs, errors.New("scanner.interval must be positive"))
		}
		if c.Scanner.BatchSize <= 0 {
			errs = append(errs, errors.New("scanner.batch_size must be positive"))
		}
		if c.Scanner.Workers <= 0 {
			errs = append(errs, errors.New("scanner.workers must be positive"))
		}
	}
	if c.Scanner.WarningRatio < 0 || c.Scanner.WarningRatio >= 1 {
		errs = append(errs, errors.New("scanner.warning_ratio must be in [0, 1)"))
	}
	switch c.Scanner.Lock.Backend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis scan lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("scanner.lock.backend %q is not one of local, redis", c.Scanner.Lock.Backend))
	}

	if c.Notifications.Enabled {
		for i, ch := range c.Notifications.Channels {
			if !ch.Type.IsValid() {
				errs = append(errs, fmt.Errorf("notifications.channels[%d]: unknown type %q", i, ch.Type))
			}
			if ch.Target == "" {
				errs = append(errs, fmt.Errorf("notifications.channels[%d]: target is required", i))
			}
		}
		if c.Notifications.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("notifications.retry.max_attempts must be positive"))
		}
		if c.Notifications.Kafka.Enabled && len(c.Notifications.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("notifications.kafka.brokers is required when kafka is enabled"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
