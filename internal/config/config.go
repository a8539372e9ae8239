package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"honeypot-service/internal/util"
)

// Config holds the full service configuration, loaded from environment
// variables (optionally seeded from a .env file).
type Config struct {
	Environment string

	Server     ServerConfig
	Honeypot   HoneypotConfig
	Store      StoreConfig
	Clickhouse ClickhouseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Logging    LoggingConfig
}

// ServerConfig configures the management/query API.
type ServerConfig struct {
	Host         string
	Port         int
	APIKey       string // empty disables bearer auth on start/stop commands
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// HoneypotConfig configures the decoy listeners.
type HoneypotConfig struct {
	Host        string
	SSHPort     int
	HTTPPort    int
	FTPPort     int
	AutoStart   []string // protocol names started at boot, e.g. ssh,http,ftp
	MaxSessions int      // per-listener concurrent session cap; 0 = unbounded
}

// StoreConfig selects and tunes the event store backend.
type StoreConfig struct {
	Backend string // "memory" or "clickhouse"
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type RedisConfig struct {
	URL         string // empty disables the alert suppression cache
	Password    string
	DB          int
	PoolSize    int
	SuppressTTL time.Duration // window for duplicate-alert suppression
}

type KafkaConfig struct {
	Brokers    []string // empty disables the alert publisher
	AlertTopic string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: util.GetEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         util.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         util.GetEnvInt("SERVER_PORT", 5000),
			APIKey:       util.GetEnv("API_KEY", ""),
			ReadTimeout:  time.Duration(util.GetEnvInt("SERVER_READ_TIMEOUT_SECONDS", 15)) * time.Second,
			WriteTimeout: time.Duration(util.GetEnvInt("SERVER_WRITE_TIMEOUT_SECONDS", 30)) * time.Second,
			IdleTimeout:  time.Duration(util.GetEnvInt("SERVER_IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		Honeypot: HoneypotConfig{
			Host:        util.GetEnv("HONEYPOT_HOST", "0.0.0.0"),
			SSHPort:     util.GetEnvInt("HONEYPOT_SSH_PORT", 2222),
			HTTPPort:    util.GetEnvInt("HONEYPOT_HTTP_PORT", 8080),
			FTPPort:     util.GetEnvInt("HONEYPOT_FTP_PORT", 2121),
			AutoStart:   splitList(util.GetEnv("HONEYPOT_AUTOSTART", "")),
			MaxSessions: util.GetEnvInt("HONEYPOT_MAX_SESSIONS", 0),
		},
		Store: StoreConfig{
			Backend: util.GetEnv("STORE_BACKEND", "memory"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      util.GetEnv("CLICKHOUSE_URL", "http://localhost:8123"),
			Username: util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: util.GetEnv("CLICKHOUSE_DATABASE", "honeypot"),
		},
		Redis: RedisConfig{
			URL:         util.GetEnv("REDIS_URL", ""),
			Password:    util.GetEnv("REDIS_PASSWORD", ""),
			DB:          util.GetEnvInt("REDIS_DB", 0),
			PoolSize:    util.GetEnvInt("REDIS_POOL_SIZE", 20),
			SuppressTTL: time.Duration(util.GetEnvInt("ALERT_SUPPRESS_TTL_SECONDS", 60)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(util.GetEnv("KAFKA_BROKERS", "")),
			AlertTopic: util.GetEnv("KAFKA_ALERT_TOPIC", "honeypot.alerts"),
		},
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "console"),
		},
	}

	return cfg
}

// GetServerAddress returns the host:port the API server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
