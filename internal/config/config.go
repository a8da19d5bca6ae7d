// Package config provides YAML-based configuration loading for boardsync.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SecretEnv names the environment variable consulted when auth.secret is empty.
const SecretEnv = "BSYNC_AUTH_SECRET"

// Config is the top-level boardsync configuration, loaded from bsync.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Presence  PresenceConfig  `yaml:"presence"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Audit     AuditConfig     `yaml:"audit"`
	Relay     RelayConfig     `yaml:"relay"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects and addresses the relational store.
// For sqlite, DSN is a file path (or ":memory:"). For mysql, DSN wins when set;
// otherwise it is built from the discrete fields.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AuthConfig configures bearer token signing and validation.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// CacheConfig selects the response cache backend.
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory, redis, none
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
}

// PresenceConfig tunes the presence registry and connection liveness checks.
type PresenceConfig struct {
	DedupeUsers  bool          `yaml:"dedupe_users"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

// RealtimeConfig tunes the websocket transport.
type RealtimeConfig struct {
	SendBuffer int `yaml:"send_buffer"`
}

// AuditConfig schedules the sequence auditor. An empty schedule disables it.
type AuditConfig struct {
	Schedule string `yaml:"schedule"`
	Repair   bool   `yaml:"repair"`
}

// RelayConfig holds optional chat mirrors for domain events.
type RelayConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig identifies a bot and the channel it posts to.
type ChatConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether both token and channel are configured.
func (c ChatConfig) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// TelemetryConfig configures trace export. Empty endpoint means no export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClientConfig holds defaults for the move client and its debounce queue.
type ClientConfig struct {
	QuietPeriod    time.Duration `yaml:"quiet_period"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "boardsync.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv(SecretEnv)
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "boardsync"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Second
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "bsync:cache"
	}
	if c.Presence.PingInterval == 0 {
		c.Presence.PingInterval = 30 * time.Second
	}
	if c.Presence.PongTimeout == 0 {
		c.Presence.PongTimeout = 90 * time.Second
	}
	if c.Realtime.SendBuffer == 0 {
		c.Realtime.SendBuffer = 64
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "boardsync"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Client.QuietPeriod == 0 {
		c.Client.QuietPeriod = 300 * time.Millisecond
	}
	if c.Client.RequestTimeout == 0 {
		c.Client.RequestTimeout = 10 * time.Second
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Auth.Secret == "" {
		errs = append(errs, "auth.secret is required (or set "+SecretEnv+")")
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q must be memory, redis or none", c.Cache.Backend))
	}
	if c.Presence.PongTimeout <= c.Presence.PingInterval {
		errs = append(errs, "presence.pong_timeout must exceed presence.ping_interval")
	}
	if c.Realtime.SendBuffer < 0 {
		errs = append(errs, "realtime.send_buffer must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
