package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Short-link backend
	Backend BackendConfig `mapstructure:"backend"`

	// Operator session
	Session SessionConfig `mapstructure:"session"`

	// QR rendering and export
	Render RenderConfig `mapstructure:"render"`

	// Export route rate limiting
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type BackendConfig struct {
	// BaseURL is where the API lives.
	BaseURL string `mapstructure:"base_url"`
	// PublicBaseURL prefixes short ids in short URLs and QR data.
	PublicBaseURL string        `mapstructure:"public_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	// Store is "redis" or "memory".
	Store     string        `mapstructure:"store"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	EditorTTL time.Duration `mapstructure:"editor_ttl"`
}

type RenderConfig struct {
	PreviewMinPx   int           `mapstructure:"preview_min_px"`
	PreviewMaxPx   int           `mapstructure:"preview_max_px"`
	ExportMinPx    int           `mapstructure:"export_min_px"`
	ExportMaxPx    int           `mapstructure:"export_max_px"`
	LogoMaxBytes   int64         `mapstructure:"logo_max_bytes"`
	LogoCacheTTL   time.Duration `mapstructure:"logo_cache_ttl"`
	LogoTimeout    time.Duration `mapstructure:"logo_timeout"`
	AuditRetention time.Duration `mapstructure:"audit_retention"`
	AuditPrune     time.Duration `mapstructure:"audit_prune_interval"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("config: backend.base_url is required")
	}
	if c.Backend.PublicBaseURL == "" {
		c.Backend.PublicBaseURL = c.Backend.BaseURL
	}
	switch c.Session.Store {
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("config: session.store is redis but redis is disabled")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown session.store %q", c.Session.Store)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.body_limit", 4<<20)

	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.key_prefix", "powerqr")
	v.SetDefault("session.editor_ttl", 30*time.Minute)

	v.SetDefault("render.preview_min_px", 100)
	v.SetDefault("render.preview_max_px", 350)
	v.SetDefault("render.export_min_px", 256)
	v.SetDefault("render.export_max_px", 4000)
	v.SetDefault("render.logo_max_bytes", 2<<20)
	v.SetDefault("render.logo_cache_ttl", 10*time.Minute)
	v.SetDefault("render.logo_timeout", 5*time.Second)
	v.SetDefault("render.audit_retention", 90*24*time.Hour)
	v.SetDefault("render.audit_prune_interval", time.Hour)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.max_requests", 60)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("postgres.enabled", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("nats.enabled", true)
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Backend
	v.BindEnv("backend.base_url", "BACKEND_URL")
	v.BindEnv("backend.public_base_url", "PUBLIC_BASE_URL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}
