package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable (BILLIARDS_DATABASE_URL, ...).
const EnvPrefix = "BILLIARDS"

// Identity modes.
const (
	IdentityModeJWT  = "jwt"
	IdentityModeOIDC = "oidc"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	ServerAddr string `mapstructure:"server_addr"`
	ServerURL  string `mapstructure:"server_url"`
	Debug      bool   `mapstructure:"debug"`

	// ReadTimeout and WriteTimeout bound each HTTP request.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	DatabaseURL      string `mapstructure:"database_url"`
	MaxDBConnections int    `mapstructure:"max_db_connections"`

	// MatrixPath replaces the embedded permission matrix when set.
	MatrixPath string `mapstructure:"matrix_path"`

	// CookieSecure marks the session cookie Secure. Disable only for local http.
	CookieSecure bool `mapstructure:"cookie_secure"`

	// AllowedOrigins feeds the CORS handler.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Identity      IdentityConfig      `mapstructure:"identity"`
	Session       SessionConfig       `mapstructure:"session"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Audit         AuditConfig         `mapstructure:"audit"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// IdentityConfig selects how credentials are validated.
//
// jwt:  credentials are HS256 tokens issued by this service; refresh is supported.
// oidc: credentials are access tokens from an external issuer, validated against its JWKS.
type IdentityConfig struct {
	Mode string `mapstructure:"mode"`

	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTIssuer        string        `mapstructure:"jwt_issuer"`
	JWTTTL           time.Duration `mapstructure:"jwt_ttl"`
	JWTRefreshWindow time.Duration `mapstructure:"jwt_refresh_window"`

	OIDCIssuer   string `mapstructure:"oidc_issuer"`
	OIDCAudience string `mapstructure:"oidc_audience"`
}

// SessionConfig drives the refresh backoff.
type SessionConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	ExhaustedTTL time.Duration `mapstructure:"exhausted_ttl"`
}

// CacheConfig selects the repository cache backend.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	RedisURL   string        `mapstructure:"redis_url"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

// AuditConfig configures auth event persistence.
type AuditConfig struct {
	ReportEvery  int    `mapstructure:"report_every"`
	BufferSize   int    `mapstructure:"buffer_size"`
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
}

// RateLimitConfig is a per-client token bucket. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// MaintenanceConfig toggles the 503 switch.
type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ObservabilityConfig configures OpenTelemetry export.
type ObservabilityConfig struct {
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool   `mapstructure:"otlp_insecure"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

var defaults = map[string]any{
	"server_addr":        "localhost:8080",
	"server_url":         "http://localhost:8080",
	"debug":              false,
	"read_timeout":       15 * time.Second,
	"write_timeout":      30 * time.Second,
	"database_url":       "",
	"max_db_connections": 25,
	"matrix_path":        "",
	"cookie_secure":      true,
	"allowed_origins":    []string{},

	"identity.mode":               IdentityModeJWT,
	"identity.jwt_secret":         "",
	"identity.jwt_issuer":         "billiardsd",
	"identity.jwt_ttl":            15 * time.Minute,
	"identity.jwt_refresh_window": 24 * time.Hour,
	"identity.oidc_issuer":        "",
	"identity.oidc_audience":      "",

	"session.max_retries":   3,
	"session.base_delay":    200 * time.Millisecond,
	"session.max_delay":     2 * time.Second,
	"session.exhausted_ttl": 5 * time.Minute,

	"cache.backend":     CacheBackendMemory,
	"cache.ttl":         5 * time.Minute,
	"cache.max_entries": 10000,
	"cache.redis_url":   "",
	"cache.key_prefix":  "billiards:",

	"audit.report_every":  100,
	"audit.buffer_size":   1024,
	"audit.amqp_url":      "",
	"audit.amqp_exchange": "billiards.auth",

	"rate_limit.rps":   0.0,
	"rate_limit.burst": 20,

	"maintenance.enabled": false,

	"observability.otlp_endpoint":   "",
	"observability.otlp_insecure":   false,
	"observability.service_name":    "billiardsd",
	"observability.service_version": "dev",
	"observability.environment":     "development",
}

// Load reads configuration from the global viper instance: defaults, an optional
// config file already read by the caller, BILLIARDS_* environment variables and a
// .env file in the working directory.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.GetViper()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (env: %s_DATABASE_URL)", EnvPrefix)
	}
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (env: %s_SERVER_URL)", EnvPrefix)
	}

	switch c.Identity.Mode {
	case IdentityModeJWT:
		if c.Identity.JWTSecret == "" {
			return fmt.Errorf("identity.jwt_secret is required in jwt mode")
		}
	case IdentityModeOIDC:
		if c.Identity.OIDCIssuer == "" {
			return fmt.Errorf("identity.oidc_issuer is required in oidc mode")
		}
	default:
		return fmt.Errorf("identity.mode must be %q or %q, got %q", IdentityModeJWT, IdentityModeOIDC, c.Identity.Mode)
	}

	if c.Session.MaxRetries < 1 {
		return fmt.Errorf("session.max_retries must be at least 1")
	}
	if c.Session.BaseDelay <= 0 || c.Session.MaxDelay <= 0 {
		return fmt.Errorf("session delays must be positive")
	}
	if c.Session.BaseDelay > c.Session.MaxDelay {
		return fmt.Errorf("session.base_delay (%s) exceeds session.max_delay (%s)", c.Session.BaseDelay, c.Session.MaxDelay)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.Cache.Backend)
	}

	if c.Audit.ReportEvery < 1 {
		return fmt.Errorf("audit.report_every must be at least 1")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1 when rate limiting is enabled")
	}
	return nil
}

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
