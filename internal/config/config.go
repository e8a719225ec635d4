package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/config"
)

const defaultSessionSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the access service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ACCESS_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"doorpro"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"doorpro_secret"`
	PostgresDB   string `env:"ACCESS_DB_NAME" envDefault:"access_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Session cookie
	SessionSecret string        `env:"SESSION_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Token lifecycle
	SweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"5m"`

	// Isolation gate
	GateTimeout time.Duration `env:"GATE_TIMEOUT" envDefault:"5s"`

	// Audit trail
	AuditBufferSize int `env:"AUDIT_BUFFER_SIZE" envDefault:"1024"`

	// Login rate limiting (per client IP)
	LoginRatePerSec float64 `env:"LOGIN_RATE_PER_SEC" envDefault:"1"`
	LoginRateBurst  int     `env:"LOGIN_RATE_BURST" envDefault:"5"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load access config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.AuditBufferSize < 1 {
		return nil, fmt.Errorf("invalid audit buffer size: %d", cfg.AuditBufferSize)
	}
	if cfg.SweepInterval < time.Second {
		return nil, fmt.Errorf("token sweep interval too short: %s", cfg.SweepInterval)
	}

	// In non-development environments, require an explicitly set, strong
	// session secret.
	if cfg.Environment != "development" {
		if cfg.SessionSecret == defaultSessionSecret {
			return nil, fmt.Errorf("SESSION_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.SessionSecret) < 32 {
			return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long, got %d", len(cfg.SessionSecret))
		}
	}

	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
