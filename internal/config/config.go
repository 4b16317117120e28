package config

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Log    LogConfig
	OTP    OTPConfig
	Redis  RedisConfig
	Queue  QueueConfig
	Auth   AuthConfig
	Notify NotifyConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"coupon_wallet"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
	Migrate  bool   `envconfig:"DB_MIGRATE" default:"false"`
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped.
func (c DBConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("pool_max_conns", strconv.Itoa(c.MaxConns))
	q.Set("pool_min_conns", strconv.Itoa(c.MinConns))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// OTPConfig controls one-time passcode issuance and verification.
// ReturnCode hands the code back to the redeeming terminal instead of only
// dispatching it; enable it for same-device flows and local development.
type OTPConfig struct {
	TTL            time.Duration `envconfig:"OTP_TTL" default:"10m"`
	MaxAttempts    int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	HashCost       int           `envconfig:"OTP_HASH_COST" default:"10"`
	ResendInterval time.Duration `envconfig:"OTP_RESEND_INTERVAL" default:"60s"`
	ReturnCode     bool          `envconfig:"OTP_RETURN_CODE" default:"false"`
}

// RedisConfig holds the Redis connection used for OTP resend throttling.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"cw"`
}

// QueueConfig holds asynq settings. The queue shares the Redis connection
// settings from RedisConfig.
type QueueConfig struct {
	Enabled     bool   `envconfig:"QUEUE_ENABLED" default:"false"`
	Name        string `envconfig:"QUEUE_NAME" default:"default"`
	Concurrency int    `envconfig:"QUEUE_CONCURRENCY" default:"10"`
	SweepCron   string `envconfig:"CLAIM_SWEEP_CRON" default:"@every 5m"`
	SweepBatch  int    `envconfig:"CLAIM_SWEEP_BATCH" default:"500"`
}

// NotifyConfig controls delivery of customer notifications. Without a
// webhook URL messages are only logged, with their content withheld.
type NotifyConfig struct {
	WebhookURL string        `envconfig:"NOTIFY_WEBHOOK_URL" default:""`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`
}

// AuthConfig holds the shared secret used to verify identity-provider tokens.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:"change-me"` // CHANGE IN PRODUCTION
	JWTIssuer string `envconfig:"AUTH_JWT_ISSUER" default:""`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
