package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"zimmet/pkg/platform/strings"
)

// EnvPrefix is prepended to every key, e.g. ZIMMET_ADDR.
const EnvPrefix = "zimmet"

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENV" default:"development"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	// BootstrapAdminEmail is made an active ADMIN at startup when set.
	BootstrapAdminEmail string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`

	JWT    JWTConfig    `envconfig:"JWT"`
	Ledger LedgerConfig `envconfig:"LEDGER"`
	Redis  RedisConfig  `envconfig:"REDIS"`
	Kafka  KafkaConfig  `envconfig:"KAFKA"`
	Outbox OutboxConfig `envconfig:"OUTBOX"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	SigningKey string        `envconfig:"SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	Issuer     string        `envconfig:"ISSUER" default:"zimmet"`
	Audience   string        `envconfig:"AUDIENCE" default:"zimmet-web"`
	TTL        time.Duration `envconfig:"TTL" default:"8h"`
}

// LedgerConfig tunes custody ledger behaviour.
type LedgerConfig struct {
	OverdueThreshold time.Duration `envconfig:"OVERDUE_THRESHOLD" default:"15m"`
	TxTimeout        time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
}

// RedisConfig configures the notification relay. Empty URL keeps the relay in-process.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig configures the ledger event stream. Empty brokers disables publishing.
type KafkaConfig struct {
	Brokers  string `envconfig:"BROKERS"`
	Topic    string `envconfig:"TOPIC" default:"zimmet.custody.events"`
	ClientID string `envconfig:"CLIENT_ID" default:"zimmet"`
}

// BrokerList splits the comma separated broker setting.
func (k KafkaConfig) BrokerList() []string {
	return strings.SplitList(k.Brokers)
}

// Enabled reports whether a broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.BrokerList()) > 0
}

// OutboxConfig configures the outbox publishing worker.
type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"100"`
}

// AllowedOrigins returns the CORS allow-list.
func (s Server) AllowedOrigins() []string {
	return strings.SplitList(s.CORSOrigins)
}

// IsProduction reports whether the process runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Load reads an optional .env file then the process environment.
func Load() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Server{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	if s.IsProduction() && s.JWT.SigningKey == devSigningKey {
		return errors.New("ZIMMET_JWT_SIGNING_KEY must be set in production")
	}
	if s.Ledger.OverdueThreshold <= 0 {
		return errors.New("ZIMMET_LEDGER_OVERDUE_THRESHOLD must be positive")
	}
	if s.Outbox.BatchSize <= 0 {
		return errors.New("ZIMMET_OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}
