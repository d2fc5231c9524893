package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Tally"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"tally"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
		// Apply pending migrations when the API starts.
		Migrate bool `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
		WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	}

	Auth struct {
		JWTSecret string `envconfig:"AUTH_JWT_SECRET" required:"true"`
		Issuer    string `envconfig:"AUTH_JWT_ISSUER" default:""`
		Audience  string `envconfig:"AUTH_JWT_AUDIENCE" default:""`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Outbox struct {
		KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
		KafkaTopic   string        `envconfig:"KAFKA_TOPIC" default:"ledger-events"`
		PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
		BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
		MaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"5"`
	}
}

func (c *Config) ConnectionString() string {
	return connectionString(c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// connectionString escapes every component, so credentials may contain
// URL delimiters.
func connectionString(user, password, host string, port int, name, sslMode string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	return u.String()
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// DBConfig is the subset of Config needed by tools that only talk to the
// database.
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	Name     string `envconfig:"DB_NAME" default:"tally"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

func (c *DBConfig) ConnectionString() string {
	return connectionString(c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func LoadDB() (*DBConfig, error) {
	var cfg DBConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// TUIConfig configures the terminal client, which acts for a single owner.
type TUIConfig struct {
	DBConfig

	OwnerID uuid.UUID `envconfig:"TUI_OWNER_ID" required:"true"`
}

func LoadTUI() (*TUIConfig, error) {
	var cfg TUIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
