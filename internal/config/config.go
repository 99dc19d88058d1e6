package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"EstateBank"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"estatebank"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:*"`
	}

	Ledger struct {
		// Driver is "postgres" or "memory".
		Driver      string        `envconfig:"LEDGER_DRIVER" default:"postgres"`
		MaxAttempts int           `envconfig:"RESERVATION_MAX_ATTEMPTS" default:"3"`
		Backoff     time.Duration `envconfig:"RESERVATION_BACKOFF" default:"5ms"`
	}

	Reconcile struct {
		Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
		Workers  int           `envconfig:"RECONCILE_WORKERS" default:"4"`
		// RedisAddr enables the cross-replica sweep lock when set.
		RedisAddr string        `envconfig:"REDIS_ADDR"`
		LockTTL   time.Duration `envconfig:"RECONCILE_LOCK_TTL" default:"30s"`
	}

	Logging LoggingConfig
}

type LoggingConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.Ledger.Driver {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown LEDGER_DRIVER %q: want postgres or memory", cfg.Ledger.Driver)
	}

	return &cfg, nil
}
