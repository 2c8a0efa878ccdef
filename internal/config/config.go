package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config groups the settings of both binaries. Every section is read
// with fully qualified variable names, e.g. DB_HOST.
type Config struct {
	App       AppConfig
	Remote    RemoteConfig
	Session   SessionConfig
	DB        DBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"user-manager"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Port     string `envconfig:"APP_PORT" default:"8087"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// RemoteConfig points at the demo users API.
type RemoteConfig struct {
	BaseURL string        `envconfig:"REMOTE_BASE_URL" default:"https://jsonplaceholder.typicode.com"`
	Timeout time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
}

type SessionConfig struct {
	Secret string        `envconfig:"SESSION_SECRET" default:"change-me-in-production"`
	TTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"user_manager"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

type RedisConfig struct {
	Host          string `envconfig:"REDIS_HOST"`
	Port          string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

type RabbitMQConfig struct {
	URL      string `envconfig:"RABBITMQ_URL"`
	Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"user_events"`
	Queue    string `envconfig:"RABBITMQ_QUEUE" default:"user_activity"`
}

type RateLimitConfig struct {
	Capacity   int     `envconfig:"RATE_LIMIT_CAPACITY" default:"20"`
	RefillRate float64 `envconfig:"RATE_LIMIT_REFILL_RATE" default:"10"`
}

type WorkerConfig struct {
	Count       int    `envconfig:"WORKER_COUNT" default:"3"`
	MetricsPort string `envconfig:"WORKER_METRICS_PORT" default:"8088"`
}

// Enabled reports whether a Postgres host was configured.
func (c DBConfig) Enabled() bool { return c.Host != "" }

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool { return c.Host != "" }

// Enabled reports whether a RabbitMQ URL was configured.
func (c RabbitMQConfig) Enabled() bool { return c.URL != "" }

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	sections := []interface{}{
		&cfg.App,
		&cfg.Remote,
		&cfg.Session,
		&cfg.DB,
		&cfg.Redis,
		&cfg.RabbitMQ,
		&cfg.RateLimit,
		&cfg.Worker,
	}
	// Processing sections on their own with an empty prefix keeps
	// envconfig from falling back to bare names such as HOST or PORT.
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
