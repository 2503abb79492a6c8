package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" default:"development"`
	ServerPort string `env:"SERVER_PORT" default:"8080"`

	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR" default:"migrations"`

	RedisURL string `env:"REDIS_URL"`

	JWTSecret string `env:"JWT_SECRET"`

	// Token lifetimes in seconds.
	AccessTokenMaxAge  int `env:"ACCESS_TOKEN_MAX_AGE" default:"900"`
	RefreshTokenMaxAge int `env:"REFRESH_TOKEN_MAX_AGE" default:"2592000"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// Per-user vote throttle: VoteLimit votes per VoteWindow.
	VoteLimit  int           `env:"VOTE_RATE_LIMIT" default:"30"`
	VoteWindow time.Duration `env:"VOTE_RATE_WINDOW" default:"1m"`

	// Per-IP request throttle.
	HTTPRatePerSecond float64 `env:"HTTP_RATE_PER_SECOND" default:"20"`
	HTTPRateBurst     int     `env:"HTTP_RATE_BURST" default:"40"`

	// TrustProxy honours X-Forwarded-For for the connection address.
	TrustProxy bool `env:"TRUST_PROXY" default:"false"`

	WorkerCount int `env:"WORKER_COUNT" default:"2"`
	// WorkerConsumerPrefix names this replica in the stream consumer group;
	// empty means the hostname.
	WorkerConsumerPrefix string `env:"WORKER_CONSUMER_PREFIX"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"JWT_SECRET":   cfg.JWTSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.AccessTokenMaxAge <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_MAX_AGE must be positive, got %d", cfg.AccessTokenMaxAge)
	}
	if cfg.RefreshTokenMaxAge <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_MAX_AGE must be positive, got %d", cfg.RefreshTokenMaxAge)
	}
	if cfg.VoteLimit <= 0 || cfg.VoteWindow <= 0 {
		return fmt.Errorf("vote rate limit must be positive, got %d per %s", cfg.VoteLimit, cfg.VoteWindow)
	}

	return nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
