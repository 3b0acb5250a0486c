package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend names accepted for storage and the event bus
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the server configuration, read from LIVEQUIZ_* environment variables
type Config struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT" envDefault:"8080"`

	// HTTP server timeouts; event streams are exempt from WriteTimeout
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Storage selects the live session store; Bus defaults to the same backend
	Storage  string `env:"STORAGE" envDefault:"memory"`
	Bus      string `env:"BUS"`
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// DatabasePath is the SQLite file holding quizzes and results
	DatabasePath string `env:"DB_PATH" envDefault:":memory:"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	BanWindow      time.Duration `env:"BAN_WINDOW" envDefault:"5m"`
	RevealWindow   time.Duration `env:"REVEAL_WINDOW" envDefault:"5s"`
	StartCountdown time.Duration `env:"START_COUNTDOWN" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	return parse(env.Options{Prefix: "LIVEQUIZ_"})
}

// LoadFrom reads the configuration from the given variables instead of the process environment
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: "LIVEQUIZ_", Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Bus == "" {
		cfg.Bus = cfg.Storage
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that env parsing cannot
func (c Config) Validate() error {
	var errs []error
	if !validBackend(c.Storage) {
		errs = append(errs, fmt.Errorf("LIVEQUIZ_STORAGE must be %q or %q, got %q", BackendMemory, BackendRedis, c.Storage))
	}
	if !validBackend(c.Bus) {
		errs = append(errs, fmt.Errorf("LIVEQUIZ_BUS must be %q or %q, got %q", BackendMemory, BackendRedis, c.Bus))
	}
	if c.Storage == BackendMemory && c.Bus == BackendRedis {
		errs = append(errs, errors.New("a redis bus needs redis storage"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("LIVEQUIZ_PORT out of range: %d", c.Port))
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("LIVEQUIZ_*_TIMEOUT values must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("LIVEQUIZ_SESSION_TTL must be positive"))
	}
	if c.RevealWindow <= 0 {
		errs = append(errs, errors.New("LIVEQUIZ_REVEAL_WINDOW must be positive"))
	}
	if c.StartCountdown < 0 {
		errs = append(errs, errors.New("LIVEQUIZ_START_COUNTDOWN must not be negative"))
	}
	return errors.Join(errs...)
}

func validBackend(name string) bool {
	return name == BackendMemory || name == BackendRedis
}

// Logger builds the process logger writing to w
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
