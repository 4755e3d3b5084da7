// Package config loads swaplist settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Session configures `swaplist serve`.
type Session struct {
	Port            string        `env:"SWAPLIST_PORT" envDefault:"5175"`
	BackendURL      string        `env:"SWAPLIST_BACKEND_URL" envDefault:"http://127.0.0.1:8000"`
	UploadTimeout   time.Duration `env:"SWAPLIST_UPLOAD_TIMEOUT" envDefault:"60s"`
	GenerateTimeout time.Duration `env:"SWAPLIST_GENERATE_TIMEOUT" envDefault:"120s"`
	// RedisURL enables cross-instance fan-out of websocket events when set.
	RedisURL string `env:"REDIS_URL"`
	// AllowedOrigin is the websocket origin accepted besides same-host requests.
	AllowedOrigin  string `env:"SWAPLIST_FRONTEND_ORIGIN"`
	MaxUploadBytes int64  `env:"SWAPLIST_MAX_UPLOAD_BYTES" envDefault:"268435456"`
	LogLevel       string `env:"SWAPLIST_LOG_LEVEL" envDefault:"info"`
}

// Backend configures `swaplist backend`.
type Backend struct {
	Port        string `env:"SWAPLIST_BACKEND_PORT" envDefault:"8000"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	StaticDir   string `env:"SWAPLIST_STATIC_DIR" envDefault:"static"`
	// UploadDir holds one temp directory per upload. Empty means os.TempDir.
	UploadDir      string `env:"SWAPLIST_UPLOAD_DIR"`
	MaxUploadBytes int64  `env:"SWAPLIST_MAX_UPLOAD_BYTES" envDefault:"268435456"`
	LogLevel       string `env:"SWAPLIST_LOG_LEVEL" envDefault:"info"`
}

// LoadEnvFile exports the variables of a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error when optional.
func LoadEnvFile(path string, optional bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %q: %w", path, err)
}

func LoadSession() (Session, error) {
	var cfg Session
	if err := envparse.Parse(&cfg); err != nil {
		return Session{}, fmt.Errorf("parse session config: %w", err)
	}
	if cfg.BackendURL == "" {
		return Session{}, errors.New("SWAPLIST_BACKEND_URL must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Session{}, fmt.Errorf("SWAPLIST_MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	return cfg, nil
}

func LoadBackend() (Backend, error) {
	var cfg Backend
	if err := envparse.Parse(&cfg); err != nil {
		return Backend{}, fmt.Errorf("parse backend config: %w", err)
	}
	if cfg.MaxUploadBytes <= 0 {
		return Backend{}, fmt.Errorf("SWAPLIST_MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}
	return cfg, nil
}
