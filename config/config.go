package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	DatabaseURL     string
	Port            int
	EventBufferSize int
	AutoMigrate     bool
}

// Load reads the process environment, filling gaps from the given .env
// files (".env" when none are given). Missing files are ignored and
// variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Port:            5000,
		EventBufferSize: 100,
		AutoMigrate:     true,
	}

	url, ok := lookup("DATABASE_URL")
	if !ok || url == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	cfg.DatabaseURL = url

	var err error
	if cfg.Port, err = intVar(lookup, "PORT", cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.EventBufferSize, err = intVar(lookup, "EVENT_BUFFER_SIZE", cfg.EventBufferSize); err != nil {
		return Config{}, err
	}
	if v, ok := lookup("AUTO_MIGRATE"); ok && v != "" {
		if cfg.AutoMigrate, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("AUTO_MIGRATE: %w", err)
		}
	}
	return cfg, nil
}

func intVar(lookup func(string) (string, bool), name string, fallback int) (int, error) {
	v, ok := lookup(name)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return n, nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
