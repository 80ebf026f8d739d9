package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	EngineAPIURL string `yaml:"engine_api_url"`
	HTTPAddr     string `yaml:"http_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	LeaderboardSize     int           `yaml:"leaderboard_size"`
	LeaderboardCacheTTL time.Duration `yaml:"leaderboard_cache_ttl"`

	EngineTimeout time.Duration `yaml:"engine_timeout"`
	EngineRetries int           `yaml:"engine_retries"`
}

// Load reads configuration from the environment, optionally overlaid on
// a YAML file named by CONFIG_FILE. Environment variables win.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:            ":8080",
		LeaderboardSize:     10,
		LeaderboardCacheTTL: time.Hour,
		EngineTimeout:       10 * time.Second,
		EngineRetries:       2,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("ENGINE_API_URL")); v != "" {
		cfg.EngineAPIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LeaderboardSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LEADERBOARD_CACHE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LeaderboardCacheTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.EngineTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EngineRetries = n
		}
	}

	if cfg.EngineAPIURL == "" {
		return nil, errors.New("ENGINE_API_URL is required")
	}

	return cfg, nil
}
