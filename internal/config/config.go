// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cache backends accepted by KUBEHUB_CACHE_BACKEND.
const (
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// topicPattern mirrors GitHub's topic naming rules.
var topicPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,49}$`)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	WriteTimeout time.Duration
	LogLevel     slog.Level

	Topic       string
	TargetCount int

	GitHubToken  string
	GitHubAPIURL string
	RequestDelay time.Duration

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DBPath        string
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional. Defaults: KUBEHUB_LISTEN_ADDR (127.0.0.1:8080),
// KUBEHUB_TOPIC (kubernetes), KUBEHUB_TARGET_COUNT (500), KUBEHUB_GITHUB_API_URL
// (https://api.github.com/), KUBEHUB_REQUEST_DELAY (5s), KUBEHUB_CACHE_TTL (1h),
// KUBEHUB_CACHE_BACKEND (redis), KUBEHUB_REDIS_ADDR (localhost:6379), KUBEHUB_REDIS_DB (0),
// KUBEHUB_DB_PATH (kubehub.db), KUBEHUB_WRITE_TIMEOUT (0, none), KUBEHUB_LOG_LEVEL (info).
// Without KUBEHUB_GITHUB_TOKEN the GitHub search API is called anonymously.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    "127.0.0.1:8080",
		LogLevel:      slog.LevelInfo,
		Topic:         "kubernetes",
		TargetCount:   500,
		GitHubToken:   os.Getenv("KUBEHUB_GITHUB_TOKEN"),
		GitHubAPIURL:  "https://api.github.com/",
		RequestDelay:  5 * time.Second,
		CacheBackend:  CacheBackendRedis,
		CacheTTL:      time.Hour,
		RedisAddr:     "localhost:6379",
		RedisPassword: os.Getenv("KUBEHUB_REDIS_PASSWORD"),
		DBPath:        "kubehub.db",
	}

	if v, ok := os.LookupEnv("KUBEHUB_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("KUBEHUB_WRITE_TIMEOUT"); ok {
		parsed, err := parseDuration("KUBEHUB_WRITE_TIMEOUT", v)
		if err != nil {
			return nil, err
		}
		cfg.WriteTimeout = parsed
	}

	if v, ok := os.LookupEnv("KUBEHUB_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("KUBEHUB_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("KUBEHUB_TOPIC"); ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if !topicPattern.MatchString(v) || v == "health" {
			return nil, fmt.Errorf("KUBEHUB_TOPIC has invalid topic %q", v)
		}
		cfg.Topic = v
	}

	if v, ok := os.LookupEnv("KUBEHUB_TARGET_COUNT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("KUBEHUB_TARGET_COUNT must be a non-negative integer, got %q", v)
		}
		cfg.TargetCount = parsed
	}

	if v, ok := os.LookupEnv("KUBEHUB_GITHUB_API_URL"); ok && v != "" {
		cfg.GitHubAPIURL = v
	}

	if v, ok := os.LookupEnv("KUBEHUB_REQUEST_DELAY"); ok {
		parsed, err := parseDuration("KUBEHUB_REQUEST_DELAY", v)
		if err != nil {
			return nil, err
		}
		cfg.RequestDelay = parsed
	}

	if v, ok := os.LookupEnv("KUBEHUB_CACHE_BACKEND"); ok {
		switch v {
		case CacheBackendRedis, CacheBackendSQLite:
			cfg.CacheBackend = v
		default:
			return nil, fmt.Errorf("KUBEHUB_CACHE_BACKEND must be %q or %q, got %q", CacheBackendRedis, CacheBackendSQLite, v)
		}
	}

	if v, ok := os.LookupEnv("KUBEHUB_CACHE_TTL"); ok {
		parsed, err := parseDuration("KUBEHUB_CACHE_TTL", v)
		if err != nil {
			return nil, err
		}
		if parsed < time.Millisecond {
			return nil, fmt.Errorf("KUBEHUB_CACHE_TTL must be at least 1ms, got %s", parsed)
		}
		cfg.CacheTTL = parsed
	}

	if v, ok := os.LookupEnv("KUBEHUB_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}

	if v, ok := os.LookupEnv("KUBEHUB_REDIS_DB"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("KUBEHUB_REDIS_DB must be a non-negative integer, got %q", v)
		}
		cfg.RedisDB = parsed
	}

	if v, ok := os.LookupEnv("KUBEHUB_DB_PATH"); ok {
		cfg.DBPath = v
	}

	return cfg, nil
}

// parseDuration parses a non-negative duration from the named variable.
func parseDuration(name, v string) (time.Duration, error) {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", name, v, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", name, parsed)
	}
	return parsed, nil
}
