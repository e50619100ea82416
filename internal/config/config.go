// Package config centralizes loading of application configuration from the
// environment. A .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API       APIConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

type APIConfig struct {
	BaseURL     string
	Resource    string
	Namespace   string
	UserAgent   string
	PageSize    int
	Credentials map[string]string
}

type RateLimitConfig struct {
	MaxCalls int
	Window   time.Duration
}

type CacheConfig struct {
	// RedisAddr empty disables the page cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	api, err := buildAPIConfig()
	if err != nil {
		return Config{}, err
	}

	rateLimit, err := buildRateLimitConfig()
	if err != nil {
		return Config{}, err
	}

	cacheCfg, err := buildCacheConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		API:       api,
		RateLimit: rateLimit,
		Cache:     cacheCfg,
		Log: LogConfig{
			Level:  getEnv("PAGEFETCH_LOG_LEVEL", "info"),
			Pretty: getEnv("PAGEFETCH_LOG_PRETTY", "false") == "true",
		},
	}, nil
}

func buildAPIConfig() (APIConfig, error) {
	baseURL := strings.TrimSpace(os.Getenv("PAGEFETCH_BASE_URL"))
	if baseURL == "" {
		return APIConfig{}, fmt.Errorf("PAGEFETCH_BASE_URL is required")
	}

	resource := strings.TrimSpace(os.Getenv("PAGEFETCH_RESOURCE"))
	if resource == "" {
		return APIConfig{}, fmt.Errorf("PAGEFETCH_RESOURCE is required")
	}

	pageSize, err := strconv.Atoi(getEnv("PAGEFETCH_PAGE_SIZE", "50"))
	if err != nil {
		return APIConfig{}, fmt.Errorf("invalid PAGEFETCH_PAGE_SIZE: %w", err)
	}

	credentials, err := parseCredentials(os.Getenv("PAGEFETCH_CREDENTIALS"))
	if err != nil {
		return APIConfig{}, err
	}

	return APIConfig{
		BaseURL:     baseURL,
		Resource:    resource,
		Namespace:   strings.TrimSpace(os.Getenv("PAGEFETCH_NAMESPACE")),
		UserAgent:   getEnv("PAGEFETCH_USER_AGENT", "pagefetch/1.0"),
		PageSize:    pageSize,
		Credentials: credentials,
	}, nil
}

func buildRateLimitConfig() (RateLimitConfig, error) {
	maxCalls, err := strconv.Atoi(getEnv("PAGEFETCH_RATE_MAX_CALLS", "12"))
	if err != nil {
		return RateLimitConfig{}, fmt.Errorf("invalid PAGEFETCH_RATE_MAX_CALLS: %w", err)
	}

	windowSeconds, err := strconv.Atoi(getEnv("PAGEFETCH_RATE_WINDOW_SECONDS", "60"))
	if err != nil {
		return RateLimitConfig{}, fmt.Errorf("invalid PAGEFETCH_RATE_WINDOW_SECONDS: %w", err)
	}

	return RateLimitConfig{
		MaxCalls: maxCalls,
		Window:   time.Duration(windowSeconds) * time.Second,
	}, nil
}

func buildCacheConfig() (CacheConfig, error) {
	db, err := strconv.Atoi(getEnv("PAGEFETCH_REDIS_DB", "0"))
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid PAGEFETCH_REDIS_DB: %w", err)
	}

	ttlSeconds, err := strconv.Atoi(getEnv("PAGEFETCH_CACHE_TTL_SECONDS", "300"))
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid PAGEFETCH_CACHE_TTL_SECONDS: %w", err)
	}

	return CacheConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv("PAGEFETCH_REDIS_ADDR")),
		RedisPassword: os.Getenv("PAGEFETCH_REDIS_PASSWORD"),
		RedisDB:       db,
		TTL:           time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// parseCredentials parses a comma separated list of key=value pairs,
// e.g. "api-key=secret,app_id=demo".
func parseCredentials(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	credentials := make(map[string]string)
	for _, item := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("credential must follow KEY=VALUE: %s", item)
		}
		credentials[strings.TrimSpace(key)] = value
	}

	return credentials, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
