// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MetricsAddr string
	CORSOrigins []string

	StoreBackend string // "memory" or "redis"
	RedisAddr    string
	RedisDB      int

	NATSURL string // empty disables event publishing

	DataFile        string
	RouteCacheFile  string
	ReportsDatabase string

	ScheduleTZ    string
	SweepInterval time.Duration
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8000"),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		NATSURL:         getEnv("NATS_URL", ""),
		DataFile:        getEnv("DATA_FILE", "data.json"),
		RouteCacheFile:  getEnv("ROUTE_CACHE_FILE", "precomputed_routes.json"),
		ReportsDatabase: getEnv("REPORTS_DATABASE", "issue_reports.db"),
		ScheduleTZ:      getEnv("SCHEDULE_TZ", "Asia/Dhaka"),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 30*time.Second),
	}

	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "redis" {
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: must be memory or redis", cfg.StoreBackend)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid value for %s: %q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid value for %s: %q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
