// Package config loads server configuration from the environment.
package config

import (
	"os"
	"time"
)

// Config holds application configuration loaded from environment variables.
// DatabaseURL and RedisURL are optional; empty values disable the archive
// and the snapshot write-through respectively.
type Config struct {
	Port           string
	DatabaseURL    string
	RedisURL       string
	JWTSecret      string
	AllowedOrigins string
	GameRetention  time.Duration
	ReapInterval   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:           envOrDefault("PORT", "8010"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      envOrDefault("JWT_SECRET", "dev-secret-change-me"),
		AllowedOrigins: envOrDefault("ALLOWED_ORIGINS", "*"),
		GameRetention:  envDuration("GAME_RETENTION", time.Hour),
		ReapInterval:   envDuration("REAP_INTERVAL", time.Minute),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
