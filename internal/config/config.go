// Package config loads daemon and console settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr       string
	DataDir        string
	StateDir       string
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	SessionTimeout time.Duration
	PollInterval   time.Duration
	StateKey       string
	ReleaseFeedURL string
}

func Load() Config {
	return Config{
		HTTPAddr:       getenv("TRIJI_HTTP_ADDR", ":7310"),
		DataDir:        getenv("TRIJI_DATA_DIR", "./data"),
		StateDir:       getenv("TRIJI_STATE_DIR", defaultStateDir()),
		JWTSecret:      getenv("TRIJI_JWT_SECRET", ""),
		JWTIssuer:      getenv("TRIJI_JWT_ISSUER", "trijid"),
		AccessTokenTTL: getenvDuration("TRIJI_TOKEN_TTL", 72*time.Hour),
		SessionTimeout: getenvDuration("TRIJI_SESSION_TIMEOUT", 72*time.Hour),
		PollInterval:   getenvDuration("TRIJI_SESSION_POLL", time.Minute),
		StateKey:       getenv("TRIJI_STATE_KEY", ""),
		ReleaseFeedURL: getenv("TRIJI_RELEASE_FEED", ""),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/triji"
	}
	return "./.triji"
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
