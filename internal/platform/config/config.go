package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSecret     string
	Environment   string
	ArtifactDir   string
	ArtifactBase  string
	RunMigrations bool
	RunSeed       bool
	SeedHREmail   string
	SeedHRPass    string
	MaxBodyBytes  int64

	// Per-employee mutations and per-IP login attempts, counted over a
	// one-minute window. Zero disables the limiter.
	RateLimitPerMin int
	LoginRatePerMin int
}

func Load() Config {
	return Config{
		Addr:          getEnv("APP_ADDR", ":8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		Environment:   getEnv("APP_ENV", "development"),
		ArtifactDir:   getEnv("ARTIFACT_DIR", "storage/evaluations"),
		ArtifactBase:  getEnv("ARTIFACT_BASE_URL", "http://localhost:8080/artifacts"),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:       getEnvBool("RUN_SEED", true),
		SeedHREmail:   getEnv("SEED_HR_EMAIL", ""),
		SeedHRPass:    getEnv("SEED_HR_PASSWORD", ""),
		MaxBodyBytes:  int64(getEnvInt("MAX_BODY_BYTES", 1048576)),

		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 300),
		LoginRatePerMin: getEnvInt("LOGIN_RATE_LIMIT_PER_MIN", 10),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	return nil
}
