package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	// Remote API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Session persistence
	SessionFile string

	// Access token freshness policy. The fallback TTL applies when the
	// server does not self-report a lifetime; the skew margin treats a
	// token this close to expiry as already stale.
	AccessTTLFallback time.Duration
	RefreshSkew       time.Duration

	// Observability
	OTLPEndpoint string

	// Dev stub server
	StubPort            int
	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int
	AdminEmail          string
	AdminPassword       string
	AdminName           string
}

func Load() Config {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	return Config{
		Env: getEnv("APP_ENV", "dev"),

		APIBaseURL:     getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		SessionFile: getEnv("SESSION_FILE", defaultSessionFile()),

		AccessTTLFallback: getEnvDuration("ACCESS_TTL_FALLBACK", 15*time.Minute),
		RefreshSkew:       getEnvDuration("REFRESH_SKEW", 30*time.Second),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		StubPort:            getEnvInt("STUB_PORT", 8080),
		JWTSecret:           getEnv("JWT_SECRET", "dev-only-secret"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 15),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 7),
		AdminEmail:          getEnv("ADMIN_EMAIL", "admin@mentorlink.local"),
		AdminPassword:       getEnv("ADMIN_PASSWORD", "changeme-admin"),
		AdminName:           getEnv("ADMIN_NAME", "Platform Admin"),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()

	if err != nil {
		return ".mentorlink/session.json"
	}

	return filepath.Join(home, ".mentorlink", "session.json")
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return d
	}
	return fallback
}
