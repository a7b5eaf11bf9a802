package config

import (
	"os"
	"strconv"
	"time"

	"admin-realtime-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server (dev gateway)
	HTTPAddr string

	// Upstream endpoints consumed by the bridge
	APIBaseURL string
	SocketURL  string

	// Redis
	RedisAddr string
	RedisPass string
	RedisDB   int

	// JWT (dev gateway)
	JWT jwt.Config

	// Live channel tuning
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ResubscribeDelay  time.Duration
	HandshakeTimeout  time.Duration

	// Dev gateway admin credentials
	AdminEmail    string
	AdminPassword string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":4000"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:4000/api"),
		SocketURL:  getEnv("SOCKET_URL", "ws://localhost:4000/ws"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		JWT: jwt.Config{
			Secret:     getEnv("JWT_SECRET", "dev-only-secret"),
			Issuer:     "retail-admin",
			Audience:   "retail-admin-dashboard",
			AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 720*time.Hour),
		},

		ReconnectAttempts: getEnvInt("WS_RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:    getEnvDuration("WS_RECONNECT_DELAY", 2*time.Second),
		ResubscribeDelay:  getEnvDuration("WS_RESUBSCRIBE_DELAY", 5*time.Second),
		HandshakeTimeout:  getEnvDuration("WS_HANDSHAKE_TIMEOUT", 20*time.Second),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
