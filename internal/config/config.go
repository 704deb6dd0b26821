package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/mafia-live/backend/internal/room"
)

type Config struct {
	Addr            string
	DatabaseURL     string
	JWTSecret       string
	RoomTTL         time.Duration
	SweepInterval   time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load reads .env if present, then the environment, falling back to dev
// defaults. An empty DATABASE_URL selects the in-memory store.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:            getString("ADDR", ":8080"),
		DatabaseURL:     getString("DATABASE_URL", ""),
		JWTSecret:       getString("JWT_SECRET", "dev-secret"),
		RoomTTL:         getDuration("ROOM_TTL", room.TTL),
		SweepInterval:   getDuration("SWEEP_INTERVAL", time.Minute),
		RateLimitMax:    getInt("RATE_LIMIT_MAX", 20),
		RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", 10*time.Second),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
