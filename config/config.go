package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	MediaBackend string // platform backend name, e.g. "mpris"
	ServerAddr   string // local HTTP/WebSocket surface

	LogLevel      string
	LogPath       string // empty disables the rotated file output
	LogMaxSize    int    // megabytes
	LogMaxBackups int
	LogMaxAge     int // days

	// Redis settings
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	PlayerInfoTTL time.Duration // how long a player's name/icon stays cached
	SnapshotTTL   time.Duration // lifetime of the last published poll result

	ActionTimeout     time.Duration
	FetchTimeout      time.Duration // per-session property reads
	ThumbnailMaxBytes int
	IconSize          int // requested logo edge in pixels

	APISecret string // HMAC key for local API tokens; empty disables auth
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("error loading .env, relying on existing environment variables and defaults: %v", err)
	}

	return &Config{
		MediaBackend: getEnv("MEDIA_BACKEND", "mpris"),
		ServerAddr:   getEnv("SERVER_ADDR", "127.0.0.1:1421"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 7),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // empty means no auth
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PlayerInfoTTL: getEnvDuration("PLAYER_INFO_TTL", 10*time.Minute),
		SnapshotTTL:   getEnvDuration("SNAPSHOT_TTL", 30*time.Second),

		ActionTimeout:     getEnvDuration("ACTION_TIMEOUT", 5*time.Second),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 3*time.Second),
		ThumbnailMaxBytes: getEnvInt("THUMBNAIL_MAX_BYTES", 5_000_000),
		IconSize:          getEnvInt("ICON_SIZE", 50),

		APISecret: os.Getenv("API_SECRET"), // no default secret
	}
}
