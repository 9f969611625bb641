package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

type ServerConfig struct {
	Addr                string
	LogLevel            slog.Level
	ShutdownTimeout     time.Duration
	ForbiddenExtensions []string
	RateLimit           float64
	RateBurst           int
	AccessLog           bool
}

type StorageConfig struct {
	Backend         string
	Root            string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	UseSSL          bool
	OpenRetries     int
}

type CacheConfig struct {
	MaxFileSize     int64
	CleanupInterval time.Duration
	Revalidate      bool
	Watch           bool
	SingleFlight    bool
	PolicyFile      string
}

// Config is the full process configuration, read once at startup.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Cache   CacheConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	maxFileSize, err := getEnvBytes("MAX_FILE_SIZE", "2GiB")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:                getEnv("LISTEN_ADDR", ":8080"),
			LogLevel:            parseLogLevel(getEnv("LOG_LEVEL", "info")),
			ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			ForbiddenExtensions: splitList(getEnv("FORBIDDEN_EXTENSIONS", ".asp,.aspx")),
			RateLimit:           getEnvFloat("RATE_LIMIT_RPS", 0),
			RateBurst:           getEnvInt("RATE_LIMIT_BURST", 50),
			AccessLog:           getEnvBool("ACCESS_LOG", false),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", BackendLocal)),
			Root:            getEnv("STATIC_ROOT", "./public"),
			Endpoint:        getEnv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("S3_SECRET_KEY", "minioadmin"),
			Bucket:          getEnv("S3_BUCKET", "public"),
			Prefix:          getEnv("S3_PREFIX", ""),
			UseSSL:          getEnvBool("S3_USE_SSL", false),
			OpenRetries:     getEnvInt("OPEN_RETRIES", 5),
		},
		Cache: CacheConfig{
			MaxFileSize:     int64(maxFileSize),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),
			Revalidate:      getEnvBool("CACHE_REVALIDATE", true),
			Watch:           getEnvBool("CACHE_WATCH", true),
			SingleFlight:    getEnvBool("CACHE_SINGLE_FLIGHT", true),
			PolicyFile:      getEnv("POLICY_FILE", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Root == "" {
			return errors.New("STATIC_ROOT cannot be empty for the local backend")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("S3_BUCKET cannot be empty for the s3 backend")
		}
	default:
		return errors.New("invalid storage backend: " + c.Storage.Backend)
	}
	if c.Cache.MaxFileSize <= 0 {
		return errors.New("MAX_FILE_SIZE must be positive")
	}
	if c.Storage.OpenRetries < 1 {
		c.Storage.OpenRetries = 1
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("invalid bool value, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		slog.Warn("invalid int value, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("invalid float value, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration value, using default", "key", key, "value", value, "default", defaultValue)
	}
	return defaultValue
}

func getEnvBytes(key, defaultValue string) (uint64, error) {
	value := getEnv(key, defaultValue)
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, errors.New("invalid size for " + key + ": " + value)
	}
	return n, nil
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
