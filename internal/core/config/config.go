// Package config reads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool

	DatabaseURL string

	CacheDriver    string // "redis" or "memory"
	RedisAddr      string
	CacheOpTimeout time.Duration
	MemCacheSize   int

	GeohashPrecision int
	DefaultLimit     int

	ListTTL      time.Duration
	FeatureTTL   time.Duration
	HierarchyTTL time.Duration
	TTLJitter    time.Duration

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	precision := getint("GEOHASH_PRECISION", 3)
	if precision < 1 || precision > 12 {
		precision = 3
	}

	return Config{
		Addr:       getenv("ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),

		DatabaseURL: getenv("DATABASE_URL", "postgres://localhost:5432/ahupuaa?sslmode=disable"),

		CacheDriver:    getenv("CACHE_DRIVER", "memory"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MemCacheSize:   getint("MEM_CACHE_SIZE", 4096),

		GeohashPrecision: precision,
		DefaultLimit:     getint("DEFAULT_LIMIT", 50),

		ListTTL:      getduration("LIST_TTL", 6*time.Hour),
		FeatureTTL:   getduration("FEATURE_TTL", time.Hour),
		HierarchyTTL: getduration("HIERARCHY_TTL", 24*time.Hour),
		TTLJitter:    getduration("TTL_JITTER", 10*time.Minute),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "feature-updates"),
			GroupID: getenv("KAFKA_GROUP_ID", "cache-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
