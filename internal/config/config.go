package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
	"github.com/joho/godotenv"
)

// Load reads the .env file named by BELIEFGRAPH_ENV (or .env by default),
// then the matching .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BELIEFGRAPH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

const (
	BeliefStoreMemory   = "memory"
	BeliefStorePostgres = "postgres"
)

// BeliefStoreBackend returns the belief store to run against.
// An explicit BELIEF_STORE wins; otherwise postgres is used when DATABASE_URL is set.
func BeliefStoreBackend() string {
	switch strings.ToLower(os.Getenv("BELIEF_STORE")) {
	case BeliefStorePostgres:
		return BeliefStorePostgres
	case BeliefStoreMemory:
		return BeliefStoreMemory
	}
	if DatabaseURL() != "" {
		return BeliefStorePostgres
	}
	return BeliefStoreMemory
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// StatsCacheTTL returns how long computed graph statistics are served from cache.
// Defaults to 60s.
func StatsCacheTTL() time.Duration {
	return duration("STATS_CACHE_TTL", 60*time.Second)
}

// DefaultMaxDepth bounds traversals when a request gives no depth.
func DefaultMaxDepth() int {
	return positiveInt("DEFAULT_MAX_DEPTH", 5)
}

// CleanupInterval returns how often inactive relationships are purged.
// Defaults to 1h.
func CleanupInterval() time.Duration {
	return duration("CLEANUP_INTERVAL", time.Hour)
}

func CleanupRetentionDays() int {
	return positiveInt("CLEANUP_RETENTION_DAYS", 30)
}

// CleanupRetention caps oversized day counts instead of letting the duration wrap.
func CleanupRetention() time.Duration {
	return domain.RetentionWindow(CleanupRetentionDays())
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return positiveInt("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
