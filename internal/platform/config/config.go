package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Business limits do not live
// here; they are regulation, not deployment choices (see compliance/policy).
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	Redis RedisConfig

	// ElectionAPIURL is the election calendar service feeding the cycle
	// resolver. Empty disables enhanced validation entirely.
	ElectionAPIURL  string
	ResolverTimeout time.Duration
	CycleCacheTTL   time.Duration

	// LegacyCycleCutoff bounds the legacy per-election rule: history records
	// before this date never count toward the current cycle.
	LegacyCycleCutoff time.Time

	PaymentAPIURL string
	PaymentAPIKey string

	KafkaBrokers []string
	AuditTopic   string
}

// RedisConfig captures Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:            envOr("CELEBRATE_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		ElectionAPIURL:  os.Getenv("ELECTION_API_URL"),
		ResolverTimeout: envDuration("RESOLVER_TIMEOUT", 2*time.Second),
		CycleCacheTTL:   envDuration("CYCLE_CACHE_TTL", time.Hour),
		PaymentAPIURL:   os.Getenv("PAYMENT_API_URL"),
		PaymentAPIKey:   os.Getenv("PAYMENT_API_KEY"),
		AuditTopic:      envOr("AUDIT_TOPIC", "celebrate.audit"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}
	if cutoff := os.Getenv("LEGACY_CYCLE_CUTOFF"); cutoff != "" {
		if t, err := time.Parse("2006-01-02", cutoff); err == nil {
			cfg.LegacyCycleCutoff = t
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
