package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Values come from the
// environment so main stays lean.
type Server struct {
	Addr          string
	BackendURL    string
	JWTSigningKey string
	Redis         RedisConfig
	SnapshotPath  string // bbolt file used when Redis is not configured
	SnapshotTTL   time.Duration
	Kafka         KafkaConfig
	AuditDBURL    string
	Playbook      PlaybookConfig

	// HandoffPollInterval paces d2p status polling; HandoffTTL bounds how
	// long a scoped session may stay open before the primary gives up.
	HandoffPollInterval time.Duration
	HandoffTTL          time.Duration
}

// RedisConfig mirrors the go-redis options we care about.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit publisher. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PlaybookConfig describes the playbook this deployment serves. Bootstrap
// requests naming any other key are rejected as config-invalid.
type PlaybookConfig struct {
	Key               string
	OrgName           string
	IsLive            bool
	SandboxSecretHash string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("VERIFLOW_ADDR", ":8080"),
		BackendURL:          envOr("VERIFLOW_BACKEND_URL", "http://localhost:9000"),
		JWTSigningKey:       envOr("VERIFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SnapshotPath:        envOr("VERIFLOW_SNAPSHOT_PATH", "veriflow.db"),
		SnapshotTTL:         envDurationOr("VERIFLOW_SNAPSHOT_TTL", 24*time.Hour),
		AuditDBURL:          os.Getenv("VERIFLOW_AUDIT_DB_URL"),
		HandoffPollInterval: envDurationOr("VERIFLOW_HANDOFF_POLL_INTERVAL", 2*time.Second),
		HandoffTTL:          envDurationOr("VERIFLOW_HANDOFF_TTL", 10*time.Minute),
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("VERIFLOW_REDIS_URL"),
		PoolSize:     envIntOr("VERIFLOW_REDIS_POOL_SIZE", 10),
		MinIdleConns: envIntOr("VERIFLOW_REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDurationOr("VERIFLOW_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDurationOr("VERIFLOW_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDurationOr("VERIFLOW_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	cfg.Playbook = PlaybookConfig{
		Key:               envOr("VERIFLOW_PLAYBOOK_KEY", "pb_dev"),
		OrgName:           envOr("VERIFLOW_ORG_NAME", "Veriflow Dev"),
		IsLive:            os.Getenv("VERIFLOW_PLAYBOOK_LIVE") == "true",
		SandboxSecretHash: os.Getenv("VERIFLOW_SANDBOX_SECRET_HASH"),
	}

	if brokers := os.Getenv("VERIFLOW_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = KafkaConfig{
			Brokers: splitComma(brokers),
			Topic:   envOr("VERIFLOW_KAFKA_AUDIT_TOPIC", "veriflow.audit"),
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

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
