package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AuthSecret string
	AuthTTL    time.Duration

	AgentBaseURL         string
	AgentToken           string
	AgentRequestTimeout  time.Duration
	AgentGenerateTimeout time.Duration

	MaxAttemptsPerDay int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ResourceBasePath string

	CORSOrigins []string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:  envOr("HTTP_ADDR", ":8080"),
		PublicURL: os.Getenv("PUBLIC_URL"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthSecret: envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AuthTTL:    envDuration("AUTH_TTL", 8*time.Hour),

		AgentBaseURL:         envOr("AGENT_BASE_URL", "http://localhost:8090"),
		AgentToken:           os.Getenv("AGENT_TOKEN"),
		AgentRequestTimeout:  envDuration("AGENT_REQUEST_TIMEOUT", 20*time.Second),
		AgentGenerateTimeout: envDuration("AGENT_GENERATE_TIMEOUT", 600*time.Second),

		MaxAttemptsPerDay: envInt("MAX_ATTEMPTS_PER_DAY", 3),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		ResourceBasePath: envOr("RESOURCE_BASE_PATH", "./data"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
