package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string

	CacheBackend   string // memory|redis
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	RadiusTTL      time.Duration
	DefaultRadiusM int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
	PushTimeout     time.Duration
	PushRPS         int
	FanoutWorkers   int

	PublicBaseURL string
	Locale        string
	Timezone      string
	SeedWorkers   int
}

func Load() Config {
	// optional; real env always wins
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/crowdmeter?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),

		CacheBackend:   env("CACHE_BACKEND", "memory"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		RadiusTTL:      time.Duration(atoi("RADIUS_CACHE_TTL_SECONDS", 300)) * time.Second,
		DefaultRadiusM: atoi("DEFAULT_RADIUS_M", 5000),

		VAPIDPublicKey:  env("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: env("VAPID_PRIVATE_KEY", ""),
		PushSubscriber:  env("PUSH_SUBSCRIBER", "mailto:ops@crowdmeter.app"),
		PushTimeout:     time.Duration(atoi("PUSH_TIMEOUT_SECONDS", 10)) * time.Second,
		PushRPS:         atoi("PUSH_RPS", 20),
		FanoutWorkers:   atoi("FANOUT_WORKERS", 16),

		PublicBaseURL: env("PUBLIC_BASE_URL", "https://crowdmeter.app"),
		Locale:        env("LOCALE", "ja"),
		Timezone:      env("TIMEZONE", "Asia/Tokyo"),
		SeedWorkers:   atoi("SEED_WORKERS", 8),
	}
	if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
		log.Warn().Msg("VAPID key pair is empty; push delivery will be disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
