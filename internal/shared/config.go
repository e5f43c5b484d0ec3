package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	MySQLDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	TelegramBase   string
	TelegramToken  string
	TelegramChatID string
	TelegramRPS    int

	KafkaBrokers []string
	KafkaTopic   string

	SweepAt      string
	SweepTZ      string
	SweepLockTTL time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory fills in variables that are not already set.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/staybook?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		TelegramBase:   env("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		TelegramToken:  env("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: env("TELEGRAM_CHAT_ID", ""),
		TelegramRPS:    atoi("TELEGRAM_RPS", 1),
		KafkaBrokers:   splitList(env("KAFKA_BROKERS", "")),
		KafkaTopic:     env("KAFKA_TOPIC", "staybook.booking-events"),
		SweepAt:        env("SWEEP_AT", "00:01"),
		SweepTZ:        env("SWEEP_TZ", "UTC"),
		SweepLockTTL:   time.Duration(atoi("SWEEP_LOCK_TTL_SECONDS", 23*3600)) * time.Second,
	}
	if c.TelegramToken == "" || c.TelegramChatID == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is empty, telegram notifications disabled")
	}
	if len(c.KafkaBrokers) == 0 {
		log.Warn().Msg("KAFKA_BROKERS is empty, booking events will not be published")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
