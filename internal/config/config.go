package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	DBDriver     string
	DBDSN        string
	TemplatesDir string
	StaticDir    string
	LogFile      string

	KafkaBrokers []string
	OrderTopic   string
	RedisAddr    string
	CacheTTL     time.Duration

	TxMaxAttempts int
	RateLimit     int
	CookieSecure  bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "shopfront.db"
	} // sqlite file in project root
	tmpl := os.Getenv("TEMPLATES_DIR")
	if tmpl == "" {
		tmpl = "./web/templates"
	}
	static := os.Getenv("STATIC_DIR")
	if static == "" {
		static = "./web/static"
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./shopfront.log"
	}
	topic := os.Getenv("ORDER_TOPIC")
	if topic == "" {
		topic = "orders.placed"
	}

	cfg := Config{
		Port:          port,
		DBDriver:      driver,
		DBDSN:         dsn,
		TemplatesDir:  tmpl,
		StaticDir:     static,
		LogFile:       logFile,
		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:    topic,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		CacheTTL:      getDuration("CACHE_TTL", 30*time.Second),
		TxMaxAttempts: getInt("TX_MAX_ATTEMPTS", 10),
		RateLimit:     getInt("RATE_LIMIT", 60),
		CookieSecure:  os.Getenv("COOKIE_SECURE") == "true",
	}
	log.Printf("[config] PORT=%s DB_DRIVER=%s DB_DSN=%s TEMPLATES_DIR=%s LOG_FILE=%s KAFKA_BROKERS=%v REDIS_ADDR=%s",
		cfg.Port, cfg.DBDriver, cfg.DBDSN, cfg.TemplatesDir, cfg.LogFile, cfg.KafkaBrokers, cfg.RedisAddr)
	return cfg
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] ignoring %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
