package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	Env                   string
	LogLevel              string
	AllowedOrigin         string
	StoreDriver           string
	DataPath              string
	GeminiAPIKey          string
	GeminiModel           string
	AITimeout             time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	MarketCacheTTL        time.Duration
	AuthSecret            string
	AccessTokenTTLMinutes int
	OwnerPassword         string
	CashierPassword       string
	LowStockThreshold     int
}

const (
	StoreDriverBolt   = "bolt"
	StoreDriverMemory = "memory"
)

func Load() Config {
	tokenTTL := getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	if tokenTTL < 1 {
		tokenTTL = 480
	}
	aiTimeout := getEnvInt("AI_TIMEOUT_SECONDS", 30)
	if aiTimeout < 1 {
		aiTimeout = 30
	}
	cacheTTL := getEnvInt("MARKET_CACHE_TTL_SECONDS", 3600)
	if cacheTTL < 1 {
		cacheTTL = 3600
	}
	lowStock := getEnvInt("LOW_STOCK_THRESHOLD", 5)
	if lowStock < 1 {
		lowStock = 5
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StoreDriverBolt)),
		DataPath:              getEnv("DATA_PATH", "smartseller.db"),
		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AITimeout:             time.Duration(aiTimeout) * time.Second,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		MarketCacheTTL:        time.Duration(cacheTTL) * time.Second,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		OwnerPassword:         strings.TrimSpace(os.Getenv("OWNER_PASSWORD")),
		CashierPassword:       strings.TrimSpace(os.Getenv("CASHIER_PASSWORD")),
		LowStockThreshold:     lowStock,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}
