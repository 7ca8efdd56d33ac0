package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SaleEventChannel      string
	MembershipAPIURL      string
	ShiftCacheTTLSeconds  int
	RenewalCategories     []string
	TrainingCategories    []string
	RenewalQueueSize      int
	AuthSecret            string
	AccessTokenTTLMinutes int
	Env                   string
	LogLevel              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	shiftTTL, err := strconv.Atoi(getEnv("SHIFT_CACHE_TTL_SECONDS", "15"))
	if err != nil || shiftTTL < 1 {
		shiftTTL = 15
	}
	queueSize, err := strconv.Atoi(getEnv("RENEWAL_QUEUE_SIZE", "64"))
	if err != nil || queueSize < 1 {
		queueSize = 64
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		SaleEventChannel:      getEnv("SALE_EVENT_CHANNEL", "pos:sales"),
		MembershipAPIURL:      strings.TrimSpace(os.Getenv("MEMBERSHIP_API_URL")),
		ShiftCacheTTLSeconds:  shiftTTL,
		RenewalCategories:     splitList(getEnv("RENEWAL_CATEGORIES", "membership,training")),
		TrainingCategories:    splitList(getEnv("TRAINING_CATEGORIES", "training")),
		RenewalQueueSize:      queueSize,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		Env:                   getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		result = append(result, part)
	}
	return result
}
