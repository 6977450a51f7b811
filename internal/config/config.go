package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"wishbot/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	BotToken    string
	JWTSecret   string // пусто: admin API выключен
	ChatID      int64  // куда публикуются пожелания
	AdminIDs    []int64

	// Обязательные подписки
	RequiredChannel   string
	RequiredChat      string
	ChannelInviteLink string
	ChatInviteLink    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BroadcastInterval time.Duration

	SendRatePerSecond float64
	APIRateLimit      int
	APIRateWindow     time.Duration
	WishRateLimit     int
	WishRateWindow    time.Duration
	MaxWishLength     int

	LogLevel string
	LogJSON  bool
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	cfg := &Config{
		AppPort:           envString("APP_PORT", "8080"),
		DatabaseURL:       dbURL,
		BotToken:          botToken,
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ChatID:            envInt64("CHAT_ID", 0),
		AdminIDs:          ParseIDList(os.Getenv("ADMIN_TELEGRAM_IDS")),
		RequiredChannel:   envString("REQUIRED_CHANNEL", "@TrainingCampTON"),
		RequiredChat:      envString("REQUIRED_CHAT", "@TrainingCampTelegram"),
		ChannelInviteLink: os.Getenv("CHANNEL_INVITE_LINK"),
		ChatInviteLink:    os.Getenv("CHAT_INVITE_LINK"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           int(envInt64("REDIS_DB", 0)),
		BroadcastInterval: envDuration("BROADCAST_INTERVAL", time.Hour),
		SendRatePerSecond: envFloat("SEND_RATE_PER_SECOND", 20),
		APIRateLimit:      int(envInt64("API_RATE_LIMIT", 60)),
		APIRateWindow:     envDuration("API_RATE_WINDOW", time.Minute),
		WishRateLimit:     int(envInt64("WISH_RATE_LIMIT", 5)),
		WishRateWindow:    envDuration("WISH_RATE_WINDOW", time.Minute),
		MaxWishLength:     int(envInt64("MAX_WISH_LENGTH", 1000)),
		LogLevel:          envString("LOG_LEVEL", "info"),
		LogJSON:           os.Getenv("LOG_JSON") == "true",
	}

	if cfg.ChatID == 0 {
		logger.Warn("CHAT_ID is not set, wish broadcasts are disabled")
	}

	return cfg
}

// ParseIDList разбирает id через запятую, мусор пропускается.
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		logger.Warn("invalid integer in env, using default", "key", key, "value", v)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// envDuration понимает и "90m", и просто секунды.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	logger.Warn("invalid duration in env, using default", "key", key, "value", v)
	return def
}
