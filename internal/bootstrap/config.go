package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	Version    string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string

	LiveURL              string
	LiveAPIKey           string
	LiveModel            string
	LiveVoice            string
	LiveHandshakeTimeout time.Duration

	LogLevel string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		Version:    getEnv("VERSION", "dev"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		QdrantHost:   getEnv("QDRANT_HOST", ""),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),

		LiveURL:              getEnv("LIVE_URL", "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"),
		LiveAPIKey:           getEnv("LIVE_API_KEY", ""),
		LiveModel:            getEnv("LIVE_MODEL", "models/gemini-2.0-flash-exp"),
		LiveVoice:            getEnv("LIVE_VOICE", "Puck"),
		LiveHandshakeTimeout: time.Duration(getEnvInt("LIVE_HANDSHAKE_TIMEOUT", 15)) * time.Second,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
