package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken  string
	HTTPAddr       string
	DetectURL      string
	DetectTimeout  time.Duration
	AuthPassword   string
	SessionTTL     time.Duration
	DBPath         string
	LogDir         string
	PreviewMaxSide int
	MaxUploadMB    int
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DetectURL:      getEnv("DETECT_URL", "http://localhost:5000/detect"),
		DetectTimeout:  getEnvAsDuration("DETECT_TIMEOUT", 60*time.Second),
		AuthPassword:   os.Getenv("AUTH_PASSWORD"),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		DBPath:         getEnv("DB_PATH", filepath.Join(".", "data", "history.db")),
		LogDir:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		PreviewMaxSide: getEnvAsInt("PREVIEW_MAX_SIDE", 512),
		MaxUploadMB:    getEnvAsInt("MAX_UPLOAD_MB", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.DetectURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("DETECT_URL must be an absolute http(s) URL, got %q", c.DetectURL)
	}
	if c.DetectTimeout <= 0 {
		return fmt.Errorf("DETECT_TIMEOUT must be positive, got %s", c.DetectTimeout)
	}
	if c.PreviewMaxSide <= 0 {
		return fmt.Errorf("PREVIEW_MAX_SIDE must be positive, got %d", c.PreviewMaxSide)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes предел размера выбранного файла.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration понимает "90s", "5m" и просто число секунд.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
