package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Backend struct {
		BaseURL string
		Timeout time.Duration
	}
	Poll struct {
		AlertInterval    time.Duration
		SettingsInterval time.Duration
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Telegram struct {
		BotToken string
		ChatID   int64
	}
	Audio struct {
		Player string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Fleet backend
	cfg.Backend.BaseURL = os.Getenv("BACKEND_BASE_URL")
	if sec, err := strconv.Atoi(os.Getenv("BACKEND_TIMEOUT_SECONDS")); err == nil {
		cfg.Backend.Timeout = time.Duration(sec) * time.Second
	}

	// Poll cadences
	if sec, err := strconv.Atoi(os.Getenv("ALERT_POLL_SECONDS")); err == nil {
		cfg.Poll.AlertInterval = time.Duration(sec) * time.Second
	}
	if sec, err := strconv.Atoi(os.Getenv("SETTINGS_POLL_SECONDS")); err == nil {
		cfg.Poll.SettingsInterval = time.Duration(sec) * time.Second
	}

	// Kafka settings (optional; consumer is disabled without a broker)
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Telegram escalation (optional)
	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}

	// Audio player override; auto-detected when empty
	cfg.Audio.Player = os.Getenv("AUDIO_PLAYER")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Backend.BaseURL == "" {
		missing = append(missing, "BACKEND_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	if cfg.Poll.AlertInterval == 0 {
		cfg.Poll.AlertInterval = 30 * time.Second
	}
	if cfg.Poll.SettingsInterval == 0 {
		cfg.Poll.SettingsInterval = 60 * time.Second
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "fleet_alert_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "fleet-console"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
