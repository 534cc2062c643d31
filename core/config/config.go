package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coredatabase "github.com/romnatson3/pharmacy/core/database"
)

// TelegramConfig holds Telegram bot credentials and webhook protection settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"TELEGRAM_TOKEN"`
	// WebhookSecret must match the X-Telegram-Bot-Api-Secret-Token header
	// on every inbound webhook call.
	WebhookSecret string `yaml:"webhook_secret" envconfig:"TELEGRAM_WEBHOOK_SECRET"`
}

// ServerConfig specifies the inbound webhook listener.
type ServerConfig struct {
	Listen string `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Port   int    `yaml:"port" envconfig:"SERVER_PORT"`
	Path   string `yaml:"path" envconfig:"SERVER_WEBHOOK_PATH"`
}

// RedisConfig holds connection settings for the conversation state cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	Dir    string `yaml:"dir" envconfig:"LOG_DIR"`
	File   string `yaml:"file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// PromoConfig controls the daily product-of-the-day broadcast.
type PromoConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"PROMO_ENABLED"`
	// Schedule is a cron expression in the standard five-field format.
	Schedule string `yaml:"schedule" envconfig:"PROMO_SCHEDULE"`
}

// QueueConfig sizes the background task queue.
type QueueConfig struct {
	Size    int `yaml:"size" envconfig:"QUEUE_SIZE"`
	Workers int `yaml:"workers" envconfig:"QUEUE_WORKERS"`
}

// Config aggregates the full application configuration.
type Config struct {
	Telegram TelegramConfig      `yaml:"telegram"`
	Server   ServerConfig        `yaml:"server"`
	Database coredatabase.Config `yaml:"database"`
	Redis    RedisConfig         `yaml:"redis"`
	Logging  LoggingConfig       `yaml:"logging"`
	Promo    PromoConfig         `yaml:"promo"`
	Queue    QueueConfig         `yaml:"queue"`
}

// Load reads configuration from an optional YAML file and environment variables.
// An empty path skips the file and relies on the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Telegram.WebhookSecret) == "" {
		return fmt.Errorf("telegram.webhook_secret is required")
	}

	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = "0.0.0.0"
	}
	if cfg.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if strings.TrimSpace(cfg.Server.Path) == "" {
		cfg.Server.Path = "/webhook/telegram"
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		cfg.Server.Path = "/" + cfg.Server.Path
	}

	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}

	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}
	if strings.TrimSpace(cfg.Database.SSLMode) == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Promo.Enabled && strings.TrimSpace(cfg.Promo.Schedule) == "" {
		cfg.Promo.Schedule = "0 10 * * *"
	}

	if cfg.Queue.Size <= 0 {
		cfg.Queue.Size = 256
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}

	return nil
}
