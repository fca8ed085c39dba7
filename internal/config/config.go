// Package config loads the local bot configuration from environment
// variables. envconfig maps the variables onto the struct fields; run-time
// behaviour (page names, summaries, enable flag) lives on a wiki page
// instead, see remote.go.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the bot needs before it can talk to the wiki:
// replica database credentials, wiki API credentials, and local paths.
type Config struct {
	// --- Wiki replica database (read-only) ---
	DBHost     string `envconfig:"DB_HOST" default:"replica"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"zhwiki_p"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"4"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	// --- Wiki API ---
	WikiAPIURL   string `envconfig:"WIKI_API_URL" default:"https://zh.wikipedia.org/w/api.php"`
	WikiUsername string `envconfig:"WIKI_USERNAME" required:"true"`
	WikiPassword string `envconfig:"WIKI_PASSWORD" required:"true"`
	// Page holding the JSON run-time configuration (enable flag, target
	// pages, edit summaries, escalation marker).
	ConfigPage string `envconfig:"CONFIG_PAGE" required:"true"`
	// The AWB check page listing tool-authorized users.
	CheckPage string `envconfig:"CHECK_PAGE" default:"Wikipedia:AutoWikiBrowser/CheckPageJSON"`

	// --- Application ---
	StateFile   string `envconfig:"STATE_FILE" default:"user_data.json"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	// Cron expression for repeated runs. Empty means run once and exit.
	RunSchedule string `envconfig:"RUN_SCHEDULE" default:""`

	// --- Maintainer notification (optional) ---
	// When both are set, a one-message run summary is sent over Telegram.
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`
}

// DatabaseDSN returns the replica connection string in DSN form.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is set but TELEGRAM_CHAT_ID is not")
	}
	return nil
}

// Load reads the environment and fills a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
