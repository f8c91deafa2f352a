// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ArchiveDisabled turns the archive off when used as FEEDSYNC_ARCHIVE_PATH.
const ArchiveDisabled = "off"

const defaultPollInterval = 10 * time.Second

var validate = validator.New()

// Config holds the application configuration.
type Config struct {
	ServerURL    string        `toml:"server_url" validate:"required,url"`
	PushURL      string        `toml:"push_url" validate:"omitempty,url"`
	PollInterval time.Duration `toml:"-" validate:"gt=0"`
	ArchivePath  string        `toml:"archive_path"`
	MetricsAddr  string        `toml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel     string        `toml:"log_level" validate:"oneof=debug info warn error"`

	TelegramBotToken string   `toml:"telegram_bot_token"`
	TelegramChatID   int64    `toml:"telegram_chat_id" validate:"required_with=TelegramBotToken"`
	RelayInclude     []string `toml:"relay_include"`
	RelayExclude     []string `toml:"relay_exclude"`
}

// file mirrors Config for TOML decoding; durations are strings there.
type file struct {
	Config
	PollInterval string `toml:"poll_interval"`
}

// Load reads configuration from a .env file, an optional TOML file named by
// FEEDSYNC_CONFIG and environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		PollInterval: defaultPollInterval,
		ArchivePath:  "./data/feed.db",
		LogLevel:     "info",
	}

	if path := os.Getenv("FEEDSYNC_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("FEEDSYNC_SERVER_URL is required")
	}
	if cfg.PushURL == "" {
		push, err := DerivePushURL(cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		cfg.PushURL = push
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f := file{Config: *cfg}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	*cfg = f.Config
	if f.PollInterval != "" {
		d, err := time.ParseDuration(f.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval %q in %s: %w", f.PollInterval, path, err)
		}
		cfg.PollInterval = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.ServerURL, "FEEDSYNC_SERVER_URL")
	setString(&cfg.PushURL, "FEEDSYNC_PUSH_URL")
	setString(&cfg.ArchivePath, "FEEDSYNC_ARCHIVE_PATH")
	setString(&cfg.MetricsAddr, "FEEDSYNC_METRICS_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")

	if raw := os.Getenv("FEEDSYNC_POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid FEEDSYNC_POLL_INTERVAL %q: %w", raw, err)
		}
		cfg.PollInterval = d
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if raw := os.Getenv("RELAY_INCLUDE"); raw != "" {
		cfg.RelayInclude = splitList(raw)
	}
	if raw := os.Getenv("RELAY_EXCLUDE"); raw != "" {
		cfg.RelayExclude = splitList(raw)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// DerivePushURL maps the server base URL onto its websocket events endpoint.
func DerivePushURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/events"
	return u.String(), nil
}

// ArchiveEnabled reports whether rendered posts are persisted.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchivePath != "" && c.ArchivePath != ArchiveDisabled
}

// RelayEnabled reports whether new posts are relayed to Telegram.
func (c *Config) RelayEnabled() bool {
	return c.TelegramBotToken != ""
}
