package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"feedsync/internal/archive"
	"feedsync/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("feedsync", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "feedsync",
		Usage: "Keep a live, duplicate-free mirror of a posts feed",
		Description: `feedsync loads the feed from a posts server, then keeps it current
from the server's push channel with a periodic poll as fallback.

Configuration is read from .env, the TOML file named by FEEDSYNC_CONFIG and
environment variables, e.g.:

FEEDSYNC_SERVER_URL=http://localhost:8000
FEEDSYNC_POLL_INTERVAL=10s`,
		Commands: []*cli.Command{
			watchCmd(),
			postCmd(),
			historyCmd(),
			exportCmd(),
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func openArchive(cfg *config.Config) (*archive.SQLite, error) {
	if !cfg.ArchiveEnabled() {
		return nil, fmt.Errorf("archive is disabled (FEEDSYNC_ARCHIVE_PATH=%s)", config.ArchiveDisabled)
	}
	if dir := filepath.Dir(cfg.ArchivePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	store, err := archive.NewSQLite(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", cfg.ArchivePath, err)
	}
	return store, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
