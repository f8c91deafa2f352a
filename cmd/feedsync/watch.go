package main

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"feedsync/internal/api"
	"feedsync/internal/feed"
	"feedsync/internal/filter"
	"feedsync/internal/metrics"
	"feedsync/internal/model"
	"feedsync/internal/notify"
	"feedsync/internal/push"
	"feedsync/internal/render"
	"feedsync/internal/scheduler"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Mirror the feed live and compose posts from stdin",
		Description: `Loads the feed, then prints every new post as it arrives from the push
channel or the poll. Type :post to compose a post; polling pauses while
composing.`,
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := c.Context

			client := api.New(cfg.ServerURL)
			defer func() { _ = client.Close() }()

			page := render.NewHTML()
			renderers := render.Multi{render.NewText(os.Stdout), page}

			if cfg.ArchiveEnabled() {
				store, err := openArchive(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				renderers = append(renderers, store)
			}

			var relay *notify.Relay
			if cfg.RelayEnabled() {
				rules, err := filter.ParseRules(cfg.RelayInclude, cfg.RelayExclude)
				if err != nil {
					return fmt.Errorf("relay rules: %w", err)
				}
				relay, err = notify.New(cfg.TelegramBotToken, cfg.TelegramChatID, rules, log)
				if err != nil {
					return err
				}
				renderers = append(renderers, relay)
			}

			synchronizer := feed.New(client, renderers, log)
			if _, err := synchronizer.LoadInitial(ctx); err != nil {
				// Push and poll still fill the view once the server is reachable.
				fmt.Fprintln(os.Stderr, "could not load the feed:", err)
			}

			var pushConnected atomic.Bool
			sub := push.New(cfg.PushURL, log)
			sub.Subscribe(func(post model.Post) {
				synchronizer.OnPush(post)
			})
			sub.OnStatus(func(status push.Status, err error) {
				connected := status == push.StatusConnected
				pushConnected.Store(connected)
				metrics.PushStatus(string(status), connected)
				if err != nil {
					log.Warn("push channel", "status", status, "error", err)
					return
				}
				log.Info("push channel", "status", status)
			})

			sched := scheduler.New(synchronizer, log)
			sched.SetTickInterval(cfg.PollInterval)

			var wg sync.WaitGroup
			run := func(f func()) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					f()
				}()
			}

			run(func() { sub.Run(ctx) })
			run(func() { sched.Run(ctx) })
			if relay != nil {
				run(func() { relay.Run(ctx) })
			}
			if cfg.MetricsAddr != "" {
				health := func() error {
					stale := time.Since(synchronizer.LastPoll()) > 3*cfg.PollInterval
					if !pushConnected.Load() && stale {
						return errors.New("push channel down and poll stale")
					}
					return nil
				}
				srv := metrics.NewServer(cfg.MetricsAddr, metrics.NewRouter(synchronizer, page, health), log)
				run(func() {
					if err := srv.Run(ctx); err != nil {
						log.Error("status server", "error", err)
					}
				})
			}

			// Stdin reads cannot be interrupted, so the composer is not waited for.
			go newComposer(synchronizer, os.Stdin, os.Stdout, log).run(ctx)

			log.Info("watching feed", "server", cfg.ServerURL, "push", cfg.PushURL, "poll_interval", cfg.PollInterval)
			<-ctx.Done()
			wg.Wait()
			log.Info("stopped")
			return nil
		},
	}
}
