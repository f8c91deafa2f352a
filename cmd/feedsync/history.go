package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"feedsync/internal/archive"
	"feedsync/internal/export"
	"feedsync/internal/model"
	"feedsync/internal/render"
)

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print archived posts, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "number of posts to print, 0 for all",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			total, err := store.Count(c.Context)
			if err != nil {
				return err
			}

			for _, e := range entries {
				fmt.Fprint(os.Stdout, render.FormatLine(e.Post, model.Append, e.Size))
			}
			fmt.Fprintf(os.Stdout, "%d of %d archived posts\n", len(entries), total)
			return nil
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write archived posts as an RSS 2.0 feed",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   50,
				Usage:   "number of items, 0 for all",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "file to write, stdout when empty",
			},
			&cli.StringFlag{
				Name:  "title",
				Value: "Posts",
				Usage: "channel title",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.List(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}

			out := os.Stdout
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			ch := export.Channel{
				Title:       c.String("title"),
				Link:        cfg.ServerURL,
				Description: "Posts mirrored from " + cfg.ServerURL,
			}
			if err := export.WriteRSS(out, ch, archive.Posts(entries)); err != nil {
				return err
			}
			log.Debug("exported feed", "items", len(entries))
			return nil
		},
	}
}
