package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"feedsync/internal/api"
	"feedsync/internal/feed"
	"feedsync/internal/model"
	"feedsync/internal/render"
)

func postCmd() *cli.Command {
	return &cli.Command{
		Name:      "post",
		Usage:     "Submit a post",
		ArgsUsage: "[content]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "author name, empty posts as Anonymous",
				EnvVars: []string{"FEEDSYNC_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "path of an image to attach",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			content := c.Args().First()
			if content == "" && c.String("image") == "" {
				return errors.New("content or --image is required")
			}

			form := model.SubmitForm{Username: c.String("username"), Content: content}
			if path := c.String("image"); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open image: %w", err)
				}
				defer func() { _ = f.Close() }()
				form.ImageName = filepath.Base(path)
				form.Image = f
			}

			client := api.New(cfg.ServerURL)
			defer func() { _ = client.Close() }()

			synchronizer := feed.New(client, render.NewText(io.Discard), log)
			post, err := synchronizer.Submit(c.Context, form)
			if err != nil {
				var rejected *api.ValidationError
				if errors.As(err, &rejected) {
					return fmt.Errorf("server rejected post: %s", rejected.Message)
				}
				return err
			}

			fmt.Fprint(os.Stdout, render.FormatLine(post, model.Prepend, model.SizeDefault))
			return nil
		},
	}
}
