package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"feedsync/internal/feed"
	"feedsync/internal/model"
)

const composeCommand = ":post"

type submitter interface {
	SetComposeOpen(open bool)
	Submit(ctx context.Context, form model.SubmitForm) (model.Post, error)
}

// composer reads compose commands from a line-oriented input.
type composer struct {
	sync submitter
	in   *bufio.Scanner
	out  io.Writer
	log  *slog.Logger
}

func newComposer(s submitter, in io.Reader, out io.Writer, log *slog.Logger) *composer {
	return &composer{sync: s, in: bufio.NewScanner(in), out: out, log: log}
}

func (c *composer) run(ctx context.Context) {
	for ctx.Err() == nil && c.in.Scan() {
		if strings.TrimSpace(c.in.Text()) != composeCommand {
			continue
		}
		c.compose(ctx)
	}
}

// compose opens compose, collects one post and submits it. A failed submission
// keeps the draft so the user can retry.
func (c *composer) compose(ctx context.Context) {
	c.sync.SetComposeOpen(true)
	defer c.sync.SetComposeOpen(false)

	username, ok := c.prompt("username: ")
	if !ok {
		return
	}
	content, ok := c.prompt("content: ")
	if !ok {
		return
	}
	imagePath, ok := c.prompt("image path (optional): ")
	if !ok {
		return
	}

	for {
		post, err := c.submit(ctx, username, content, imagePath)
		if err == nil {
			fmt.Fprintf(c.out, "posted #%s\n", post.ID)
			return
		}
		if errors.Is(err, feed.ErrSubmitInFlight) {
			fmt.Fprintln(c.out, "a post is already being submitted")
			return
		}
		fmt.Fprintln(c.out, "error:", err)

		answer, ok := c.prompt("retry? [y/N]: ")
		if !ok || !strings.EqualFold(answer, "y") {
			fmt.Fprintln(c.out, "draft discarded")
			return
		}
	}
}

func (c *composer) submit(ctx context.Context, username, content, imagePath string) (model.Post, error) {
	form := model.SubmitForm{Username: username, Content: content}
	if imagePath != "" {
		f, err := os.Open(imagePath)
		if err != nil {
			return model.Post{}, fmt.Errorf("open image: %w", err)
		}
		defer func() { _ = f.Close() }()
		form.ImageName = filepath.Base(imagePath)
		form.Image = f
	}
	return c.sync.Submit(ctx, form)
}

func (c *composer) prompt(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}
