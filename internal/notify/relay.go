// Package notify relays newly discovered posts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedsync/internal/filter"
	"feedsync/internal/model"
	"feedsync/internal/render"
)

const queueSize = 64

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Relay is a Renderer that forwards prepended posts matching its rules to a
// single chat. Messages are queued by Render and delivered by Run.
type Relay struct {
	api    telegramAPI
	chatID int64
	rules  []filter.Rule
	log    *slog.Logger
	queue  chan string
	pause  time.Duration
}

// New creates a Relay with the given Telegram bot token.
func New(token string, chatID int64, rules []filter.Rule, log *slog.Logger) (*Relay, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return NewWithAPI(api, chatID, rules, log), nil
}

// NewWithAPI creates a Relay with a custom Telegram client (useful for testing).
func NewWithAPI(api telegramAPI, chatID int64, rules []filter.Rule, log *slog.Logger) *Relay {
	return &Relay{
		api:    api,
		chatID: chatID,
		rules:  rules,
		log:    log,
		queue:  make(chan string, queueSize),
		// Rate limit: ~20 messages/sec max for Telegram
		pause: 50 * time.Millisecond,
	}
}

// Render queues a notification for post. Only prepended posts are live
// discoveries; appended posts come from the initial load and are skipped.
func (r *Relay) Render(post model.Post, mode model.InsertMode, _ model.SizeVariant) error {
	if mode != model.Prepend {
		return nil
	}
	if !filter.Match(post, r.rules) {
		r.log.Debug("relay skipped by rules", "post_id", post.ID)
		return nil
	}

	select {
	case r.queue <- FormatNotification(post):
	default:
		r.log.Warn("relay queue full, dropping post", "post_id", post.ID)
	}
	return nil
}

// Clear is a no-op: messages already sent stay in the chat.
func (r *Relay) Clear() error {
	return nil
}

// Run delivers queued messages, blocking until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-r.queue:
			r.deliver(text)
			time.Sleep(r.pause)
		}
	}
}

func (r *Relay) deliver(text string) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := r.api.Send(msg); err != nil {
		r.log.Error("send message", "chat_id", r.chatID, "error", err)
	}
}

// FormatNotification formats a post as a Telegram HTML message.
func FormatNotification(post model.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", render.Escape(render.DisplayName(post.Username)))
	if post.CreatedAt != "" {
		fmt.Fprintf(&b, " <i>%s</i>", render.Escape(post.CreatedAt))
	}
	if post.Content != "" {
		b.WriteString("\n\n")
		b.WriteString(render.Escape(post.Content))
	}
	if post.HasImage() {
		fmt.Fprintf(&b, "\n\nimage: %s", render.Escape(post.ImagePath))
	}
	return b.String()
}
