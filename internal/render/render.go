// Package render turns synchronized posts into user-visible output.
package render

import (
	"errors"
	"strings"
	"unicode/utf8"

	"feedsync/internal/model"
)

// AnonymousName is displayed for posts without a username.
const AnonymousName = "Anonymous"

const maxNameLength = 13

// Renderer is the sink the synchronizer materializes the feed into.
//
// Implementations must escape every untrusted post field before it reaches
// markup, see Escape.
//
// Render and Clear are called while the synchronizer holds its state lock, so
// they must return quickly. Slow sinks such as network relays should queue
// the post and deliver it from their own goroutine.
type Renderer interface {
	Render(post model.Post, mode model.InsertMode, size model.SizeVariant) error
	Clear() error
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape makes untrusted text safe for HTML markup.
func Escape(s string) string {
	return escaper.Replace(s)
}

// DisplayName returns the name shown for a post author.
func DisplayName(username string) string {
	name := strings.TrimSpace(username)
	if name == "" {
		return AnonymousName
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return string([]rune(name)[:maxNameLength]) + "..."
	}
	return name
}

// Multi fans a render out to several renderers.
type Multi []Renderer

// Render forwards to every renderer and joins their errors.
func (m Multi) Render(post model.Post, mode model.InsertMode, size model.SizeVariant) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(post, mode, size); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear forwards to every renderer and joins their errors.
func (m Multi) Clear() error {
	var errs []error
	for _, r := range m {
		if err := r.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
