package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"feedsync/internal/model"
)

// Text writes posts as plain lines, suitable for a terminal.
type Text struct {
	mu sync.Mutex
	w  io.Writer
}

// NewText creates a Text renderer writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Render writes one post. New posts are marked with "+".
func (t *Text) Render(post model.Post, mode model.InsertMode, size model.SizeVariant) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := io.WriteString(t.w, FormatLine(post, mode, size))
	if err != nil {
		return fmt.Errorf("write post %s: %w", post.ID, err)
	}
	return nil
}

// Clear writes a separator so a reloaded feed starts visibly fresh.
func (t *Text) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.w, "----\n"); err != nil {
		return fmt.Errorf("write separator: %w", err)
	}
	return nil
}

// FormatLine formats a post as a single terminal line.
func FormatLine(post model.Post, mode model.InsertMode, size model.SizeVariant) string {
	var b strings.Builder
	if mode == model.Prepend {
		b.WriteString("+ ")
	} else {
		b.WriteString("  ")
	}
	fmt.Fprintf(&b, "[%s] %s: %s", post.CreatedAt, DisplayName(post.Username), oneLine(post.Content))
	if post.HasImage() {
		fmt.Fprintf(&b, " (image: %s)", post.ImagePath)
	}
	if size == model.SizeWide {
		b.WriteString(" *")
	}
	b.WriteString("\n")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
