package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"feedsync/internal/model"
)

// HTML keeps the feed as ordered markup fragments, newest first.
type HTML struct {
	mu        sync.RWMutex
	fragments []string
	ids       map[model.PostID]bool
}

// NewHTML creates an empty HTML renderer.
func NewHTML() *HTML {
	return &HTML{ids: make(map[model.PostID]bool)}
}

// Render inserts the markup of one post. A post already present is skipped.
func (h *HTML) Render(post model.Post, mode model.InsertMode, size model.SizeVariant) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ids[post.ID] {
		return nil
	}
	h.ids[post.ID] = true

	fragment := Fragment(post, mode, size)
	if mode == model.Prepend {
		h.fragments = append([]string{fragment}, h.fragments...)
		return nil
	}
	h.fragments = append(h.fragments, fragment)
	return nil
}

// Clear drops every fragment.
func (h *HTML) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fragments = nil
	h.ids = make(map[model.PostID]bool)
	return nil
}

// Len returns the number of rendered posts.
func (h *HTML) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.fragments)
}

// WriteTo writes the posts container with every fragment in view order.
func (h *HTML) WriteTo(w io.Writer) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var b strings.Builder
	b.WriteString(`<div id="posts-container">`)
	for _, f := range h.fragments {
		b.WriteString(f)
	}
	b.WriteString("</div>\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Fragment renders the markup of a single post.
func Fragment(post model.Post, mode model.InsertMode, size model.SizeVariant) string {
	classes := []string{"post"}
	if size == model.SizeWide {
		classes = append(classes, "size-2")
	}
	if mode == model.Prepend {
		classes = append(classes, "new-post")
	}

	var img string
	if post.HasImage() {
		img = fmt.Sprintf(`<img src="/static/%s" class="post-image" alt="Post image">`, Escape(post.ImagePath))
	}

	return fmt.Sprintf(`<div class="%s" data-id="%s">`+
		`<div class="post-header">`+
		`<span class="post-author">%s</span>`+
		`<span class="post-date">%s</span>`+
		`</div>`+
		`<div class="post-content">%s</div>%s</div>`,
		strings.Join(classes, " "),
		Escape(string(post.ID)),
		Escape(DisplayName(post.Username)),
		Escape(post.CreatedAt),
		Escape(post.Content),
		img,
	)
}
