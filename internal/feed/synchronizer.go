// Package feed keeps a duplicate-free, newest-first view of the posts feed in
// sync with the server.
//
// Posts arrive from three overlapping sources: the initial bulk fetch, the
// push channel and the periodic poll, plus the optimistic insert of a post the
// user just submitted. Every source goes through the same seen-id check so a
// post is rendered exactly once.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedsync/internal/metrics"
	"feedsync/internal/model"
	"feedsync/internal/render"
)

// ErrSubmitInFlight is returned when a submission is attempted while another
// one has not settled yet.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

// API is the part of the posts API the synchronizer consumes.
type API interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	ListPostsSince(ctx context.Context, since time.Time) ([]model.Post, error)
	CreatePost(ctx context.Context, form model.SubmitForm) (*model.Post, error)
}

// state is owned by a Synchronizer and only touched under its mutex.
type state struct {
	lastPoll       time.Time
	seen           map[model.PostID]struct{}
	view           []model.Post // newest first
	pollInFlight   bool
	submitInFlight bool
	composeOpen    bool
}

// Synchronizer materializes the feed into a Renderer.
type Synchronizer struct {
	api      API
	renderer render.Renderer
	log      *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	state state
}

// New creates a Synchronizer with an empty view.
func New(api API, renderer render.Renderer, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		api:      api,
		renderer: renderer,
		log:      log,
		now:      time.Now,
		state: state{
			seen: make(map[model.PostID]struct{}),
		},
	}
}

// SetClock overrides the clock used for poll watermarks (useful for testing).
func (s *Synchronizer) SetClock(now func() time.Time) {
	s.now = now
}

// LoadInitial replaces the whole view with the server's current feed.
// On failure the view is left untouched.
func (s *Synchronizer) LoadInitial(ctx context.Context) ([]model.Post, error) {
	posts, err := s.api.ListPosts(ctx)
	if err != nil {
		metrics.RequestFailed("load")
		s.log.Error("load feed", "error", err)
		return nil, fmt.Errorf("load feed: %w", err)
	}
	completed := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.renderer.Clear(); err != nil {
		s.log.Warn("clear view", "error", err)
	}
	s.state.seen = make(map[model.PostID]struct{}, len(posts))
	s.state.view = make([]model.Post, 0, len(posts))

	for _, post := range posts {
		if _, ok := s.state.seen[post.ID]; ok {
			metrics.DuplicateIgnored(string(model.SourceInitial))
			continue
		}
		index := len(s.state.view)
		s.state.seen[post.ID] = struct{}{}
		s.state.view = append(s.state.view, post)
		s.render(post, model.Append, LayoutHint(post, index))
		metrics.PostInserted(string(model.SourceInitial))
	}
	s.state.lastPoll = completed
	metrics.ViewSize(len(s.state.view))

	s.log.Info("feed loaded", "posts", len(s.state.view))
	return append([]model.Post(nil), s.state.view...), nil
}

// OnPush inserts a post delivered by the push channel. It returns false when
// the post is already in the view.
func (s *Synchronizer) OnPush(post model.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(post, model.SourcePush, 0)
}

// Submit sends a new post and inserts the stored record at the head of the
// view. Only one submission may be in flight at a time.
func (s *Synchronizer) Submit(ctx context.Context, form model.SubmitForm) (model.Post, error) {
	s.mu.Lock()
	if s.state.submitInFlight {
		s.mu.Unlock()
		return model.Post{}, ErrSubmitInFlight
	}
	s.state.submitInFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.submitInFlight = false
		s.mu.Unlock()
	}()

	post, err := s.api.CreatePost(ctx, form)
	if err != nil {
		metrics.RequestFailed("submit")
		s.log.Warn("submit post", "error", err)
		return model.Post{}, fmt.Errorf("submit post: %w", err)
	}

	s.mu.Lock()
	s.insertLocked(*post, model.SourceSubmit, 0)
	s.mu.Unlock()

	return *post, nil
}

// Poll asks the server for posts newer than the last watermark and inserts
// those not yet in the view. A poll is skipped without a request while
// another poll is in flight or while compose is open.
func (s *Synchronizer) Poll(ctx context.Context) (int, error) {
	s.mu.Lock()
	switch {
	case s.state.pollInFlight:
		s.mu.Unlock()
		metrics.PollSkipped(metrics.SkipInFlight)
		return 0, nil
	case s.state.composeOpen:
		s.mu.Unlock()
		metrics.PollSkipped(metrics.SkipComposeOpen)
		return 0, nil
	}
	s.state.pollInFlight = true
	since := s.state.lastPoll
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.pollInFlight = false
		s.mu.Unlock()
	}()

	posts, err := s.api.ListPostsSince(ctx, since)
	if err != nil {
		metrics.RequestFailed("poll")
		s.log.Error("poll feed", "since", since, "error", err)
		return 0, fmt.Errorf("poll feed: %w", err)
	}

	inserted := s.applyPoll(posts, s.now())
	if inserted > 0 {
		s.log.Info("poll found new posts", "count", inserted)
	}
	return inserted, nil
}

func (s *Synchronizer) applyPoll(posts []model.Post, completed time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, post := range posts {
		if s.insertLocked(post, model.SourcePoll, inserted) {
			inserted++
		}
	}
	s.state.lastPoll = completed
	return inserted
}

// insertLocked prepends post unless its id was already seen.
func (s *Synchronizer) insertLocked(post model.Post, source model.Source, index int) bool {
	if _, ok := s.state.seen[post.ID]; ok {
		metrics.DuplicateIgnored(string(source))
		s.log.Debug("duplicate post ignored", "post_id", post.ID, "source", source)
		return false
	}

	s.state.seen[post.ID] = struct{}{}
	s.state.view = append([]model.Post{post}, s.state.view...)
	s.render(post, model.Prepend, LayoutHint(post, index))

	metrics.PostInserted(string(source))
	metrics.ViewSize(len(s.state.view))
	s.log.Debug("post inserted", "post_id", post.ID, "source", source)
	return true
}

func (s *Synchronizer) render(post model.Post, mode model.InsertMode, size model.SizeVariant) {
	if err := s.renderer.Render(post, mode, size); err != nil {
		s.log.Warn("render post", "post_id", post.ID, "mode", mode, "error", err)
	}
}

// SetComposeOpen records whether the user is drafting a post.
func (s *Synchronizer) SetComposeOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.composeOpen = open
}

// ComposeOpen reports whether the user is drafting a post.
func (s *Synchronizer) ComposeOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.composeOpen
}

// View returns a snapshot of the view, newest first.
func (s *Synchronizer) View() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Post(nil), s.state.view...)
}

// Seen reports whether a post id is already in the view.
func (s *Synchronizer) Seen(id model.PostID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.seen[id]
	return ok
}

// LastPoll returns the current poll watermark.
func (s *Synchronizer) LastPoll() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.lastPoll
}
