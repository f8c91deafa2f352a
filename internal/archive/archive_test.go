package archive

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"feedsync/internal/model"
)

var ignoreArchivedAt = cmpopts.IgnoreFields(Entry{}, "ArchivedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func listIDs(t *testing.T, s *SQLite) []model.PostID {
	t.Helper()
	entries, err := s.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	ids := make([]model.PostID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Post.ID)
	}
	return ids
}

func TestRenderKeepsViewOrder(t *testing.T) {
	s := newTestDB(t)

	steps := []struct {
		id   model.PostID
		mode model.InsertMode
	}{
		{id: "A", mode: model.Append},
		{id: "B", mode: model.Append},
		{id: "C", mode: model.Append},
		{id: "D", mode: model.Prepend},
		{id: "E", mode: model.Prepend},
	}
	for _, step := range steps {
		if err := s.Render(model.Post{ID: step.id}, step.mode, model.SizeDefault); err != nil {
			t.Fatalf("render %s: %v", step.id, err)
		}
	}

	if diff := cmp.Diff([]model.PostID{"E", "D", "A", "B", "C"}, listIDs(t, s)); diff != "" {
		t.Errorf("archived order mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := model.Post{ID: "1", Username: "alice", Content: "original"}
	if err := s.Render(first, model.Append, model.SizeWide); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := s.Render(model.Post{ID: "1", Content: "changed"}, model.Prepend, model.SizeDefault); err != nil {
		t.Fatalf("render duplicate: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if diff := cmp.Diff(1, count); diff != "" {
		t.Errorf("count mismatch (-want +got):\n%s", diff)
	}

	got, err := s.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Entry{Post: first, Size: model.SizeWide}
	if diff := cmp.Diff(want, *got, ignoreArchivedAt); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripFields(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	archivedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return archivedAt }

	post := model.Post{
		ID:        "7",
		Username:  "bob",
		Content:   "<b>hello</b> & goodbye",
		CreatedAt: "2024-05-01 09:59:00",
		ImagePath: "uploads/7.png",
	}
	if err := s.Render(post, model.Prepend, model.SizeWide); err != nil {
		t.Fatalf("render: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []Entry{{Post: post, Size: model.SizeWide, ArchivedAt: archivedAt}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]model.Post{post}, Posts(entries)); diff != "" {
		t.Errorf("Posts mismatch (-want +got):\n%s", diff)
	}
}

func TestListLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []model.PostID{"1", "2", "3", "4"} {
		if err := s.Render(model.Post{ID: id}, model.Prepend, model.SizeDefault); err != nil {
			t.Fatalf("render %s: %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []model.PostID
	}{
		{name: "limited", limit: 2, want: []model.PostID{"4", "3"}},
		{name: "above count", limit: 10, want: []model.PostID{"4", "3", "2", "1"}},
		{name: "unlimited", limit: 0, want: []model.PostID{"4", "3", "2", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var got []model.PostID
			for _, e := range entries {
				got = append(got, e.Post.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("List(%d) mismatch (-want +got):\n%s", tt.limit, diff)
			}
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, id := range []model.PostID{"1", "2"} {
		if err := s.Render(model.Post{ID: id}, model.Append, model.SizeDefault); err != nil {
			t.Fatalf("render %s: %v", id, err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if diff := cmp.Diff(0, count); diff != "" {
		t.Errorf("count after clear mismatch (-want +got):\n%s", diff)
	}

	// Positions restart from an empty table.
	if err := s.Render(model.Post{ID: "3"}, model.Append, model.SizeDefault); err != nil {
		t.Fatalf("render after clear: %v", err)
	}
	if diff := cmp.Diff([]model.PostID{"3"}, listIDs(t, s)); diff != "" {
		t.Errorf("ids after clear mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestDB(t)
	if _, err := s.Get(context.Background(), "nope"); err == nil {
		t.Error("expected error for missing post")
	}
}
