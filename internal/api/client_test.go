package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"feedsync/internal/model"
)

const feedJSON = `[
	{"id": 3, "username": "carol", "content": "third", "created_at": "2024-05-01 10:02:00", "image_path": "uploads/c.png"},
	{"id": 2, "username": "", "content": "second", "created_at": "2024-05-01 10:01:00", "image_path": null},
	{"id": 1, "username": "alice", "content": "<b>first</b>", "created_at": "2024-05-01 10:00:00"}
]`

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewWithTimeout(srv.URL, 2*time.Second)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestListPosts(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIDs    []model.PostID
		wantStatus int
		wantErr    bool
	}{
		{
			name:    "successful fetch",
			status:  http.StatusOK,
			body:    feedJSON,
			wantIDs: []model.PostID{"3", "2", "1"},
		},
		{
			name:    "empty feed",
			status:  http.StatusOK,
			body:    `[]`,
			wantIDs: nil,
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"error": "database unavailable"}`,
			wantErr:    true,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/posts" || r.Method != http.MethodGet {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			posts, err := c.ListPosts(context.Background())
			if tt.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if diff := cmp.Diff(tt.wantStatus, verr.Status); diff != "" {
					t.Errorf("status mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var gotIDs []model.PostID
			for _, p := range posts {
				gotIDs = append(gotIDs, p.ID)
			}
			if diff := cmp.Diff(tt.wantIDs, gotIDs); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListPostsDecodesFields(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, feedJSON)
	})

	posts, err := c.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.Post{
		{ID: "3", Username: "carol", Content: "third", CreatedAt: "2024-05-01 10:02:00", ImagePath: "uploads/c.png"},
		{ID: "2", Username: "", Content: "second", CreatedAt: "2024-05-01 10:01:00"},
		{ID: "1", Username: "alice", Content: "<b>first</b>", CreatedAt: "2024-05-01 10:00:00"},
	}
	if diff := cmp.Diff(want, posts); diff != "" {
		t.Errorf("posts mismatch (-want +got):\n%s", diff)
	}
}

func TestListPostsSince(t *testing.T) {
	since := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("ICT", 7*3600))

	var gotSince string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id": "abc", "username": "dave", "content": "hi", "created_at": "x"}]`)
	})

	posts, err := c.ListPostsSince(context.Background(), since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff("2024-05-01T03:00:00Z", gotSince); diff != "" {
		t.Errorf("since mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, len(posts)); diff != "" {
		t.Fatalf("post count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.PostID("abc"), posts[0].ID); diff != "" {
		t.Errorf("id mismatch (-want +got):\n%s", diff)
	}
}

func TestListPostsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewWithTimeout(url, time.Second)
	defer func() { _ = c.Close() }()

	_, err := c.ListPosts(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if diff := cmp.Diff("list posts", terr.Op); diff != "" {
		t.Errorf("op mismatch (-want +got):\n%s", diff)
	}
}

func TestCreatePost(t *testing.T) {
	tests := []struct {
		name        string
		form        model.SubmitForm
		status      int
		contentType string
		body        string
		wantPost    *model.Post
		wantFields  map[string]string
		wantImage   string
		wantMessage string
	}{
		{
			name:        "text post",
			form:        model.SubmitForm{Username: "alice", Content: "hello"},
			status:      http.StatusCreated,
			contentType: "application/json",
			body:        `{"id": 7, "username": "alice", "content": "hello", "created_at": "2024-05-01 10:00:00", "image_path": null}`,
			wantPost:    &model.Post{ID: "7", Username: "alice", Content: "hello", CreatedAt: "2024-05-01 10:00:00"},
			wantFields:  map[string]string{"username": "alice", "content": "hello"},
		},
		{
			name: "image post",
			form: model.SubmitForm{
				Username:  "bob",
				Content:   "look",
				ImageName: "cat.png",
				Image:     strings.NewReader("PNGDATA"),
			},
			status:      http.StatusCreated,
			contentType: "application/json",
			body:        `{"id": 8, "username": "bob", "content": "look", "created_at": "2024-05-01 10:00:00", "image_path": "uploads/x_cat.png"}`,
			wantPost:    &model.Post{ID: "8", Username: "bob", Content: "look", CreatedAt: "2024-05-01 10:00:00", ImagePath: "uploads/x_cat.png"},
			wantFields:  map[string]string{"username": "bob", "content": "look"},
			wantImage:   "PNGDATA",
		},
		{
			name:        "json rejection",
			form:        model.SubmitForm{Username: "alice", Content: ""},
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"error": "content is required"}`,
			wantMessage: "content is required",
		},
		{
			name:        "plain text rejection",
			form:        model.SubmitForm{Username: "alice", Content: "x"},
			status:      http.StatusRequestEntityTooLarge,
			contentType: "text/plain",
			body:        "payload too large",
			wantMessage: "payload too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotFields := map[string]string{}
			var gotImage string
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method %s", r.Method)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("parse multipart: %v", err)
				}
				for k, v := range r.MultipartForm.Value {
					gotFields[k] = v[0]
				}
				if f, _, err := r.FormFile("image"); err == nil {
					data, _ := io.ReadAll(f)
					gotImage = string(data)
				}
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			post, err := c.CreatePost(context.Background(), tt.form)
			if tt.wantMessage != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if diff := cmp.Diff(tt.wantMessage, verr.Message); diff != "" {
					t.Errorf("message mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantPost, post); diff != "" {
				t.Errorf("post mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantFields, gotFields); diff != "" {
				t.Errorf("form fields mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantImage, gotImage); diff != "" {
				t.Errorf("image mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreatePostRejectsLongUsernameLocally(t *testing.T) {
	called := false
	c := newTestServer(t, func(http.ResponseWriter, *http.Request) { called = true })

	_, err := c.CreatePost(context.Background(), model.SubmitForm{
		Username: strings.Repeat("u", 101),
		Content:  "hello",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if called {
		t.Error("server should not be called for an invalid form")
	}
}
