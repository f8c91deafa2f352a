// Package archive persists the materialized view in SQLite.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samber/lo"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"feedsync/internal/model"
	"feedsync/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Entry is an archived post with the presentation it was rendered with.
type Entry struct {
	Post       model.Post
	Size       model.SizeVariant
	ArchivedAt time.Time
}

// SQLite is a Renderer that writes every rendered post to a SQLite database,
// keeping the view order: prepended posts get a position below the current
// head, appended posts one above the current tail.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Render stores post at the head or tail of the archived view.
// A post whose id is already archived is left as is.
func (s *SQLite) Render(post model.Post, mode model.InsertMode, size model.SizeVariant) error {
	position := `(SELECT COALESCE(MAX(position), 0) + 1 FROM posts)`
	if mode == model.Prepend {
		position = `(SELECT COALESCE(MIN(position), 0) - 1 FROM posts)`
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO posts (id, username, content, created_at, image_path, size, position, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, `+position+`, ?)`,
		string(post.ID), post.Username, post.Content, post.CreatedAt, post.ImagePath,
		string(size), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("archive post %s: %w", post.ID, err)
	}
	return nil
}

// Clear removes every archived post.
func (s *SQLite) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM posts`); err != nil {
		return fmt.Errorf("clear archive: %w", err)
	}
	return nil
}

// List returns up to limit archived posts, newest first. A limit of zero or
// less returns everything.
func (s *SQLite) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, content, created_at, image_path, size, archived_at
		 FROM posts ORDER BY position LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns a single archived post by id.
func (s *SQLite) Get(ctx context.Context, id model.PostID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, content, created_at, image_path, size, archived_at
		 FROM posts WHERE id = ?`, string(id),
	)
	e, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Count returns the number of archived posts.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (Entry, error) {
	var e Entry
	var id, size, archived string
	err := row.Scan(&id, &e.Post.Username, &e.Post.Content, &e.Post.CreatedAt, &e.Post.ImagePath, &size, &archived)
	if err != nil {
		return e, fmt.Errorf("scan post: %w", err)
	}
	e.Post.ID = model.PostID(id)
	e.Size = model.SizeVariant(size)
	e.ArchivedAt, _ = time.Parse(timeLayout, archived)
	return e, nil
}

// Posts strips archive metadata from entries.
func Posts(entries []Entry) []model.Post {
	return lo.Map(entries, func(e Entry, _ int) model.Post { return e.Post })
}
