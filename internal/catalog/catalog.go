// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists discovered papers and their read state in
// SQLite. A paper is identified by its title; re-discovering a title
// refreshes its listing fields and keeps its read flag.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrNotFound is returned by Get when no paper has the requested id.
var ErrNotFound = errors.New("paper not found")

const paperColumns = `id, title, abstract, github_link, stars, paper_link, paper_download, code_link, arxiv_link, thoroughly_read`

// Store manages the papers database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			abstract TEXT NOT NULL DEFAULT '',
			github_link TEXT NOT NULL DEFAULT '',
			stars INTEGER NOT NULL DEFAULT 0,
			paper_link TEXT NOT NULL DEFAULT '',
			paper_download TEXT NOT NULL DEFAULT '',
			code_link TEXT NOT NULL DEFAULT '',
			arxiv_link TEXT NOT NULL DEFAULT '',
			thoroughly_read INTEGER NOT NULL DEFAULT 0,
			UNIQUE(title, paper_link)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_read ON papers(thoroughly_read)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertSummary holds counts from an Upsert call.
type UpsertSummary struct {
	New     int
	Updated int
}

// Total returns the number of papers written.
func (u UpsertSummary) Total() int {
	return u.New + u.Updated
}

// Upsert inserts papers with unseen titles and refreshes the listing fields
// of known ones. Read flags of existing papers are not changed. Papers
// without a title are ignored.
func (s *Store) Upsert(ctx context.Context, papers []types.Paper) (UpsertSummary, error) {
	var sum UpsertSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range papers {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}

		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM papers WHERE title = ?`, title).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO papers (title, abstract, github_link, stars, paper_link, paper_download, code_link, arxiv_link, thoroughly_read)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
				title, p.Abstract, p.GithubLink, p.Stars, p.PaperLink, p.PaperDownload, p.CodeLink, p.ArxivLink,
			); err != nil {
				return sum, fmt.Errorf("inserting %q: %w", title, err)
			}
			sum.New++
		case err != nil:
			return sum, fmt.Errorf("looking up %q: %w", title, err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE papers SET abstract = ?, github_link = ?, stars = ?, paper_link = ?, paper_download = ?, code_link = ?, arxiv_link = ?
				 WHERE id = ?`,
				p.Abstract, p.GithubLink, p.Stars, p.PaperLink, p.PaperDownload, p.CodeLink, p.ArxivLink, id,
			); err != nil {
				return sum, fmt.Errorf("updating %q: %w", title, err)
			}
			sum.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("committing: %w", err)
	}
	return sum, nil
}

// Unread returns up to limit unread papers in random order.
func (s *Store) Unread(ctx context.Context, limit int) ([]types.Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE thoroughly_read = 0 ORDER BY RANDOM() LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unread papers: %w", err)
	}
	defer rows.Close()
	return scanPapers(rows)
}

// List returns all papers ordered by id, optionally only unread ones.
func (s *Store) List(ctx context.Context, unreadOnly bool) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers`
	if unreadOnly {
		q += ` WHERE thoroughly_read = 0`
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()
	return scanPapers(rows)
}

// HasUnread reports whether any paper is still unread.
func (s *Store) HasUnread(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM papers WHERE thoroughly_read = 0)`).Scan(&n); err != nil {
		return false, fmt.Errorf("checking unread papers: %w", err)
	}
	return n == 1, nil
}

// Get returns the paper with the given id.
func (s *Store) Get(ctx context.Context, id int64) (types.Paper, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("reading paper %d: %w", id, err)
	}
	return p, nil
}

// MarkRead flags the given papers as read.
func (s *Store) MarkRead(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE papers SET thoroughly_read = 1 WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("marking papers read: %w", err)
	}
	return nil
}

// Count returns the number of stored papers.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (types.Paper, error) {
	var p types.Paper
	err := row.Scan(&p.ID, &p.Title, &p.Abstract, &p.GithubLink, &p.Stars,
		&p.PaperLink, &p.PaperDownload, &p.CodeLink, &p.ArxivLink, &p.Read)
	return p, err
}

func scanPapers(rows *sql.Rows) ([]types.Paper, error) {
	var out []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
