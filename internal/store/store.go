// Package store keeps the history of saved summaries and brief runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/newspan/internal/article"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run records one brief.
type Run struct {
	ID           string
	Sources      []string
	Keywords     string
	DateRange    string
	Message      string
	ArticleCount int
	CreatedAt    time.Time
}

// Entry is a saved summary.
type Entry struct {
	ID int64 `json:"id"`
	article.Summary
	SavedAt time.Time `json:"savedAt"`
	RunID   string    `json:"runId,omitempty"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Query matches title, summary or source, case-insensitively.
	Query  string
	Source string
	Since  time.Time
	Limit  int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records run and stores its summaries. Summaries whose URL is
// already saved are skipped. It returns the number of new entries.
func (s *Store) SaveRun(ctx context.Context, run Run, summaries []article.Summary) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(run.ID) == "" {
		return 0, errors.New("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	if run.ArticleCount == 0 {
		run.ArticleCount = len(summaries)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs(id, sources, keywords, date_range, message, article_count, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		run.ID, strings.Join(run.Sources, ","), run.Keywords, run.DateRange, run.Message,
		run.ArticleCount, formatTime(run.CreatedAt),
	); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert run: %w", err)
	}

	savedAt := formatTime(run.CreatedAt)
	inserted := 0
	for _, sm := range summaries {
		if strings.TrimSpace(sm.URL) == "" || strings.TrimSpace(sm.Title) == "" {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO articles(url, title, source, summary, full_content, published_at, saved_at, run_id)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO NOTHING`,
			sm.URL, sm.Title, sm.Source, sm.Summary, boolToInt(sm.HasFullContent),
			nullTime(sm.PublishedAt), savedAt, run.ID,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert article %s: %w", sm.URL, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return inserted, nil
}

// List returns saved entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT id, url, title, source, summary, full_content, published_at, saved_at, run_id
		FROM articles
		WHERE 1 = 1`
	var args []any

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query += ` AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(summary) LIKE ? ESCAPE '\' OR LOWER(source) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern)
	}
	if src := strings.TrimSpace(f.Source); src != "" {
		query += " AND UPPER(source) = ?"
		args = append(args, strings.ToUpper(src))
	}
	if !f.Since.IsZero() {
		query += " AND saved_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY saved_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return entries, nil
}

// Clear deletes every saved entry and run. It returns the number of
// entries removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin clear transaction: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM articles")
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear articles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs"); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PruneOld deletes entries saved more than retainDays ago, and runs left
// without entries. Returns the number of entries removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(s.now().AddDate(0, 0, -retainDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE saved_at < ?", cutoff)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune old articles: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM runs WHERE created_at < ? AND id NOT IN (SELECT run_id FROM articles WHERE run_id IS NOT NULL)", cutoff,
	); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune old runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sources, keywords, date_range, message, article_count, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r                Run
			sources, created string
		)
		if err := rows.Scan(&r.ID, &sources, &r.Keywords, &r.DateRange, &r.Message, &r.ArticleCount, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if sources != "" {
			r.Sources = strings.Split(sources, ",")
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(scanner rowScanner) (Entry, error) {
	var (
		e           Entry
		fullContent int
		published   sql.NullString
		savedAt     string
		runID       sql.NullString
	)
	if err := scanner.Scan(&e.ID, &e.URL, &e.Title, &e.Source, &e.Summary.Summary, &fullContent, &published, &savedAt, &runID); err != nil {
		return Entry{}, fmt.Errorf("scan article: %w", err)
	}
	e.HasFullContent = fullContent != 0
	e.RunID = runID.String

	var err error
	if e.SavedAt, err = parseTime(savedAt); err != nil {
		return Entry{}, fmt.Errorf("parse saved_at: %w", err)
	}
	if published.Valid && published.String != "" {
		t, err := parseTime(published.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse published_at: %w", err)
		}
		e.PublishedAt = &t
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
