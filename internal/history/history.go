// Package history keeps a local SQLite ledger of capture runs. It lives
// outside the content store and is never read by the capture itself.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded capture attempt.
type Run struct {
	ID            string
	StatusID      string
	SourceURL     string
	Outcome       string
	ThreadCount   int
	SkippedCount  int
	ArticleStatus string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration is how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Ledger is the capture history database.
type Ledger struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS capture_runs (
	id TEXT PRIMARY KEY,
	status_id TEXT NOT NULL,
	source_url TEXT NOT NULL,
	outcome TEXT NOT NULL,
	thread_count INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	article_status TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_runs_status ON capture_runs(status_id);
CREATE INDEX IF NOT EXISTS idx_capture_runs_started ON capture_runs(started_at);
`

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Record inserts or replaces a run.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO capture_runs
			(id, status_id, source_url, outcome, thread_count, skipped_count, article_status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StatusID, r.SourceURL, r.Outcome, r.ThreadCount, r.SkippedCount, r.ArticleStatus,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. statusID, when set, filters
// to one post.
func (l *Ledger) Recent(ctx context.Context, limit int, statusID string) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT id, status_id, source_url, outcome, thread_count, skipped_count, article_status, started_at, finished_at
		FROM capture_runs`
	args := []any{}
	if statusID != "" {
		q += ` WHERE status_id = ?`
		args = append(args, statusID)
	}
	q += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.StatusID, &r.SourceURL, &r.Outcome, &r.ThreadCount,
			&r.SkippedCount, &r.ArticleStatus, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Render writes runs as a table.
func Render(w io.Writer, runs []Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Status ID", "Outcome", "Thread", "Skipped", "Article", "Took", "Run"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.StatusID,
			r.Outcome,
			r.ThreadCount,
			r.SkippedCount,
			r.ArticleStatus,
			r.Duration().Round(time.Millisecond).String(),
			r.ID,
		})
	}
	t.Render()
}
