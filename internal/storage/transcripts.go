package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		video_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		summary TEXT,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		degraded_segments TEXT NOT NULL DEFAULT '',
		chunk_count INTEGER NOT NULL DEFAULT 0,
		estimated_tokens INTEGER NOT NULL DEFAULT 0,
		export_path TEXT NOT NULL DEFAULT '',
		drive_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_created_at ON transcripts(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transcripts_status ON transcripts(status)`,
}

const columns = `id, url, video_id, title, transcript, summary, status, error,
	degraded, degraded_segments, chunk_count, estimated_tokens, export_path, drive_url,
	created_at, updated_at`

// TranscriptDB persists transcript records in SQLite or Postgres
type TranscriptDB struct {
	db     *sql.DB
	driver string
}

// NewTranscriptDB opens the database and creates the schema. For SQLite dsn is
// a file path; for Postgres it is a connection string.
func NewTranscriptDB(ctx context.Context, driver, dsn string) (*TranscriptDB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil {
			// one writer at a time
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetConnMaxIdleTime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &TranscriptDB{db: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (tdb *TranscriptDB) rebind(query string) string {
	if tdb.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create inserts a new record. ID and timestamps are filled when empty.
func (tdb *TranscriptDB) Create(ctx context.Context, t *types.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.CreatedAt
	if t.Status == "" {
		t.Status = types.StatusPending
	}

	query := tdb.rebind(`INSERT INTO transcripts (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := tdb.db.ExecContext(ctx, query,
		t.ID, t.URL, t.VideoID, t.Title, t.Transcript, nullString(t.Summary), t.Status, t.Error,
		t.Degraded, formatSegments(t.DegradedSegments), t.ChunkCount, t.EstimatedTokens,
		t.ExportPath, t.DriveURL, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// GetByID returns the record with id or types.ErrNotFound
func (tdb *TranscriptDB) GetByID(ctx context.Context, id string) (*types.Transcript, error) {
	row := tdb.db.QueryRowContext(ctx, tdb.rebind(`SELECT `+columns+` FROM transcripts WHERE id = ?`), id)
	return scanTranscript(row)
}

// GetByURL returns the record for url or types.ErrNotFound
func (tdb *TranscriptDB) GetByURL(ctx context.Context, url string) (*types.Transcript, error) {
	row := tdb.db.QueryRowContext(ctx, tdb.rebind(`SELECT `+columns+` FROM transcripts WHERE url = ?`), url)
	return scanTranscript(row)
}

// Update writes every mutable column of t and refreshes UpdatedAt
func (tdb *TranscriptDB) Update(ctx context.Context, t *types.Transcript) error {
	t.UpdatedAt = time.Now().UTC()

	query := tdb.rebind(`UPDATE transcripts SET
		video_id = ?, title = ?, transcript = ?, summary = ?, status = ?, error = ?,
		degraded = ?, degraded_segments = ?, chunk_count = ?, estimated_tokens = ?,
		export_path = ?, drive_url = ?, updated_at = ?
		WHERE id = ?`)

	res, err := tdb.db.ExecContext(ctx, query,
		t.VideoID, t.Title, t.Transcript, nullString(t.Summary), t.Status, t.Error,
		t.Degraded, formatSegments(t.DegradedSegments), t.ChunkCount, t.EstimatedTokens,
		t.ExportPath, t.DriveURL, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transcript %s: %w", t.ID, types.ErrNotFound)
	}
	return nil
}

// ListRecent returns up to limit records, newest first
func (tdb *TranscriptDB) ListRecent(ctx context.Context, limit int) ([]*types.Transcript, error) {
	rows, err := tdb.db.QueryContext(ctx,
		tdb.rebind(`SELECT `+columns+` FROM transcripts ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := make([]*types.Transcript, 0, limit)
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	return transcripts, nil
}

// FailStale marks pending and processing records not updated since cutoff as
// failed and returns how many were changed.
func (tdb *TranscriptDB) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	res, err := tdb.db.ExecContext(ctx,
		tdb.rebind(`UPDATE transcripts SET status = ?, error = ?, updated_at = ?
			WHERE status IN (?, ?) AND updated_at < ?`),
		types.StatusFailed, message, time.Now().UTC(),
		types.StatusPending, types.StatusProcessing, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale transcripts: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (tdb *TranscriptDB) Close() error {
	return tdb.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(s scanner) (*types.Transcript, error) {
	var (
		t        types.Transcript
		summary  sql.NullString
		segments string
	)
	err := s.Scan(&t.ID, &t.URL, &t.VideoID, &t.Title, &t.Transcript, &summary, &t.Status, &t.Error,
		&t.Degraded, &segments, &t.ChunkCount, &t.EstimatedTokens, &t.ExportPath, &t.DriveURL,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	if summary.Valid {
		t.Summary = &summary.String
	}
	if t.DegradedSegments, err = parseSegments(segments); err != nil {
		return nil, fmt.Errorf("transcript %s: %w", t.ID, err)
	}
	return &t, nil
}

// degraded_segments holds chunk indexes as a comma separated list
func formatSegments(idx []int) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func parseSegments(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	idx := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad degraded segment %q: %w", p, err)
		}
		idx = append(idx, n)
	}
	return idx, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
