// Package ledger records the total chunk count first declared for every in-flight upload.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-chunkstore/identity"
	_ "modernc.org/sqlite"
)

// Entry is one in-flight upload.
type Entry struct {
	Identity  identity.Identity
	Total     int
	CreatedAt time.Time
}

// SQLiteLedger ...
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the ledger database at path.
func OpenSQLite(path string) (*SQLiteLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps Declare's insert-then-read free of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS uploads (
	content_hash TEXT PRIMARY KEY,
	extension TEXT NOT NULL,
	total INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
`)
	return err
}

// Close ...
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// fixed width, so timestamps compare correctly as text
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func iso(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

// Declare records total for id unless a total is already recorded, and returns the
// recorded one. Callers compare it with their own to detect disagreeing chunks.
func (l *SQLiteLedger) Declare(ctx context.Context, id identity.Identity, total int) (int, error) {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO uploads(content_hash, extension, total, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_hash) DO NOTHING`,
		id.ContentHash,
		id.Extension,
		total,
		iso(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("declare total of %s: %w", id.ContentHash, err)
	}

	var recorded int
	err = l.db.QueryRowContext(ctx, `SELECT total FROM uploads WHERE content_hash = ?`, id.ContentHash).Scan(&recorded)
	if err != nil {
		return 0, fmt.Errorf("read total of %s: %w", id.ContentHash, err)
	}
	return recorded, nil
}

// Lookup returns the recorded total, or false when the upload is unknown.
func (l *SQLiteLedger) Lookup(ctx context.Context, id identity.Identity) (int, bool, error) {
	var total int
	err := l.db.QueryRowContext(ctx, `SELECT total FROM uploads WHERE content_hash = ?`, id.ContentHash).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read total of %s: %w", id.ContentHash, err)
	}
	return total, true, nil
}

// Forget drops the entry of id. Unknown ids are ignored.
func (l *SQLiteLedger) Forget(ctx context.Context, id identity.Identity) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM uploads WHERE content_hash = ?`, id.ContentHash); err != nil {
		return fmt.Errorf("forget %s: %w", id.ContentHash, err)
	}
	return nil
}

// Stale lists uploads declared before cutoff, oldest first.
func (l *SQLiteLedger) Stale(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT content_hash, extension, total, created_at FROM uploads WHERE created_at < ? ORDER BY created_at`,
		iso(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query stale uploads: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
		)
		if err := rows.Scan(&e.Identity.ContentHash, &e.Identity.Extension, &e.Total, &createdAt); err != nil {
			return nil, fmt.Errorf("scan stale upload: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of %s: %w", e.Identity.ContentHash, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
