// Package ledger records which files have been rotated so a repeated run can
// skip them instead of turning them back to their original orientation.
package ledger

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultPath is the ledger database used when none is configured.
const DefaultPath = ".tourtiles.db"

// Entry is the last recorded transform of one file.
type Entry struct {
	RotatedAt time.Time
	Path      string // absolute, cleaned
	Before    string // SHA-256 of the file before the rotation
	After     string // SHA-256 of the file as written
	Job       string
	Angle     int
}

// Ledger is a SQLite-backed record of applied rotations.
type Ledger struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS rotations (
			path TEXT NOT NULL PRIMARY KEY,
			sha_before TEXT NOT NULL,
			sha_after TEXT NOT NULL,
			angle INTEGER NOT NULL,
			job TEXT NOT NULL DEFAULT '',
			rotated_at INTEGER NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

// Record stores e, replacing any earlier entry for the same file.
func (l *Ledger) Record(e Entry) error {
	key, err := normalize(e.Path)
	if err != nil {
		return err
	}
	if e.RotatedAt.IsZero() {
		e.RotatedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.db.Exec(
		"INSERT OR REPLACE INTO rotations (path, sha_before, sha_after, angle, job, rotated_at) VALUES (?, ?, ?, ?, ?, ?)",
		key, e.Before, e.After, e.Angle, e.Job, e.RotatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", key, err)
	}
	return nil
}

// Lookup returns the entry for path, if any.
func (l *Ledger) Lookup(path string) (Entry, bool, error) {
	key, err := normalize(path)
	if err != nil {
		return Entry{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	row := l.db.QueryRow(
		"SELECT path, sha_before, sha_after, angle, job, rotated_at FROM rotations WHERE path = ?", key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to query %s: %w", key, err)
	}
	return e, true, nil
}

// IsRotated reports whether the file at path still holds the content written
// by its last recorded rotation. checksum is the file's current SHA-256.
func (l *Ledger) IsRotated(path, checksum string) (bool, error) {
	e, ok, err := l.Lookup(path)
	if err != nil || !ok {
		return false, err
	}
	return e.After == checksum, nil
}

// List returns all entries ordered by path.
func (l *Ledger) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query("SELECT path, sha_before, sha_after, angle, job, rotated_at FROM rotations ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget deletes the entry for path and reports whether one existed.
func (l *Ledger) Forget(path string) (bool, error) {
	key, err := normalize(path)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec("DELETE FROM rotations WHERE path = ?", key)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e  Entry
		ts int64
	)
	if err := s.Scan(&e.Path, &e.Before, &e.After, &e.Angle, &e.Job, &ts); err != nil {
		return Entry{}, err
	}
	e.RotatedAt = time.Unix(ts, 0)
	return e, nil
}

func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
