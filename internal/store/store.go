// Package store persists play history and pairing history in SQLite.
// It uses the pure-Go modernc.org/sqlite driver so kiosk images need no CGO.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

var (
	ulidEntropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	ulidEntropyMu sync.Mutex
)

// NewID returns a lexically sortable unique ID for new rows.
func NewID() string {
	ulidEntropyMu.Lock()
	defer ulidEntropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// Store wraps DB access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the kiosk database at path, creating parent
// directories and running migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS play_sessions (
			id TEXT PRIMARY KEY,
			system TEXT NOT NULL,
			core TEXT NOT NULL,
			rom TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			exit_code INTEGER,
			exit_signal TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_play_sessions_started ON play_sessions(started_at DESC);

		CREATE TABLE IF NOT EXISTS pairings (
			id TEXT PRIMARY KEY,
			controller_id TEXT NOT NULL,
			screen_id TEXT NOT NULL,
			player_num INTEGER NOT NULL,
			connected_at TEXT NOT NULL,
			disconnected_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_pairings_connected ON pairings(connected_at DESC);
		CREATE INDEX IF NOT EXISTS idx_pairings_controller ON pairings(controller_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection with a short timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
