// Package store handles SQLite persistence for test results and races.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// TestResult is one completed typing test.
type TestResult struct {
	Name        string
	WPM         float64
	Accuracy    float64
	DurationSec int
	CharsTyped  int
	CreatedAt   time.Time
}

// LeaderboardEntry is a player's best recorded WPM.
type LeaderboardEntry struct {
	Name    string  `json:"name"`
	BestWPM float64 `json:"best_wpm"`
}

// Store wraps SQLite access for typing history and race records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS typing_tests (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			duration_sec INTEGER NOT NULL,
			chars_typed INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS races (
			id INTEGER PRIMARY KEY,
			race_code TEXT NOT NULL UNIQUE,
			created_by TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'waiting',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_typing_tests_name ON typing_tests(name);`,
		`CREATE INDEX IF NOT EXISTS idx_typing_tests_created_at ON typing_tests(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveTest stores a completed typing test.
func (s *Store) SaveTest(ctx context.Context, r TestResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO typing_tests (name, wpm, accuracy, duration_sec, chars_typed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.WPM, r.Accuracy, r.DurationSec, r.CharsTyped,
		r.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// RecentTests returns a player's tests, newest first.
func (s *Store) RecentTests(ctx context.Context, name string, limit int) ([]TestResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, wpm, accuracy, duration_sec, chars_typed, created_at
		 FROM typing_tests WHERE name = ? ORDER BY created_at DESC LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TestResult
	for rows.Next() {
		var r TestResult
		var created string
		if err := rows.Scan(&r.Name, &r.WPM, &r.Accuracy, &r.DurationSec, &r.CharsTyped, &created); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			r.CreatedAt = t
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Leaderboard returns the best WPM per player, highest first.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, MAX(wpm) AS best_wpm FROM typing_tests
		 GROUP BY name ORDER BY best_wpm DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.BestWPM); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// CreateRace records a new race code.
func (s *Store) CreateRace(ctx context.Context, code, createdBy string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO races (race_code, created_by, status, created_at) VALUES (?, ?, 'waiting', ?)`,
		code, createdBy, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RaceExists reports whether a race code has been created.
func (s *Store) RaceExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM races WHERE race_code = ?`, code,
	).Scan(&n)
	return n > 0, err
}
