package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// eventTimeLayout is fixed-width so that text ordering matches time ordering.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dbFile is the database file name inside the data directory.
const dbFile = "andas.db"

// pragmas run on every new connection. There is only ever one.
var pragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
}

// Store wraps a SQLite database holding the user state and local analytics.
type Store struct {
	db *sql.DB
}

// Open opens the store in dataDir, creating the directory and the schema as
// needed. ":memory:" gives a private in-memory store.
func Open(dataDir string) (*Store, error) {
	dsn := dataDir
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, dbFile)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// from being split across connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- User Profile ---

func (s *Store) SetProfileKey(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_profile (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetProfileKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM user_profile WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// DeleteProfileKeys removes the given keys in one transaction. Missing keys
// are ignored.
func (s *Store) DeleteProfileKeys(keys ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.Exec("DELETE FROM user_profile WHERE key = ?", k); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting profile key %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// --- Analytics ---

// RecordEvent stores e and bumps the counter for its type atomically.
func (s *Store) RecordEvent(e Event) error {
	created := e.CreatedAt.UTC().Format(eventTimeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	var duration any
	if e.DurationMinutes > 0 {
		duration = e.DurationMinutes
	}
	if _, err := tx.Exec(`
		INSERT INTO analytics_events (id, type, exercise_id, duration_minutes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.ExerciseID, duration, created,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting event: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO analytics_counters (name, value, updated_at) VALUES (?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + 1, updated_at = excluded.updated_at`,
		e.Type, created,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("incrementing counter %q: %w", e.Type, err)
	}

	return tx.Commit()
}

// GetCounters returns every analytics counter and the latest update time.
func (s *Store) GetCounters() (Counters, error) {
	rows, err := s.db.Query("SELECT name, value, updated_at FROM analytics_counters")
	if err != nil {
		return Counters{}, err
	}
	defer rows.Close()

	c := Counters{Values: make(map[string]int64)}
	for rows.Next() {
		var (
			name    string
			value   int64
			updated string
		)
		if err := rows.Scan(&name, &value, &updated); err != nil {
			return Counters{}, err
		}
		c.Values[name] = value
		if t, err := time.Parse(eventTimeLayout, updated); err == nil && t.After(c.LastUpdated) {
			c.LastUpdated = t
		}
	}
	return c, rows.Err()
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, type, exercise_id, COALESCE(duration_minutes, 0), created_at
		FROM analytics_events
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			created string
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.ExerciseID, &e.DurationMinutes, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, err = time.Parse(eventTimeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClearAnalytics deletes every event and counter.
func (s *Store) ClearAnalytics() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	for _, table := range []string{"analytics_events", "analytics_counters"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			tx.Rollback()
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}
