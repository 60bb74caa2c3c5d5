package paramstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/database"
)

// schema creates the store's two tables. params holds the latest runtime
// parameter set; transitions is an append-only lifecycle audit trail.
const schema = `
CREATE TABLE IF NOT EXISTS params (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transitions (
	id          TEXT PRIMARY KEY,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	transition  TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_occurred
	ON transitions(occurred_at);
`

// Store persists the runtime parameter set and the lifecycle audit trail
// in the bridge's local SQLite database.
type Store struct {
	db *database.DB
}

// Open connects the store and ensures its schema exists.
func Open(cfg database.Config) (*Store, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("paramstore: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("paramstore: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// SaveParams upserts the full parameter set in one transaction, so a
// restart never sees a half-written set.
func (s *Store) SaveParams(params map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("paramstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	stmt, err := tx.Prepare(`
		INSERT INTO params (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("paramstore: prepare: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement lifetime ends with tx

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, value := range params {
		if _, err := stmt.Exec(name, value, now); err != nil {
			return fmt.Errorf("paramstore: saving %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("paramstore: commit: %w", err)
	}
	return nil
}

// LoadParams returns the persisted parameter set, empty when nothing has
// been saved yet.
func (s *Store) LoadParams() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT name, value FROM params`)
	if err != nil {
		return nil, fmt.Errorf("paramstore: loading params: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	params := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("paramstore: scanning param: %w", err)
		}
		params[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paramstore: reading params: %w", err)
	}
	return params, nil
}

// RecordTransition appends one lifecycle audit row.
func (s *Store) RecordTransition(from, to, transition string) error {
	_, err := s.db.Exec(`
		INSERT INTO transitions (id, from_state, to_state, transition, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), from, to, transition,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("paramstore: recording transition: %w", err)
	}
	return nil
}

// Transition is one row of the lifecycle audit trail.
type Transition struct {
	ID         string
	FromState  string
	ToState    string
	Transition string
	OccurredAt time.Time
}

// RecentTransitions returns the newest audit rows, most recent first.
func (s *Store) RecentTransitions(limit int) ([]Transition, error) {
	rows, err := s.db.Query(`
		SELECT id, from_state, to_state, transition, occurred_at
		FROM transitions ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("paramstore: loading transitions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []Transition
	for rows.Next() {
		var tr Transition
		var occurred string
		if err := rows.Scan(&tr.ID, &tr.FromState, &tr.ToState, &tr.Transition, &occurred); err != nil {
			return nil, fmt.Errorf("paramstore: scanning transition: %w", err)
		}
		if tr.OccurredAt, err = time.Parse(time.RFC3339Nano, occurred); err != nil {
			return nil, fmt.Errorf("paramstore: parsing timestamp: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paramstore: reading transitions: %w", err)
	}
	return out, nil
}
