// Package history persists an append-only audit trail of completed hands.
// It is not a crash-recovery mechanism; it exists so operators can
// reconcile a frozen table against what the orchestrator believed happened.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS hands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hand_id TEXT NOT NULL UNIQUE,
	table_id TEXT NOT NULL,
	hand_number INTEGER NOT NULL,
	winner TEXT NOT NULL,
	pot INTEGER NOT NULL,
	fee INTEGER NOT NULL,
	actions TEXT NOT NULL,
	ended_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hands_table ON hands(table_id);
`

// Record is one completed hand.
type Record struct {
	HandID     string
	TableID    string
	HandNumber uint64
	Winner     string
	Pot        int64
	Fee        int64
	Actions    []Action
	EndedAt    time.Time
}

// Action is one logged action inside a hand.
type Action struct {
	Player string `json:"player"`
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
	Stage  string `json:"stage"`
}

// Store is a sqlite-backed hand audit store. Pass ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to run history migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records a completed hand. Appending the same hand id twice is a
// no-op so hand-end retries cannot duplicate rows.
func (s *Store) Append(rec Record) error {
	actions, err := json.Marshal(rec.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR IGNORE INTO hands (hand_id, table_id, hand_number, winner, pot, fee, actions, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.HandID, rec.TableID, rec.HandNumber, rec.Winner, rec.Pot, rec.Fee, string(actions), rec.EndedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append hand record: %w", err)
	}
	return nil
}

// ForTable returns the recorded hands for a table, oldest first.
func (s *Store) ForTable(tableID string) ([]Record, error) {
	rows, err := s.db.Query(
		"SELECT hand_id, table_id, hand_number, winner, pot, fee, actions, ended_at FROM hands WHERE table_id = ? ORDER BY id",
		tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query hands: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var actions, endedAt string
		if err := rows.Scan(&rec.HandID, &rec.TableID, &rec.HandNumber, &rec.Winner, &rec.Pot, &rec.Fee, &actions, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hand record: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &rec.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions: %w", err)
		}
		rec.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
