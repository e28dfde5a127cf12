package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blesensor/senso4s"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  identifier TEXT    NOT NULL,
  address    TEXT    NOT NULL,
  model      TEXT    NOT NULL,
  taken_at   TEXT    NOT NULL,
  error      TEXT,
  payload    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_identifier_taken_at ON snapshots(identifier, taken_at);
`

// Store records acquired snapshots in a sqlite database
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if necessary initializes) the snapshot database at
// the given path
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init snapshot schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveSnapshot persists one snapshot, serialized as JSON alongside its
// indexable identity columns
func (s *Store) SaveSnapshot(ctx context.Context, snap *senso4s.Snapshot, takenAt time.Time) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	var errColumn sql.NullString
	if snap.Failed() {
		errColumn = sql.NullString{String: snap.Error, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (identifier, address, model, taken_at, error, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Identifier, snap.Address, string(snap.Model), takenAt.UTC().Format(time.RFC3339), errColumn, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Recorded denotes one persisted snapshot row
type Recorded struct {
	ID      int64
	TakenAt time.Time
	Error   string
	Payload []byte
}

// RecentSnapshots returns up to limit snapshots for a device, newest first
func (s *Store) RecentSnapshots(ctx context.Context, identifier string, limit int) ([]Recorded, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, taken_at, COALESCE(error, ''), payload FROM snapshots WHERE identifier = ? ORDER BY taken_at DESC, id DESC LIMIT ?`,
		identifier, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var records []Recorded
	for rows.Next() {
		var (
			record  Recorded
			takenAt string
			payload string
		)
		if err := rows.Scan(&record.ID, &takenAt, &record.Error, &payload); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if record.TakenAt, err = time.Parse(time.RFC3339, takenAt); err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", takenAt, err)
		}
		record.Payload = []byte(payload)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
