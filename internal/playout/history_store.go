package playout

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// HistoryStore persists accepted snapshots per device.
//
// Implementations must be thread-safe.
type HistoryStore interface {
	// Record stores snap as the entry at t, replacing any entry at t.
	Record(ctx context.Context, deviceID string, t time.Time, snap timeline.Snapshot) error

	// Load returns entries at or after since, oldest first. A zero since
	// loads everything.
	Load(ctx context.Context, deviceID string, since time.Time) ([]HistoryEntry, error)

	// Prune deletes entries older than the newest entry earlier than
	// before, mirroring History.PruneBefore. It returns rows deleted.
	Prune(ctx context.Context, deviceID string, before time.Time) (int64, error)

	// DropFrom deletes entries at or after t, mirroring History.DropFrom.
	// It returns rows deleted.
	DropFrom(ctx context.Context, deviceID string, t time.Time) (int64, error)
}

// SQLiteHistoryStore implements HistoryStore on the playout_history table.
//
// Snapshots are stored as their JSON wire form keyed by (device_id, time_ms).
type SQLiteHistoryStore struct {
	db *sql.DB
}

// NewSQLiteHistoryStore creates a store on an open, migrated database.
func NewSQLiteHistoryStore(db *sql.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db}
}

// Record implements HistoryStore.
func (s *SQLiteHistoryStore) Record(ctx context.Context, deviceID string, t time.Time, snap timeline.Snapshot) error {
	if deviceID == "" {
		return ErrDeviceIDRequired
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO playout_history (device_id, time_ms, snapshot) VALUES (?, ?, ?)
		 ON CONFLICT(device_id, time_ms) DO UPDATE SET snapshot = excluded.snapshot`,
		deviceID,
		t.UnixMilli(),
		string(snapJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting playout history: %w", err)
	}
	return nil
}

// Load implements HistoryStore.
func (s *SQLiteHistoryStore) Load(ctx context.Context, deviceID string, since time.Time) ([]HistoryEntry, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	var sinceMS int64
	if !since.IsZero() {
		sinceMS = since.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT time_ms, snapshot
		 FROM playout_history
		 WHERE device_id = ? AND time_ms >= ?
		 ORDER BY time_ms ASC`,
		deviceID,
		sinceMS,
	)
	if err != nil {
		return nil, fmt.Errorf("querying playout history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var timeMS int64
		var snapJSON string
		if err := rows.Scan(&timeMS, &snapJSON); err != nil {
			return nil, fmt.Errorf("scanning playout history: %w", err)
		}

		var snap timeline.Snapshot
		if err := json.Unmarshal([]byte(snapJSON), &snap); err != nil {
			return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
		}
		entries = append(entries, HistoryEntry{Time: time.UnixMilli(timeMS), Snapshot: snap})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playout history: %w", err)
	}
	return entries, nil
}

// Prune implements HistoryStore.
func (s *SQLiteHistoryStore) Prune(ctx context.Context, deviceID string, before time.Time) (int64, error) {
	if deviceID == "" {
		return 0, ErrDeviceIDRequired
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM playout_history
		 WHERE device_id = ?
		   AND time_ms < (
		     SELECT MAX(time_ms) FROM playout_history
		     WHERE device_id = ? AND time_ms < ?
		   )`,
		deviceID,
		deviceID,
		before.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting playout history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}

// DropFrom implements HistoryStore.
func (s *SQLiteHistoryStore) DropFrom(ctx context.Context, deviceID string, t time.Time) (int64, error) {
	if deviceID == "" {
		return 0, ErrDeviceIDRequired
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM playout_history WHERE device_id = ? AND time_ms >= ?`,
		deviceID,
		t.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting playout history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected, nil
}
