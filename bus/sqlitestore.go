package bus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const eventSQLiteSchema = `
CREATE TABLE IF NOT EXISTS activity_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	kind TEXT NOT NULL,
	user_id TEXT NOT NULL,
	movie_id INTEGER NOT NULL DEFAULT 0,
	time TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_events_user ON activity_events(user_id, seq);`

// SQLiteStoreConfig configures the SQLite event store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteEventStore persists account activity events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// NewSQLiteEventStore opens (or creates) a SQLite-backed event store.
func NewSQLiteEventStore(cfg SQLiteStoreConfig) (*SQLiteEventStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("event sqlite store dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("event sqlite store open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("event sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(eventSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("event sqlite store create schema: %w", err)
	}

	return &SQLiteEventStore{db: db}, nil
}

// Append stores an event, assigning it the next sequence number.
func (s *SQLiteEventStore) Append(ctx context.Context, event Event) (Event, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO activity_events (id, kind, user_id, movie_id, time)
VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		string(event.Kind),
		event.UserID,
		event.MovieID,
		event.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Event{}, fmt.Errorf("event sqlite store append: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return Event{}, fmt.Errorf("event sqlite store append seq: %w", err)
	}
	event.Seq = uint64(seq)
	return event, nil
}

// List returns events for a user with Seq greater than afterSeq.
func (s *SQLiteEventStore) List(ctx context.Context, userID string, afterSeq uint64, limit int) ([]Event, error) {
	query := `
SELECT seq, id, kind, user_id, movie_id, time
FROM activity_events
WHERE seq > ?`
	args := []any{int64(afterSeq)}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY seq ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("event sqlite store list: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			seq       int64
			id        string
			kind      string
			uid       string
			movieID   int64
			timestamp string
		)
		if err := rows.Scan(&seq, &id, &kind, &uid, &movieID, &timestamp); err != nil {
			return nil, fmt.Errorf("event sqlite store scan: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("event sqlite store parse time: %w", err)
		}
		events = append(events, Event{
			ID:      id,
			Kind:    EventKind(kind),
			UserID:  uid,
			MovieID: movieID,
			Time:    ts,
			Seq:     uint64(seq),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event sqlite store list rows: %w", err)
	}
	return events, nil
}

// Close closes the underlying database connection.
func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

var _ EventStore = (*SQLiteEventStore)(nil)
