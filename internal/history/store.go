// Package history records every displayed notification in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	recordTimeout = 5 * time.Second
)

// Record is one displayed notification.
type Record struct {
	ID          string
	Message     string
	Actions     []string
	ShownAt     time.Time
	DismissedAt time.Time // zero while still displayed
	Reason      string
}

// Dismissed reports whether the notification has been dismissed.
func (r Record) Dismissed() bool {
	return !r.DismissedAt.IsZero()
}

// Store is a SQLite-backed display history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == MemoryPath {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened history database", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Listener returns a queue listener that records shown and dismissed events.
// Write failures are logged.
func (s *Store) Listener() snackbar.Listener {
	return func(ev snackbar.Event) {
		if ev.Kind != snackbar.EventShown && ev.Kind != snackbar.EventDismissed {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.Record(ctx, ev); err != nil {
			s.logger.Warn("failed to record notification history", "request_id", ev.Request.ID, "error", err)
		}
	}
}

// Record stores a shown or dismissed event. Other event kinds are ignored.
// Events for the same request may arrive in either order.
func (s *Store) Record(ctx context.Context, ev snackbar.Event) error {
	actions, err := json.Marshal(ev.Request.Labels())
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	switch ev.Kind {
	case snackbar.EventShown:
		_, err = s.db.ExecContext(ctx, `
INSERT INTO displays (id, message, actions, shown_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    message = excluded.message,
    actions = excluded.actions,
    shown_at = excluded.shown_at`,
			ev.Request.ID, ev.Request.Message, string(actions), ev.At.UnixMilli())
	case snackbar.EventDismissed:
		_, err = s.db.ExecContext(ctx, `
INSERT INTO displays (id, message, actions, shown_at, dismissed_at, reason)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    dismissed_at = excluded.dismissed_at,
    reason = excluded.reason`,
			ev.Request.ID, ev.Request.Message, string(actions), ev.At.UnixMilli(), ev.At.UnixMilli(), ev.Reason.String())
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", ev.Kind, err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, message, actions, shown_at, dismissed_at, reason
FROM displays
ORDER BY shown_at DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r           Record
			actions     string
			shownAt     int64
			dismissedAt sql.NullInt64
			reason      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Message, &actions, &shownAt, &dismissedAt, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &r.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions for %s: %w", r.ID, err)
		}
		r.ShownAt = time.UnixMilli(shownAt)
		if dismissedAt.Valid {
			r.DismissedAt = time.UnixMilli(dismissedAt.Int64)
		}
		r.Reason = reason.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM displays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Prune deletes records shown before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM displays WHERE shown_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	if n > 0 {
		s.logger.Debug("pruned history", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}
