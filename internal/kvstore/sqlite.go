package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/checksum"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	area       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (area, key)
);
`

type snapshotEntry struct {
	sum   string
	value json.RawMessage
}

// SQLite is a Store backed by a SQLite database file. Several processes may
// open the same file; Watch turns their writes into change events.
type SQLite struct {
	conn   *sql.DB
	path   string
	logger *slog.Logger
	notify *notifier

	// mu serialises writes with the snapshot used to detect foreign writes.
	mu       sync.Mutex
	snapshot map[string]snapshotEntry
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("kvstore: sqlite path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kvstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: apply schema: %w", err)
	}

	s := &SQLite{
		conn:   conn,
		path:   path,
		logger: logger,
		notify: newNotifier(uuid.NewString()),
	}
	snap, err := s.readAll()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.snapshot = snap
	return s, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, AreaLocal)
	for _, k := range keys {
		args = append(args, k)
	}
	q := `SELECT key, value FROM kv WHERE area = ? AND key IN (?` + strings.Repeat(",?", len(keys)-1) + `)`
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
		}
		out[k] = json.RawMessage(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
	}
	return out, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, items map[string]any) error {
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}
	return s.write(ctx, encoded)
}

// write commits encoded and publishes the resulting changes before releasing
// mu, so events leave in the same order as the commits.
func (s *SQLite) write(ctx context.Context, encoded map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", apperr.ErrStoreWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	old := make(map[string]json.RawMessage, len(encoded))
	for k, v := range encoded {
		var prev string
		switch err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, AreaLocal, k).Scan(&prev); {
		case err == nil:
			old[k] = json.RawMessage(prev)
		case err != sql.ErrNoRows:
			return fmt.Errorf("%w: read %s: %w", apperr.ErrStoreWrite, k, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv (area, key, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(area, key) DO UPDATE SET
				value      = excluded.value,
				updated_at = excluded.updated_at
		`, AreaLocal, k, string(v), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("%w: upsert %s: %w", apperr.ErrStoreWrite, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", apperr.ErrStoreWrite, err)
	}

	for k, v := range encoded {
		s.snapshot[k] = snapshotEntry{sum: checksum.Sum(v), value: v}
	}
	s.notify.publish(diff(old, encoded), "")
	return nil
}

// Remove implements Store.
func (s *SQLite) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes := make(map[string]Change)
	for _, k := range keys {
		var prev string
		err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, AreaLocal, k).Scan(&prev)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", apperr.ErrStoreWrite, k, err)
		}
		if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE area = ? AND key = ?`, AreaLocal, k); err != nil {
			return fmt.Errorf("%w: delete %s: %w", apperr.ErrStoreWrite, k, err)
		}
		delete(s.snapshot, k)
		changes[k] = Change{OldValue: json.RawMessage(prev)}
	}
	s.notify.publish(changes, "")
	return nil
}

// OnChanged implements Store.
func (s *SQLite) OnChanged(fn Listener) func() {
	return s.notify.subscribe(fn)
}

// Close implements Store.
func (s *SQLite) Close() error {
	s.notify.close()
	return s.conn.Close()
}

// readAll loads a checksum snapshot of every key in the local area.
func (s *SQLite) readAll() (map[string]snapshotEntry, error) {
	rows, err := s.conn.Query(`SELECT key, value FROM kv WHERE area = ?`, AreaLocal)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
	}
	defer rows.Close()
	out := make(map[string]snapshotEntry)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
		}
		raw := json.RawMessage(v)
		out[k] = snapshotEntry{sum: checksum.Sum(raw), value: raw}
	}
	return out, rows.Err()
}
