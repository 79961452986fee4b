// internal/state/sqlite.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/graphchef/internal/types"
)

// Store is the SQLite-backed implementation of both ThreadStore and
// MessageLog. Threads and messages live in one database file so that the
// user/assistant pair of an exchange lands in the same store even though
// no cross-append transaction is promised to callers.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageErr(fmt.Errorf("open database: %w", err))
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, storageErr(fmt.Errorf("migrate: %w", err))
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		key TEXT,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_threads_key ON threads(key) WHERE key != '';

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, timestamp, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// storageErr marks an error as an infrastructure failure rather than bad
// input, so callers can match on types.ErrStorage.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", types.ErrStorage, err)
}

// Create allocates a fresh thread with no key.
func (s *Store) Create(ctx context.Context) (types.ThreadID, error) {
	id := types.NewThreadID()
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, key, status, created_at, last_updated_at)
		VALUES (?, '', ?, ?, ?)
	`, string(id), types.ThreadStatusActive, now, now)
	if err != nil {
		return "", storageErr(fmt.Errorf("create thread: %w", err))
	}
	return id, nil
}

// ResolveOrCreate returns the thread bound to key, creating it on first use.
func (s *Store) ResolveOrCreate(ctx context.Context, key types.ThreadKey) (types.ThreadID, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM threads WHERE key = ?`, string(key)).Scan(&id)
	if err == nil {
		return types.ThreadID(id), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", storageErr(fmt.Errorf("resolve thread: %w", err))
	}

	newID := types.NewThreadID()
	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, key, status, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(newID), string(key), types.ThreadStatusActive, now, now)
	if err != nil {
		// Lost a race with a concurrent resolve for the same key.
		var existing string
		if scanErr := s.db.QueryRowContext(ctx, `SELECT id FROM threads WHERE key = ?`, string(key)).Scan(&existing); scanErr == nil {
			return types.ThreadID(existing), nil
		}
		return "", storageErr(fmt.Errorf("create thread for key %s: %w", key, err))
	}
	return newID, nil
}

// Get returns the thread with the given ID.
func (s *Store) Get(ctx context.Context, id types.ThreadID) (*types.Thread, error) {
	var t types.Thread
	var key string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, status, created_at, last_updated_at FROM threads WHERE id = ?
	`, string(id)).Scan(&t.ID, &key, &t.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrThreadNotFound
	}
	if err != nil {
		return nil, storageErr(fmt.Errorf("get thread: %w", err))
	}
	t.Key = types.ThreadKey(key)
	t.CreatedAt = time.Unix(0, createdAt)
	t.LastUpdatedAt = time.Unix(0, updatedAt)
	return &t, nil
}

// List returns all threads, most recently updated first.
func (s *Store) List(ctx context.Context) ([]*types.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, status, created_at, last_updated_at
		FROM threads ORDER BY last_updated_at DESC
	`)
	if err != nil {
		return nil, storageErr(fmt.Errorf("list threads: %w", err))
	}
	defer rows.Close()

	var threads []*types.Thread
	for rows.Next() {
		var t types.Thread
		var key string
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &key, &t.Status, &createdAt, &updatedAt); err != nil {
			return nil, storageErr(fmt.Errorf("scan thread: %w", err))
		}
		t.Key = types.ThreadKey(key)
		t.CreatedAt = time.Unix(0, createdAt)
		t.LastUpdatedAt = time.Unix(0, updatedAt)
		threads = append(threads, &t)
	}
	return threads, rows.Err()
}

// Exists reports whether the thread is known to the store.
func (s *Store) Exists(ctx context.Context, id types.ThreadID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, string(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr(fmt.Errorf("thread exists: %w", err))
	}
	return true, nil
}

// Touch advances LastUpdatedAt, never moving it backward. Touching an
// unknown thread is a silent no-op.
func (s *Store) Touch(ctx context.Context, id types.ThreadID) error {
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads SET last_updated_at = ? WHERE id = ? AND last_updated_at <= ?
	`, now, string(id), now)
	if err != nil {
		return storageErr(fmt.Errorf("touch thread: %w", err))
	}
	return nil
}

// Append adds a message to a thread. The seq counter is assigned inside a
// transaction so that two appends landing in the same timestamp instant
// still have a total order.
func (s *Store) Append(ctx context.Context, threadID types.ThreadID, role, content string) (types.MessageID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr(fmt.Errorf("begin append: %w", err))
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, string(threadID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return "", types.ErrThreadNotFound
	}
	if err != nil {
		return "", storageErr(fmt.Errorf("check thread: %w", err))
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE thread_id = ?
	`, string(threadID)).Scan(&seq)
	if err != nil {
		return "", storageErr(fmt.Errorf("next seq: %w", err))
	}

	id := types.NewMessageID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, role, content, seq, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(id), string(threadID), role, content, seq, time.Now().UnixNano())
	if err != nil {
		return "", storageErr(fmt.Errorf("insert message: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr(fmt.Errorf("commit append: %w", err))
	}
	return id, nil
}

// History returns all messages for a thread in ascending (timestamp, seq)
// order. A thread with no messages yields an empty slice, not an error.
func (s *Store) History(ctx context.Context, threadID types.ThreadID) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, role, content, seq, timestamp
		FROM messages WHERE thread_id = ?
		ORDER BY timestamp ASC, seq ASC
	`, string(threadID))
	if err != nil {
		return nil, storageErr(fmt.Errorf("load history: %w", err))
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		var m types.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.Seq, &ts); err != nil {
			return nil, storageErr(fmt.Errorf("scan message: %w", err))
		}
		m.Timestamp = time.Unix(0, ts)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// Count returns the number of messages in a thread.
func (s *Store) Count(ctx context.Context, threadID types.ThreadID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE thread_id = ?
	`, string(threadID)).Scan(&count)
	if err != nil {
		return 0, storageErr(fmt.Errorf("count messages: %w", err))
	}
	return count, nil
}
