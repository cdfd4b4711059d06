// Package store is the SQLite-backed message log the panel tails. Producers
// append topic messages with their receive time; the viewer reads them back
// in insertion order.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/daviddao/crane_viewer/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	session   TEXT    NOT NULL,
	topic     TEXT    NOT NULL,
	payload   TEXT    NOT NULL,
	recv_sec  INTEGER NOT NULL,
	recv_nsec INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic, id);
`

// Message is one stored event.
type Message struct {
	ID      int64
	Session string
	wire.Event
}

// TopicStat summarizes one topic.
type TopicStat struct {
	Topic string
	Count int
	// Last is the newest receive time on the topic in milliseconds.
	Last int64
}

// Store is an open message log.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the message log at path.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// NewSession returns a fresh producer session id.
func NewSession() string { return uuid.NewString() }

// Append stores events under session in one transaction.
func (s *Store) Append(ctx context.Context, session string, events ...wire.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session, topic, payload, recv_sec, recv_nsec) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.Topic == "" {
			return fmt.Errorf("store: event without topic")
		}
		if !json.Valid(ev.Message) {
			return fmt.Errorf("store: %s: message is not valid JSON", ev.Topic)
		}
		if _, err := stmt.ExecContext(ctx, session, ev.Topic, string(ev.Message), ev.ReceiveTime.Sec, ev.ReceiveTime.Nsec); err != nil {
			return fmt.Errorf("store: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ListSince returns up to limit messages with id greater than afterID,
// oldest first. An empty topics list matches every topic; limit <= 0 means
// no limit.
func (s *Store) ListSince(ctx context.Context, afterID int64, topics []string, limit int) ([]Message, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, session, topic, payload, recv_sec, recv_nsec FROM messages WHERE id > ?`)
	args := []any{afterID}
	if len(topics) > 0 {
		q.WriteString(` AND topic IN (?` + strings.Repeat(", ?", len(topics)-1) + `)`)
		for _, t := range topics {
			args = append(args, t)
		}
	}
	q.WriteString(` ORDER BY id`)
	if limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var payload string
		if err := rows.Scan(&m.ID, &m.Session, &m.Topic, &payload, &m.ReceiveTime.Sec, &m.ReceiveTime.Nsec); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		m.Message = json.RawMessage(payload)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MaxID returns the newest message id, or 0 for an empty log.
func (s *Store) MaxID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM messages`).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: max id: %w", err)
	}
	return id.Int64, nil
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Topics returns per-topic message counts, sorted by topic.
func (s *Store) Topics(ctx context.Context) ([]TopicStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, COUNT(*), MAX(recv_sec * 1000 + recv_nsec / 1000000)
		FROM messages GROUP BY topic ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("store: topics: %w", err)
	}
	defer rows.Close()

	var out []TopicStat
	for rows.Next() {
		var ts TopicStat
		if err := rows.Scan(&ts.Topic, &ts.Count, &ts.Last); err != nil {
			return nil, fmt.Errorf("store: scan topic: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}
