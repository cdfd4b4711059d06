// Package datasource locates the telemetry message log and tails it.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/daviddao/crane_viewer/internal/store"
	"github.com/daviddao/crane_viewer/internal/wire"
)

const (
	// EnvDB overrides database discovery.
	EnvDB     = "CRANE_DB"
	defaultDB = ".crane/telemetry.db"
)

// Discover finds the telemetry database path.
// Priority: CRANE_DB env var > .crane/telemetry.db in CWD > walk up parents.
func Discover() (string, error) {
	if env := os.Getenv(EnvDB); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		return "", fmt.Errorf("%s=%q: %w", EnvDB, env, os.ErrNotExist)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, defaultDB)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no telemetry database found (looked for %s)", defaultDB)
}

// DefaultPath returns where a new database is created when none is
// discovered: CRANE_DB if set, else .crane/telemetry.db under CWD.
func DefaultPath() (string, error) {
	if env := os.Getenv(EnvDB); env != "" {
		return env, nil
	}
	abs, err := filepath.Abs(defaultDB)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %s: %w", defaultDB, err)
	}
	return abs, nil
}

// Open discovers and opens the telemetry store.
func Open() (*store.Store, string, error) {
	path, err := Discover()
	if err != nil {
		return nil, "", err
	}
	s, err := store.New(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return s, path, nil
}

// OpenOrCreate opens the discovered store, creating one at DefaultPath when
// none exists.
func OpenOrCreate() (*store.Store, string, error) {
	path, err := Discover()
	if err != nil {
		if path, err = DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	s, err := store.New(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return s, path, nil
}

// Tail reads the messages appended to a store since the last call. It is
// safe for concurrent use.
type Tail struct {
	store *store.Store

	mu     sync.Mutex
	topics []string
	after  int64
}

// NewTail returns a Tail over topics, starting at the beginning of the log.
func NewTail(s *store.Store, topics []string) *Tail {
	return &Tail{store: s, topics: append([]string(nil), topics...)}
}

// Cursor is the id of the last message returned.
func (t *Tail) Cursor() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.after
}

// Next returns up to limit new events, oldest first. limit <= 0 reads
// everything pending.
func (t *Tail) Next(ctx context.Context, limit int) ([]wire.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs, err := t.store.ListSince(ctx, t.after, t.topics, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	events := make([]wire.Event, len(msgs))
	for i, m := range msgs {
		events[i] = m.Event
	}
	t.after = msgs[len(msgs)-1].ID
	return events, nil
}

// SetTopics changes the topics read from now on. Messages already passed
// by the cursor are not re-read.
func (t *Tail) SetTopics(topics []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics = append([]string(nil), topics...)
}
