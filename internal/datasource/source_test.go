package datasource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/daviddao/crane_viewer/internal/store"
	"github.com/daviddao/crane_viewer/internal/wire"
)

func createDB(t *testing.T, path string) {
	t.Helper()
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	s.Close()
}

func TestDiscoverFromEnvVar(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	createDB(t, dbPath)
	t.Setenv(EnvDB, dbPath)

	path, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if path != dbPath {
		t.Errorf("Discover() = %q, want %q", path, dbPath)
	}
}

func TestDiscoverEnvVarMissing(t *testing.T) {
	t.Setenv(EnvDB, "/nonexistent/path/telemetry.db")

	if _, err := Discover(); err == nil {
		t.Error("Discover should fail when CRANE_DB points to nonexistent file")
	}
}

func TestDiscoverFromParentDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, ".crane", "telemetry.db")
	createDB(t, dbPath)

	child := filepath.Join(dir, "sub", "deep")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	t.Setenv(EnvDB, "")
	t.Chdir(child)

	path, err := Discover()
	if err != nil {
		t.Fatalf("Discover from parent: %v", err)
	}
	// macOS /var -> /private/var.
	resolvedPath, _ := filepath.EvalSymlinks(path)
	resolvedExpect, _ := filepath.EvalSymlinks(dbPath)
	if resolvedPath != resolvedExpect {
		t.Errorf("Discover() = %q, want %q", path, dbPath)
	}
}

func TestDiscoverNoDB(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Chdir(t.TempDir())

	if _, err := Discover(); err == nil {
		t.Error("Discover should fail when no database exists")
	}
}

func TestOpenOrCreateMakesDefaultDB(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDB, "")
	t.Chdir(dir)

	s, path, err := OpenOrCreate()
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer s.Close()
	if filepath.Base(filepath.Dir(path)) != ".crane" {
		t.Errorf("expected path in .crane/, got %q", path)
	}

	// Now discoverable.
	s2, found, err := Open()
	if err != nil {
		t.Fatalf("Open after create: %v", err)
	}
	s2.Close()
	if filepath.Base(found) != "telemetry.db" {
		t.Errorf("Open path = %q", found)
	}
}

func TestTailReadsIncrementally(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	ev := func(topic string, ms int64) wire.Event {
		return wire.Event{Topic: topic, Message: json.RawMessage(`{}`), ReceiveTime: wire.TimeFromMillis(ms)}
	}
	if err := s.Append(ctx, "a", ev("/aggregated_svgs", 1), ev("/other", 2), ev("/referee", 3)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	tail := NewTail(s, []string{"/aggregated_svgs", "/referee"})
	got, err := tail.Next(ctx, 0)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(got) != 2 || got[0].Topic != "/aggregated_svgs" || got[1].Topic != "/referee" {
		t.Fatalf("Next() = %+v", got)
	}
	if tail.Cursor() != 3 {
		t.Errorf("Cursor() = %d, want 3", tail.Cursor())
	}

	got, err = tail.Next(ctx, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("second Next() = %v, %v", got, err)
	}

	if err := s.Append(ctx, "a", ev("/referee", 4), ev("/referee", 5)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err = tail.Next(ctx, 1)
	if err != nil || len(got) != 1 || got[0].ReceiveTime.Millis() != 4 {
		t.Fatalf("limited Next() = %+v, %v", got, err)
	}
}

func TestTailConcurrentSetTopics(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	var events []wire.Event
	for i := int64(1); i <= 20; i++ {
		topic := "/a"
		if i%2 == 0 {
			topic = "/b"
		}
		events = append(events, wire.Event{Topic: topic, Message: json.RawMessage(`{}`), ReceiveTime: wire.TimeFromMillis(i)})
	}
	if err := s.Append(ctx, "a", events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	tail := NewTail(s, []string{"/a"})
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 20; i++ {
			if _, err := tail.Next(ctx, 1); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	for i := 0; i < 20; i++ {
		tail.SetTopics([]string{"/a", "/b"})
	}
	if err := <-done; err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tail.Cursor() == 0 || tail.Cursor() > 20 {
		t.Errorf("Cursor() = %d", tail.Cursor())
	}
}
