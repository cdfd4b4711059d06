package datasource

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T) (dir, dbPath string, w *Watcher) {
	t.Helper()
	dir = t.TempDir()
	dbPath = filepath.Join(dir, "telemetry.db")
	if err := os.WriteFile(dbPath, []byte("db"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w, err := NewWatcher(dbPath, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	// fsnotify needs a moment before the first event is delivered.
	time.Sleep(50 * time.Millisecond)
	return dir, dbPath, w
}

func TestNewWatcherBadPath(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/dir/telemetry.db", nil); err == nil {
		t.Error("NewWatcher should fail for nonexistent directory")
	}
}

func TestWatcherSignalsOnDatabaseFiles(t *testing.T) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		t.Run("telemetry.db"+suffix, func(t *testing.T) {
			_, dbPath, w := startWatcher(t)
			if err := os.WriteFile(dbPath+suffix, []byte("modified"), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			select {
			case <-w.Changes():
			case <-time.After(2 * time.Second):
				t.Error("timed out waiting for change signal")
			}
		})
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir, _, w := startWatcher(t)
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	select {
	case <-w.Changes():
		t.Error("unexpected change signal from unrelated file write")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	_, dbPath, w := startWatcher(t)
	for i := 0; i < 10; i++ {
		if err := os.WriteFile(dbPath+"-wal", []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
	select {
	case <-w.Changes():
		t.Error("burst produced more than one signal")
	case <-time.After(3 * DefaultDebounce):
	}
}

func TestWatcherCloseEndsChanges(t *testing.T) {
	_, _, w := startWatcher(t)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Changes was not closed after Close")
		}
	}
}
