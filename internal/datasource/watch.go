package datasource

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes into one signal.
const DefaultDebounce = 100 * time.Millisecond

// Watcher signals when the telemetry database changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	names    map[string]bool
	debounce time.Duration
	logger   *slog.Logger
	onChange chan struct{}
	done     chan struct{}
	stop     sync.Once
}

// NewWatcher creates a watcher for dbPath. It watches the parent directory
// so writes to the WAL and shared-memory files are seen as well. A nil
// logger discards watch errors.
func NewWatcher(dbPath string, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(dbPath)); err != nil {
		w.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	base := filepath.Base(dbPath)
	watcher := &Watcher{
		watcher:  w,
		names:    map[string]bool{base: true, base + "-wal": true, base + "-shm": true},
		debounce: DefaultDebounce,
		logger:   logger,
		onChange: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go watcher.loop()
	return watcher, nil
}

// Changes receives one signal per debounced burst of writes. The channel
// is closed once the watcher stops.
func (w *Watcher) Changes() <-chan struct{} {
	return w.onChange
}

// Close stops the watcher. Calling it more than once is safe.
func (w *Watcher) Close() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.onChange)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.names[filepath.Base(event.Name)] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			w.signal()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("datasource: watch error", "error", err)
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.onChange <- struct{}{}:
	default:
	}
}
