// Package timeline decides which instant the panel displays, live tail or a
// host-supplied seek time, and resolves the layer state for it.
package timeline

import (
	"log/slog"

	"github.com/daviddao/crane_viewer/internal/compose"
	"github.com/daviddao/crane_viewer/internal/history"
)

// Mode is the display mode.
type Mode int

const (
	// Live follows the newest message.
	Live Mode = iota
	// Seek shows an explicit playback time.
	Seek
)

func (m Mode) String() string {
	if m == Seek {
		return "seek"
	}
	return "live"
}

type memo struct {
	h          *history.History
	at         int64
	useUpdates bool
	result     compose.Result
}

// Controller is a value: every transition returns a new Controller.
// The zero value is in live mode.
type Controller struct {
	seek    int64
	seeking bool
	memo    *memo
	logger  *slog.Logger
	// Recomputes counts resolves that were not served from the memo.
	Recomputes int
}

// New returns a live-mode controller logging compositing problems to logger.
func New(logger *slog.Logger) Controller {
	return Controller{logger: logger}
}

// Mode returns the current display mode.
func (c Controller) Mode() Mode {
	if c.seeking {
		return Seek
	}
	return Live
}

// SeekTime returns the seek time when in seek mode.
func (c Controller) SeekTime() (int64, bool) {
	return c.seek, c.seeking
}

// WithSeek switches to seek mode at t.
func (c Controller) WithSeek(t int64) Controller {
	c.seek, c.seeking = t, true
	return c
}

// WithLive switches back to live mode.
func (c Controller) WithLive() Controller {
	c.seek, c.seeking = 0, false
	return c
}

// DisplayTime returns the time of the last resolve, false before the first
// resolvable one.
func (c Controller) DisplayTime() (int64, bool) {
	if c.memo == nil {
		return 0, false
	}
	return c.memo.at, true
}

// Target returns the time that would be displayed for h, and false when
// there is nothing to display in live mode.
func (c Controller) Target(h *history.History, useUpdates bool) (int64, bool) {
	if c.seeking {
		return c.seek, true
	}
	if !useUpdates {
		return h.LatestSnapshotTime()
	}
	return h.Latest()
}

// Resolve returns the display state for h. The previous result is reused
// when neither the history, the target time nor the update setting changed,
// so repeated calls are bit-identical.
func (c Controller) Resolve(h *history.History, useUpdates bool) (Controller, compose.Result) {
	at, ok := c.Target(h, useUpdates)
	if !ok {
		c.memo = nil
		return c, compose.Result{}
	}
	if m := c.memo; m != nil && m.h == h && m.at == at && m.useUpdates == useUpdates {
		return c, m.result
	}
	res := compose.Resolve(h, at, compose.Options{UseUpdates: useUpdates, Logger: c.logger})
	c.memo = &memo{h: h, at: at, useUpdates: useUpdates, result: res}
	c.Recomputes++
	return c, res
}
