// Package panel is one telemetry panel instance: it owns the message
// history, namespace tree, timeline and referee state, and turns each tick
// of host events into an immutable Frame.
package panel

import (
	"log/slog"
	"slices"
	"time"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/history"
	"github.com/daviddao/crane_viewer/internal/namespace"
	"github.com/daviddao/crane_viewer/internal/referee"
	"github.com/daviddao/crane_viewer/internal/timeline"
	"github.com/daviddao/crane_viewer/internal/wire"
)

// RenderState is what the host hands the panel on every tick.
type RenderState struct {
	// Events are the messages delivered since the last tick, in bus order.
	Events []wire.Event
	// SeekTime is the playback time in ms; nil means follow live.
	SeekTime *int64
}

// Options configures a Panel.
type Options struct {
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Panel is not safe for concurrent use; the host drives it from one
// goroutine. Every value it hands out is immutable.
type Panel struct {
	cfg      config.Config
	history  *history.History
	tree     namespace.Tree
	timeline timeline.Controller
	referee  *referee.State
	rate     *rateMeter
	frame    *Frame
	logger   *slog.Logger
	clock    func() time.Time

	received int
	skipped  int
}

// New returns a panel for cfg. The namespace tree starts from
// cfg.Namespaces.
func New(cfg config.Config, opts Options) *Panel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	p := &Panel{
		cfg:      cfg,
		history:  history.New(),
		tree:     namespace.FromConfig(cfg.Namespaces),
		timeline: timeline.New(logger),
		rate:     newRateMeter(),
		logger:   logger,
		clock:    clock,
	}
	p.rebuild()
	return p
}

// Subscriptions lists the topics the panel consumes: the snapshot topic,
// the update topic when updates are enabled, and the referee topic when the
// scoreboard is enabled.
func (p *Panel) Subscriptions() []string {
	topics := []string{p.cfg.SnapshotTopic}
	if p.cfg.UpdateEnabled && !slices.Contains(topics, p.cfg.UpdateTopic) {
		topics = append(topics, p.cfg.UpdateTopic)
	}
	if p.cfg.ScoreboardEnabled && !slices.Contains(topics, p.cfg.RefereeTopic) {
		topics = append(topics, p.cfg.RefereeTopic)
	}
	return topics
}

// Render processes one tick: ingest the events, apply the seek time and
// rebuild the frame. done is called exactly once, after the frame is
// swapped in.
func (p *Panel) Render(state RenderState, done func()) {
	if done != nil {
		defer done()
	}
	p.Ingest(state.Events)
	if state.SeekTime != nil {
		p.timeline = p.timeline.WithSeek(*state.SeekTime)
	} else {
		p.timeline = p.timeline.WithLive()
	}
	p.rebuild()
}

// Ingest records events into history in the order given and returns how
// many were recognized. It does not rebuild the frame.
func (p *Panel) Ingest(events []wire.Event) int {
	recognized := 0
	for _, ev := range events {
		if p.ingest(ev) {
			recognized++
		}
	}
	p.received += len(events)
	p.skipped += len(events) - recognized
	p.rate.observe(p.clock(), len(events))
	return recognized
}

func (p *Panel) ingest(ev wire.Event) bool {
	ts := ev.ReceiveTime.Millis()
	switch {
	case ev.Topic == p.cfg.SnapshotTopic:
		snap, issues, ok := wire.DecodeSnapshot(ev.Message)
		p.warnIssues(ev.Topic, ts, issues)
		if !ok {
			p.logger.Warn("panel: unrecognized snapshot message", "topic", ev.Topic, "at", ts)
			return false
		}
		p.history = p.history.RecordSnapshot(ts, snap)
		p.tree = p.tree.Observe(snap.LayerPaths())
		return true

	case ev.Topic == p.cfg.UpdateTopic && p.cfg.UpdateEnabled:
		batch, issues, ok := wire.DecodeUpdateBatch(ev.Message)
		p.warnIssues(ev.Topic, ts, issues)
		if !ok {
			p.logger.Warn("panel: unrecognized update message", "topic", ev.Topic, "at", ts)
			return false
		}
		p.history = p.history.RecordUpdateBatch(ts, batch)
		paths := make([]string, 0, len(batch.Updates))
		for _, u := range batch.Updates {
			paths = append(paths, u.Layer)
		}
		p.tree = p.tree.Observe(paths)
		return true

	case ev.Topic == p.cfg.RefereeTopic && p.cfg.ScoreboardEnabled:
		msg, ok := wire.DecodeReferee(ev.Message)
		if !ok {
			p.logger.Warn("panel: unrecognized referee message", "topic", ev.Topic, "at", ts)
			return false
		}
		st := referee.Project(msg)
		p.referee = &st
		return true
	}
	return false
}

func (p *Panel) warnIssues(topic string, ts int64, issues []wire.Issue) {
	for _, is := range issues {
		p.logger.Warn("panel: skipped entry",
			"topic", topic, "at", ts, "index", is.Index, "layer", is.Layer, "reason", is.Reason)
	}
}

// Evict applies the configured retention relative to now (ms) and rebuilds
// the frame when anything was dropped.
func (p *Panel) Evict(now int64) {
	h := p.history.Evict(now, p.cfg.HistoryMaxAge(), p.cfg.HistoryMaxCount)
	if h == p.history {
		return
	}
	p.logger.Debug("panel: evicted history",
		"snapshots", p.history.SnapshotCount()-h.SnapshotCount(),
		"updates", p.history.UpdateCount()-h.UpdateCount())
	p.history = h
	p.rebuild()
}

// Sweep evicts relative to the newest receive time in history, so recorded
// sessions replayed long after capture keep their retention window.
func (p *Panel) Sweep() {
	if now, ok := p.history.Latest(); ok {
		p.Evict(now)
	}
}

// Apply handles a settings action (see config.Apply) and rebuilds the frame.
func (p *Panel) Apply(path []string, value any) error {
	cfg, tree, err := config.Apply(p.cfg, p.tree, path, value)
	if err != nil {
		return err
	}
	p.cfg, p.tree = cfg, tree
	p.rebuild()
	return nil
}

// SetVisible shows or hides the namespace at segs.
func (p *Panel) SetVisible(segs []string, visible bool) {
	p.tree = p.tree.SetVisible(segs, visible)
	p.rebuild()
}

// Config returns the current configuration with the namespace tree folded
// in, ready to save.
func (p *Panel) Config() config.Config {
	cfg := p.cfg
	cfg.Namespaces = p.tree.Config()
	return cfg
}

// Tree returns the namespace tree.
func (p *Panel) Tree() namespace.Tree { return p.tree }

// History returns the current history value.
func (p *Panel) History() *history.History { return p.history }

// Timeline returns the timeline controller.
func (p *Panel) Timeline() timeline.Controller { return p.timeline }

// Frame returns the latest frame. It is never nil.
func (p *Panel) Frame() *Frame { return p.frame }

func (p *Panel) rebuild() {
	tl, res := p.timeline.Resolve(p.history, p.cfg.UpdateEnabled)
	p.timeline = tl
	p.frame = build(buildInput{
		cfg:      p.cfg,
		history:  p.history,
		tree:     p.tree,
		mode:     tl.Mode(),
		result:   res,
		referee:  p.referee,
		rate:     p.rate.perSecond(),
		received: p.received,
		skipped:  p.skipped,
		now:      p.clock(),
	})
}
