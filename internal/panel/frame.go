package panel

import (
	"time"

	"github.com/daviddao/crane_viewer/internal/compose"
	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/history"
	"github.com/daviddao/crane_viewer/internal/namespace"
	"github.com/daviddao/crane_viewer/internal/referee"
	"github.com/daviddao/crane_viewer/internal/timeline"
)

// Frame is an immutable, self-contained view of the panel at one tick.
// Frames are rebuilt on every change and swapped into the UI model whole.
type Frame struct {
	// Layers holds only the visible layers; Paths lists them sorted.
	Layers compose.Layers
	Paths  []string
	// Hidden lists resolved layers filtered out by the namespace tree.
	Hidden []string
	// OK is false when nothing is resolvable at the display time.
	OK bool

	Mode    timeline.Mode
	At      int64
	HasAt   bool
	Base    int64
	HasBase bool
	Applied int

	Referee    referee.State
	HasReferee bool
	Scoreboard bool

	Background string
	FieldColor string
	// ShowGrid draws lines every GridSize viewbox units.
	ShowGrid   bool
	GridSize   float64
	ViewBox    [4]float64
	Namespaces namespace.Tree

	// Counts.
	Snapshots  int
	Updates    int
	Batches    int
	Primitives int
	Oldest     int64
	Latest     int64
	Received   int
	Skipped    int
	// Rate is the moving-average message rate per second.
	Rate float64

	BuiltAt time.Time
}

type buildInput struct {
	cfg      config.Config
	history  *history.History
	tree     namespace.Tree
	mode     timeline.Mode
	result   compose.Result
	referee  *referee.State
	rate     float64
	received int
	skipped  int
	now      time.Time
}

func build(in buildInput) *Frame {
	visible, hidden := namespace.Filter(in.tree, in.result.Layers)
	layers := compose.Layers(visible)

	f := &Frame{
		Layers:     layers,
		Paths:      layers.Paths(),
		Hidden:     hidden,
		OK:         in.result.OK,
		Mode:       in.mode,
		At:         in.result.At,
		HasAt:      in.result.OK || in.mode == timeline.Seek,
		Base:       in.result.Base,
		HasBase:    in.result.HasBase,
		Applied:    in.result.Applied,
		Scoreboard: in.cfg.ScoreboardEnabled,
		Background: in.cfg.BackgroundColor,
		FieldColor: in.cfg.FieldColor,
		ShowGrid:   in.cfg.ShowGrid,
		GridSize:   in.cfg.GridSize,
		Namespaces: in.tree,
		Snapshots:  in.history.SnapshotCount(),
		Updates:    in.history.UpdateCount(),
		Batches:    in.history.BatchCount(),
		Primitives: layers.PrimitiveCount(),
		Received:   in.received,
		Skipped:    in.skipped,
		Rate:       in.rate,
		BuiltAt:    in.now,
	}
	x, y, w, h := in.cfg.ViewBox()
	f.ViewBox = [4]float64{x, y, w, h}
	if in.referee != nil && in.cfg.ScoreboardEnabled {
		f.Referee, f.HasReferee = *in.referee, true
	}
	f.Oldest, _ = in.history.Oldest()
	f.Latest, _ = in.history.Latest()
	return f
}

// Empty reports whether the frame has nothing to draw.
func (f *Frame) Empty() bool {
	return len(f.Layers) == 0
}
