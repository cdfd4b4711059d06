// Package compose resolves the layer state visible at a point in time from
// the snapshot and update-batch histories.
//
// Resolve is a pure function of its inputs. The only ordering it relies on is
// the explicit one below: update ops are applied by ascending arrival time,
// and ops sharing a millisecond keep the order they were recorded in.
package compose

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/daviddao/crane_viewer/internal/history"
	"github.com/daviddao/crane_viewer/internal/wire"
)

// Layers maps a layer path to its ordered primitives.
type Layers map[string][]wire.Payload

// Paths returns the layer paths in sorted order.
func (l Layers) Paths() []string {
	out := make([]string, 0, len(l))
	for p := range l {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// PrimitiveCount returns the number of primitives across all layers.
func (l Layers) PrimitiveCount() int {
	n := 0
	for _, ps := range l {
		n += len(ps)
	}
	return n
}

// Result is the outcome of a resolve. OK is false for "no state": nothing
// resolvable at that time.
type Result struct {
	Layers Layers
	OK     bool
	// At is the time the result was resolved for.
	At int64
	// Base is the timestamp of the snapshot the result was built on.
	Base    int64
	HasBase bool
	// Applied counts the update ops applied on top of the base.
	Applied int
}

// Options controls a resolve.
type Options struct {
	// UseUpdates enables update-batch compositing. When false the base
	// snapshot is returned as-is.
	UseUpdates bool
	Logger     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Resolve returns the display state at time t.
//
// Without a base snapshot at or before t the resolve runs in fallback mode:
// every update up to t is considered, but append ops are ignored because
// there is no authoritative content to append to. Clear and replace still
// apply.
func Resolve(h *history.History, t int64, opts Options) (res Result) {
	log := opts.logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error("compose: resolve failed", "at", t, "panic", fmt.Sprint(r))
			res = Result{At: t}
		}
	}()

	base, hasBase := h.BaseSnapshot(t)
	if !opts.UseUpdates {
		if !hasBase {
			return Result{At: t}
		}
		return Result{
			Layers:  fromSnapshot(base.Snapshot),
			OK:      true,
			At:      t,
			Base:    base.Time,
			HasBase: true,
		}
	}

	layers := Layers{}
	lower := int64(math.MinInt64)
	if hasBase {
		layers = seed(base.Snapshot)
		lower = base.Time
	}

	var entries []history.UpdateEntry
	if hasBase {
		entries = h.UpdatesBetween(lower, t)
	} else {
		entries = h.UpdatesUpTo(t)
	}

	applied := 0
	for _, op := range flatten(entries) {
		if apply(layers, op, hasBase, log) {
			applied++
		}
	}

	for path, ps := range layers {
		if len(ps) == 0 {
			delete(layers, path)
		}
	}

	res = Result{Layers: layers, At: t, Applied: applied}
	if hasBase {
		res.Base, res.HasBase = base.Time, true
	}
	res.OK = hasBase || len(layers) > 0
	if !res.OK {
		res.Layers = nil
	}
	return res
}

// timedOp is an update op tagged with its arrival time and position.
type timedOp struct {
	at  int64
	seq int
	op  wire.UpdateOp
}

// flatten orders every op of entries by arrival time, ties broken by
// recording order.
func flatten(entries []history.UpdateEntry) []timedOp {
	var ops []timedOp
	seq := 0
	for _, e := range entries {
		for _, b := range e.Batches {
			for _, u := range b.Updates {
				ops = append(ops, timedOp{at: e.Time, seq: seq, op: u})
				seq++
			}
		}
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].at != ops[j].at {
			return ops[i].at < ops[j].at
		}
		return ops[i].seq < ops[j].seq
	})
	return ops
}

// apply mutates layers with one op and reports whether it took effect.
func apply(layers Layers, t timedOp, hasBase bool, log *slog.Logger) bool {
	u := t.op
	if u.Layer == "" {
		log.Warn("compose: skipping update without layer", "at", t.at, "op", u.Op.String())
		return false
	}
	switch u.Op {
	case wire.OpReplace:
		layers[u.Layer] = append([]wire.Payload(nil), u.Primitives...)
	case wire.OpAppend:
		if !hasBase {
			log.Debug("compose: append ignored without base snapshot", "at", t.at, "layer", u.Layer)
			return false
		}
		cur := layers[u.Layer]
		next := make([]wire.Payload, 0, len(cur)+len(u.Primitives))
		next = append(next, cur...)
		layers[u.Layer] = append(next, u.Primitives...)
	case wire.OpClear:
		layers[u.Layer] = nil
	default:
		log.Warn("compose: skipping unknown operation", "at", t.at, "layer", u.Layer, "op", int(u.Op))
		return false
	}
	return true
}

func seed(s wire.Snapshot) Layers {
	layers := make(Layers, len(s.Layers))
	for _, l := range s.Layers {
		layers[l.Layer] = append([]wire.Payload(nil), l.Primitives...)
	}
	return layers
}

func fromSnapshot(s wire.Snapshot) Layers {
	layers := seed(s)
	for path, ps := range layers {
		if len(ps) == 0 {
			delete(layers, path)
		}
	}
	return layers
}
