package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/store"
	"github.com/daviddao/crane_viewer/internal/wire"
)

// Demo scene geometry, in viewbox units.
const (
	demoFieldLayer = "demo/field"
	demoOrbitLayer = "demo/orbit"
	demoOrbit      = 2000.0
	demoBallRadius = 150.0
)

// demoOptions controls the synthetic stream written by crv demo.
type demoOptions struct {
	start         int64 // receive time of the first frame, ms
	frames        int
	interval      time.Duration
	speed         float64
	snapshotEvery int
}

func newDemoCmd(opts *options) *cobra.Command {
	var (
		d      demoOptions
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write an animated test stream to the database",
		Long: `Appends a synthetic session: a static field rectangle and a circle orbiting
the origin. The first frame and every --snapshot-every frames are snapshots on
the snapshot topic; the rest are replace updates on the update topic.

With --follow, frames are written in real time until --frames is reached or
the command is interrupted, so a running viewer animates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if d.interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", d.interval)
			}
			if d.snapshotEvery < 1 {
				return fmt.Errorf("--snapshot-every must be at least 1")
			}
			if d.frames < 0 || (d.frames == 0 && !follow) {
				return fmt.Errorf("--frames must be positive")
			}
			if d.start == 0 {
				d.start = time.Now().UnixMilli()
			}

			logger, closeLog, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, path, err := opts.openStore(true)
			if err != nil {
				return err
			}
			defer s.Close()

			session := store.NewSession()
			var n int
			if follow {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				n, err = followDemo(ctx, s, session, cfg, d, logger)
			} else {
				var events []wire.Event
				if events, err = demoEvents(cfg, d); err == nil {
					n, err = writeDemo(cmd.Context(), s, session, events)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d demo events (session %s) into %s\n", n, session, path)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&d.frames, "frames", 300, "number of frames to write (0 with --follow runs until interrupted)")
	f.DurationVar(&d.interval, "interval", 16*time.Millisecond, "receive-time spacing between frames")
	f.Float64Var(&d.speed, "speed", 1, "animation speed multiplier")
	f.IntVar(&d.snapshotEvery, "snapshot-every", 60, "write a full snapshot every N frames")
	f.Int64Var(&d.start, "start", 0, "receive time of the first frame in unix ms (default: now)")
	f.BoolVar(&follow, "follow", false, "write frames in real time")
	return cmd
}

// writeDemo appends events in batches and returns how many were written.
func writeDemo(ctx context.Context, s *store.Store, session string, events []wire.Event) (int, error) {
	total := 0
	for len(events) > 0 {
		n := min(len(events), importBatch)
		if err := s.Append(ctx, session, events[:n]...); err != nil {
			return total, err
		}
		total += n
		events = events[n:]
	}
	return total, nil
}

// followDemo writes one frame per interval, stamped with the wall clock.
// Cancelling ctx stops it without error.
func followDemo(ctx context.Context, s *store.Store, session string, cfg config.Config, d demoOptions, logger *slog.Logger) (int, error) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	written := 0
	for i := 0; d.frames == 0 || i < d.frames; i++ {
		ev, err := demoFrame(cfg, d, i, time.Now().UnixMilli())
		if err != nil {
			return written, err
		}
		if err := s.Append(ctx, session, ev); err != nil {
			if ctx.Err() != nil {
				return written, nil
			}
			return written, err
		}
		written++
		logger.Debug("demo: frame", "index", i, "topic", ev.Topic)
		select {
		case <-ctx.Done():
			return written, nil
		case <-ticker.C:
		}
	}
	return written, nil
}

// demoEvents returns d.frames consecutive frames spaced d.interval apart.
func demoEvents(cfg config.Config, d demoOptions) ([]wire.Event, error) {
	out := make([]wire.Event, 0, d.frames)
	for i := 0; i < d.frames; i++ {
		ev, err := demoFrame(cfg, d, i, d.start+int64(i)*d.interval.Milliseconds())
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// demoFrame builds frame i received at ms: a snapshot of the whole scene or
// a replace update that moves the orbiting circle.
func demoFrame(cfg config.Config, d demoOptions, i int, ms int64) (wire.Event, error) {
	ball := demoBall(float64(ms-d.start) * d.speed)
	var (
		topic string
		msg   any
	)
	if i%d.snapshotEvery == 0 {
		topic = cfg.SnapshotTopic
		msg = wire.Snapshot{Layers: []wire.LayerPrimitives{
			{Layer: demoFieldLayer, Primitives: []wire.Payload{demoField()}},
			{Layer: demoOrbitLayer, Primitives: []wire.Payload{ball}},
		}}
	} else {
		topic = cfg.UpdateTopic
		msg = wire.UpdateBatch{Updates: []wire.UpdateOp{
			{Layer: demoOrbitLayer, Op: wire.OpReplace, Primitives: []wire.Payload{ball}},
		}}
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return wire.Event{}, fmt.Errorf("encode demo frame %d: %w", i, err)
	}
	return wire.Event{Topic: topic, Message: raw, ReceiveTime: wire.TimeFromMillis(ms)}, nil
}

func demoField() wire.Payload {
	return wire.ShapePayload(wire.Shape{
		ID:     1,
		Type:   wire.ShapeRectangle,
		Params: []float64{-4500, -3000, 9000, 6000},
		Color:  "rgba(255, 0, 0, 0.5)",
		Text:   "demo field",
	})
}

// demoBall places the circle on its orbit after elapsed animation ms.
func demoBall(elapsed float64) wire.Payload {
	t := elapsed * 0.001
	return wire.ShapePayload(wire.Shape{
		ID:     2,
		Type:   wire.ShapeCircle,
		Params: []float64{demoOrbit * math.Cos(t), demoOrbit * math.Sin(t), demoBallRadius},
		Color:  "rgba(0, 0, 255, 0.5)",
	})
}
