package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/datasource"
	"github.com/daviddao/crane_viewer/internal/panel"
	"github.com/daviddao/crane_viewer/internal/render"
	"github.com/daviddao/crane_viewer/internal/wire"
)

const (
	flagJSON = "json"
	flagSVG  = "svg"
	flagAt   = "at"
)

// dumpOutput is the --json form of a composed frame.
type dumpOutput struct {
	At      *int64                    `json:"at,omitempty"`
	Mode    string                    `json:"mode"`
	Base    *int64                    `json:"base,omitempty"`
	Applied int                       `json:"applied"`
	Layers  map[string][]wire.Payload `json:"layers"`
	Hidden  []string                  `json:"hidden,omitempty"`
	Referee *dumpReferee              `json:"referee,omitempty"`
	Stats   dumpStats                 `json:"stats"`
}

type dumpReferee struct {
	Stage     string `json:"stage"`
	Command   string `json:"command"`
	Countdown string `json:"countdown"`
	Score     string `json:"score"`
}

type dumpStats struct {
	Snapshots  int   `json:"snapshots"`
	Updates    int   `json:"updates"`
	Primitives int   `json:"primitives"`
	Received   int   `json:"received"`
	Skipped    int   `json:"skipped"`
	Oldest     int64 `json:"oldest"`
	Latest     int64 `json:"latest"`
}

func newDumpCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		asSVG  bool
		at     int64
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the composed state and exit",
		Long: `Replays every subscribed message in the database and prints the layer
state at the newest message, or at --at (receive time in ms) when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asSVG {
				return fmt.Errorf("--%s and --%s are mutually exclusive", flagJSON, flagSVG)
			}
			var seek *int64
			if cmd.Flags().Changed(flagAt) {
				seek = &at
			}
			f, err := dumpFrame(cmd.Context(), opts, cmd.ErrOrStderr(), seek)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case asSVG:
				return render.SVG(out, f, render.FromArray(f.ViewBox))
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(newDumpOutput(f))
			default:
				printSummary(out, f)
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, flagJSON, false, "print the frame as JSON")
	cmd.Flags().BoolVar(&asSVG, flagSVG, false, "print the frame as an SVG document")
	cmd.Flags().Int64Var(&at, flagAt, 0, "seek to this receive time in ms")
	return cmd
}

// dumpFrame replays the log into a fresh panel and returns its frame.
func dumpFrame(ctx context.Context, opts *options, stderr io.Writer, seek *int64) (*panel.Frame, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, closeLog, err := opts.logger(stderr)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	cfg, _, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	s, _, err := opts.openStore(false)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	p := panel.New(cfg, panel.Options{Logger: logger})
	events, err := datasource.NewTail(s, p.Subscriptions()).Next(ctx, 0)
	if err != nil {
		return nil, err
	}
	p.Render(panel.RenderState{Events: events, SeekTime: seek}, nil)
	return p.Frame(), nil
}

func newDumpOutput(f *panel.Frame) dumpOutput {
	out := dumpOutput{
		Mode:    f.Mode.String(),
		Applied: f.Applied,
		Layers:  map[string][]wire.Payload{},
		Hidden:  f.Hidden,
		Stats: dumpStats{
			Snapshots:  f.Snapshots,
			Updates:    f.Updates,
			Primitives: f.Primitives,
			Received:   f.Received,
			Skipped:    f.Skipped,
			Oldest:     f.Oldest,
			Latest:     f.Latest,
		},
	}
	if f.HasAt {
		at := f.At
		out.At = &at
	}
	if f.HasBase {
		base := f.Base
		out.Base = &base
	}
	for _, path := range f.Paths {
		out.Layers[path] = f.Layers[path]
	}
	if f.HasReferee {
		out.Referee = &dumpReferee{
			Stage:     f.Referee.Stage.String(),
			Command:   f.Referee.Command.String(),
			Countdown: f.Referee.CountdownString(),
			Score:     f.Referee.Score(),
		}
	}
	return out
}

func printSummary(w io.Writer, f *panel.Frame) {
	if !f.OK {
		fmt.Fprintln(w, "no state")
	} else {
		fmt.Fprintf(w, "%s at %s (%d ms)\n", f.Mode, formatMillis(f.At), f.At)
	}
	for _, path := range f.Paths {
		fmt.Fprintf(w, "  %-32s %d\n", path, len(f.Layers[path]))
	}
	for _, path := range f.Hidden {
		fmt.Fprintf(w, "  %-32s hidden\n", path)
	}
	if f.HasReferee {
		fmt.Fprintf(w, "referee: %s  %s  %s\n", f.Referee.Score(), f.Referee.Stage, f.Referee.CountdownString())
	}
	fmt.Fprintf(w, "%d snapshots, %d updates, %d received, %d skipped\n",
		f.Snapshots, f.Updates, f.Received, f.Skipped)
}
