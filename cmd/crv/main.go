// crv is a terminal viewer for robot telemetry recorded into a SQLite
// message log.
//
// It tails the log for snapshot, update and referee messages, composes the
// layer state at the live tail or at a seek time, and shows it as a canvas,
// a layer list, a namespace tree, a timeline and a scoreboard.
//
// Usage:
//
//	crv                          # Auto-discover .crane/telemetry.db and open the viewer
//	crv --db <path>              # Use specific database path
//	crv view --view timeline     # Start in a specific view
//	crv dump --svg --at <ms>     # Print the composed state at a time and exit
//	crv import session.jsonl     # Load recorded events into the database
//	crv config set general.viewbox_width 5000
//	crv version                  # Print version and exit
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/datasource"
	"github.com/daviddao/crane_viewer/internal/store"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

const (
	flagDB      = "db"
	flagConfig  = "config"
	flagLogFile = "log-file"
)

// options are the persistent flags shared by every command.
type options struct {
	dbPath  string
	cfgPath string
	logFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "crv",
		Short:         "Robot telemetry viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, flagDB, "", "path to telemetry.db (default: auto-discover)")
	root.PersistentFlags().StringVar(&opts.cfgPath, flagConfig, "", "path to config.yaml (default: user config dir)")
	root.PersistentFlags().StringVar(&opts.logFile, flagLogFile, "", "append logs to this file")

	view := newViewCmd(opts)
	root.RunE = view.RunE
	root.Flags().AddFlagSet(view.Flags())

	root.AddCommand(
		view,
		newDumpCmd(opts),
		newImportCmd(opts),
		newDemoCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crv: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crv %s\n", Version)
		},
	}
}

// logger returns the logger for a command. With --log-file logs go to the
// file; otherwise they go to fallback, which may be nil to discard.
func (o *options) logger(fallback io.Writer) (*slog.Logger, func(), error) {
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		return slog.New(h), func() { f.Close() }, nil
	}
	if fallback == nil {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	h := slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: slog.LevelWarn})
	return slog.New(h), func() {}, nil
}

// configPath resolves --config or the default location.
func (o *options) configPath() (string, error) {
	if o.cfgPath != "" {
		return o.cfgPath, nil
	}
	return config.DefaultPath()
}

func (o *options) loadConfig() (config.Config, string, error) {
	path, err := o.configPath()
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// openStore opens --db, or discovers the database. With create set a new
// database is made at the default location when none is found.
func (o *options) openStore(create bool) (*store.Store, string, error) {
	if o.dbPath != "" {
		if !create {
			if _, err := os.Stat(o.dbPath); err != nil {
				return nil, "", fmt.Errorf("open %s: %w", o.dbPath, err)
			}
		}
		s, err := store.New(o.dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", o.dbPath, err)
		}
		return s, o.dbPath, nil
	}
	if create {
		return datasource.OpenOrCreate()
	}
	return datasource.Open()
}
