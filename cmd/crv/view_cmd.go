package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/daviddao/crane_viewer/internal/datasource"
	"github.com/daviddao/crane_viewer/internal/panel"
)

// parseViewFlag maps a --view flag string to a viewID.
func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(s) {
	case "canvas", "c":
		return viewCanvas, nil
	case "layers", "l":
		return viewLayers, nil
	case "namespaces", "n":
		return viewNamespaces, nil
	case "timeline", "t":
		return viewTimeline, nil
	case "scoreboard", "s":
		return viewScoreboard, nil
	case "stats", "i":
		return viewStats, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: canvas, layers, namespaces, timeline, scoreboard, stats)", s)
	}
}

func newViewCmd(opts *options) *cobra.Command {
	var (
		refresh  time.Duration
		viewName string
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the live viewer (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh <= 0 {
				return fmt.Errorf("--refresh must be positive, got %s", refresh)
			}
			start := viewCanvas
			if viewName != "" {
				v, err := parseViewFlag(viewName)
				if err != nil {
					return err
				}
				start = v
			}
			return runView(opts, refresh, start)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 2*time.Second, "polling fallback interval")
	cmd.Flags().StringVar(&viewName, "view", "", "start in specific view (canvas|layers|namespaces|timeline|scoreboard|stats)")
	return cmd
}

func runView(opts *options, refresh time.Duration, start viewID) error {
	logger, closeLog, err := opts.logger(nil)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, cfgPath, err := opts.loadConfig()
	if err != nil {
		return err
	}

	s, path, err := opts.openStore(true)
	if err != nil {
		return err
	}
	defer s.Close()

	w, err := datasource.NewWatcher(path, logger)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	p := panel.New(cfg, panel.Options{Logger: logger})
	tail := datasource.NewTail(s, p.Subscriptions())
	logger.Info("crv: viewing", "db", path, "config", cfgPath, "topics", p.Subscriptions())

	m := newModel(p, tail, path, cfgPath)
	m.refreshInterval = refresh
	m.activeView = start
	m.logger = logger

	prog := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		feedChanges(done, w.Changes(), refresh, prog.Send)
	}()

	_, err = prog.Run()
	close(done)
	wg.Wait()
	return err
}

// feedChanges sends a dbChangedMsg for every watcher signal and on every
// poll tick, until done is closed. The ticker covers changes fsnotify
// misses. A closed changes channel leaves polling running.
func feedChanges(done <-chan struct{}, changes <-chan struct{}, every time.Duration, send func(tea.Msg)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			send(dbChangedMsg{})
		case <-ticker.C:
			send(dbChangedMsg{})
		}
	}
}
