package main

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/datasource"
	"github.com/daviddao/crane_viewer/internal/history"
	"github.com/daviddao/crane_viewer/internal/panel"
	"github.com/daviddao/crane_viewer/internal/render"
	"github.com/daviddao/crane_viewer/internal/wire"
)

const (
	// fetchLimit bounds one read from the log; a full read triggers another.
	fetchLimit   = 5000
	fetchTimeout = 5 * time.Second
	seekStep     = 100 * time.Millisecond
	seekStepBig  = time.Second
	panStep      = 20
)

// --- Messages ---

type dbChangedMsg struct{}

type eventsReadyMsg struct {
	events []wire.Event
	err    error
}

type tickMsg struct{}

type sweepMsg struct{}

// --- Key bindings ---

type keyMap struct {
	Quit      key.Binding
	Tab       key.Binding
	Refresh   key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	BigLeft   key.Binding
	BigRight  key.Binding
	Live      key.Binding
	Toggle    key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ResetView key.Binding
	Updates   key.Binding
	Save      key.Binding
	Help      key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:      key.NewBinding(key.WithKeys("left"), key.WithHelp("left", "seek back / pan")),
	Right:     key.NewBinding(key.WithKeys("right"), key.WithHelp("right", "seek forward / pan")),
	BigLeft:   key.NewBinding(key.WithKeys("shift+left", "["), key.WithHelp("[", "seek back 1s")),
	BigRight:  key.NewBinding(key.WithKeys("shift+right", "]"), key.WithHelp("]", "seek forward 1s")),
	Live:      key.NewBinding(key.WithKeys("g", "end"), key.WithHelp("g", "go live")),
	Toggle:    key.NewBinding(key.WithKeys(" ", "space", "x"), key.WithHelp("x", "toggle namespace")),
	ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
	ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
	ResetView: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset view")),
	Updates:   key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "toggle updates")),
	Save:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save config")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// viewKeys maps single keys to views for fast navigation.
var viewKeys = map[string]viewID{
	"c": viewCanvas,
	"l": viewLayers,
	"n": viewNamespaces,
	"t": viewTimeline,
	"s": viewScoreboard,
	"i": viewStats,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Live, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Refresh, k.Up, k.Down, k.Left, k.Right},
		{k.BigLeft, k.BigRight, k.Live, k.Toggle, k.ZoomIn, k.ZoomOut},
		{k.ResetView, k.Updates, k.Save, k.Help, k.Quit},
	}
}

// contextHelp returns help text appropriate for the current view.
func contextHelp(v viewID) string {
	switch v {
	case viewCanvas:
		return "arrows: pan | +/-: zoom | 0: reset | c/l/n/t/s/i: views | ?: help | q: quit"
	case viewNamespaces:
		return "j/k: select | x: show/hide | w: save | c/l/n/t/s/i: views | ?: help | q: quit"
	case viewTimeline:
		return "left/right: seek | [/]: seek 1s | g: live | u: updates | ?: help | q: quit"
	default:
		return "j/k: scroll | c/l/n/t/s/i: views | tab: next | ?: help | q: quit"
	}
}

// --- Views ---

type viewID int

const (
	viewCanvas viewID = iota
	viewLayers
	viewNamespaces
	viewTimeline
	viewScoreboard
	viewStats
	viewCount // sentinel
)

func (v viewID) String() string {
	switch v {
	case viewCanvas:
		return "Canvas"
	case viewLayers:
		return "Layers"
	case viewNamespaces:
		return "Namespaces"
	case viewTimeline:
		return "Timeline"
	case viewScoreboard:
		return "Scoreboard"
	case viewStats:
		return "Stats"
	}
	return "?"
}

// --- Model ---

type uiModel struct {
	panel   *panel.Panel
	tail    *datasource.Tail
	frame   *panel.Frame
	dbPath  string
	cfgPath string
	logger  *slog.Logger

	activeView      viewID
	width           int
	height          int
	scrollPos       int
	selectedNS      int
	seek            *int64 // nil follows live
	viewport        render.Viewport
	refreshInterval time.Duration

	// At most one read from the log is in flight; changes seen meanwhile
	// set pending and trigger one more read.
	fetching bool
	pending  bool

	help     help.Model
	showHelp bool

	lastRefresh time.Time
	notice      string
	lastErr     error
}

func newModel(p *panel.Panel, tail *datasource.Tail, dbPath, cfgPath string) uiModel {
	f := p.Frame()
	return uiModel{
		panel:       p,
		tail:        tail,
		frame:       f,
		dbPath:      dbPath,
		cfgPath:     cfgPath,
		logger:      slog.New(slog.DiscardHandler),
		viewport:    render.FromArray(f.ViewBox),
		help:        help.New(),
		lastRefresh: time.Now(),
	}
}

func (m uiModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return dbChangedMsg{} },
		tickEvery(),
		sweepEvery(),
	)
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func sweepEvery() tea.Cmd {
	return tea.Tick(history.SweepInterval, func(t time.Time) tea.Msg {
		return sweepMsg{}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.notice = ""
		// Check single-key view shortcuts first (always available).
		if v, ok := viewKeys[msg.String()]; ok {
			m.activeView = v
			m.scrollPos = 0
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Tab):
			m.activeView = (m.activeView + 1) % viewCount
			m.scrollPos = 0

		case key.Matches(msg, keys.Refresh):
			return m.requestFetch()

		case key.Matches(msg, keys.Up):
			switch m.activeView {
			case viewCanvas:
				m.viewport = m.viewport.Pan(0, panStep)
			case viewNamespaces:
				if m.selectedNS > 0 {
					m.selectedNS--
				}
			default:
				if m.scrollPos > 0 {
					m.scrollPos--
				}
			}

		case key.Matches(msg, keys.Down):
			switch m.activeView {
			case viewCanvas:
				m.viewport = m.viewport.Pan(0, -panStep)
			case viewNamespaces:
				if m.selectedNS < len(namespaceRows(m.frame))-1 {
					m.selectedNS++
				}
			default:
				// View() clamps if we overshoot.
				if m.scrollPos < len(m.frame.Paths)+len(m.frame.Hidden)+40 {
					m.scrollPos++
				}
			}

		case key.Matches(msg, keys.Left):
			if m.activeView == viewCanvas {
				m.viewport = m.viewport.Pan(panStep, 0)
			} else {
				m.seekBy(-seekStep)
			}

		case key.Matches(msg, keys.Right):
			if m.activeView == viewCanvas {
				m.viewport = m.viewport.Pan(-panStep, 0)
			} else {
				m.seekBy(seekStep)
			}

		case key.Matches(msg, keys.BigLeft):
			m.seekBy(-seekStepBig)

		case key.Matches(msg, keys.BigRight):
			m.seekBy(seekStepBig)

		case key.Matches(msg, keys.Live):
			m.seek = nil
			m.render(nil)

		case key.Matches(msg, keys.Toggle):
			if m.activeView == viewNamespaces {
				m.toggleNamespace()
			}

		case key.Matches(msg, keys.ZoomIn):
			m.viewport = m.viewport.Zoom(true, m.home())

		case key.Matches(msg, keys.ZoomOut):
			m.viewport = m.viewport.Zoom(false, m.home())

		case key.Matches(msg, keys.ResetView):
			m.viewport = m.home()

		case key.Matches(msg, keys.Updates):
			m.toggleUpdates()

		case key.Matches(msg, keys.Save):
			m.saveConfig()

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case dbChangedMsg:
		return m.requestFetch()

	case eventsReadyMsg:
		m.fetching = false
		if msg.err != nil {
			m.lastErr = msg.err
			m.logger.Warn("crv: read messages", "error", msg.err)
		} else {
			m.lastErr = nil
			m.render(msg.events)
		}
		if m.pending || len(msg.events) >= fetchLimit {
			m.pending = false
			return m.requestFetch()
		}

	case tickMsg:
		// Keeps the rate indicator and "refreshed ago" current.
		m.render(nil)
		return m, tickEvery()

	case sweepMsg:
		m.panel.Sweep()
		m.frame = m.panel.Frame()
		return m, sweepEvery()
	}

	return m, nil
}

func (m uiModel) requestFetch() (tea.Model, tea.Cmd) {
	if m.tail == nil {
		return m, nil
	}
	if m.fetching {
		m.pending = true
		return m, nil
	}
	m.fetching = true
	return m, m.fetchEvents()
}

func (m uiModel) fetchEvents() tea.Cmd {
	tail := m.tail
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		events, err := tail.Next(ctx, fetchLimit)
		return eventsReadyMsg{events: events, err: err}
	}
}

// render hands events to the panel and swaps in the new frame.
func (m *uiModel) render(events []wire.Event) {
	m.panel.Render(panel.RenderState{Events: events, SeekTime: m.seek}, func() {
		m.frame = m.panel.Frame()
		m.lastRefresh = time.Now()
	})
	if n := len(namespaceRows(m.frame)); m.selectedNS >= n {
		m.selectedNS = max(0, n-1)
	}
}

func (m uiModel) home() render.Viewport {
	return render.FromArray(m.frame.ViewBox)
}

// seekBy moves the seek time by d, entering seek mode from the current
// display time. The result stays within the retained history.
func (m *uiModel) seekBy(d time.Duration) {
	at := m.frame.At
	if m.seek != nil {
		at = *m.seek
	}
	at += d.Milliseconds()
	if m.frame.Snapshots+m.frame.Updates > 0 {
		at = min(max(at, m.frame.Oldest), m.frame.Latest)
	}
	m.seek = &at
	m.render(nil)
}

func (m *uiModel) toggleNamespace() {
	rows := namespaceRows(m.frame)
	if m.selectedNS < 0 || m.selectedNS >= len(rows) {
		return
	}
	row := rows[m.selectedNS]
	path := append([]string{"namespaces"}, row.segs...)
	if err := m.panel.Apply(path, !row.visible); err != nil {
		m.notice = err.Error()
		return
	}
	m.frame = m.panel.Frame()
}

func (m *uiModel) toggleUpdates() {
	enabled := !m.panel.Config().UpdateEnabled
	if err := m.panel.Apply([]string{"general", "update_enabled"}, enabled); err != nil {
		m.notice = err.Error()
		return
	}
	if m.tail != nil {
		m.tail.SetTopics(m.panel.Subscriptions())
	}
	m.frame = m.panel.Frame()
	if enabled {
		m.notice = "updates on"
	} else {
		m.notice = "updates off"
	}
}

func (m *uiModel) saveConfig() {
	if m.cfgPath == "" {
		m.notice = "no config path"
		return
	}
	if err := config.Save(m.cfgPath, m.panel.Config()); err != nil {
		m.notice = err.Error()
		m.logger.Warn("crv: save config", "path", m.cfgPath, "error", err)
		return
	}
	m.notice = "config saved to " + m.cfgPath
}

// nsRow is one line of the namespace view.
type nsRow struct {
	segs    []string
	visible bool
}

func namespaceRows(f *panel.Frame) []nsRow {
	var rows []nsRow
	f.Namespaces.Walk(func(segs []string, visible bool) {
		rows = append(rows, nsRow{segs: slices.Clone(segs), visible: visible})
	})
	return rows
}
