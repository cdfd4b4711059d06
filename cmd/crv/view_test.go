package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/crane_viewer/internal/config"
	"github.com/daviddao/crane_viewer/internal/panel"
	"github.com/daviddao/crane_viewer/internal/timeline"
	"github.com/daviddao/crane_viewer/internal/wire"
)

func event(topic string, ms int64, msg any) wire.Event {
	b, _ := json.Marshal(msg)
	return wire.Event{Topic: topic, Message: b, ReceiveTime: wire.TimeFromMillis(ms)}
}

// testEvents is a short session: one snapshot, one update and a referee
// message.
func testEvents() []wire.Event {
	return []wire.Event{
		event(config.DefaultSnapshotTopic, 1000, map[string]any{
			"svg_primitive_arrays": []map[string]any{
				{"layer": "field", "svg_primitives": []any{`<rect width="10"/>`}},
				{"layer": "robots/blue", "svg_primitives": []any{
					map[string]any{"id": 3, "type": 0, "params": []float64{0, 0, 500}, "color": "blue"},
				}},
			},
		}),
		event(config.DefaultRefereeTopic, 1200, map[string]any{
			"stage":           map[string]any{"value": 1},
			"command":         map[string]any{"value": 2},
			"stage_time_left": 65000000,
			"yellow":          map[string]any{"name": "Tigers", "score": 1},
			"blue":            map[string]any{"name": "ER-Force", "score": 2},
		}),
		event(config.DefaultUpdateTopic, 1500, map[string]any{
			"updates": []map[string]any{
				{"layer": "robots/blue", "operation": "append", "svg_primitives": []any{
					map[string]any{"id": 4, "type": 3, "params": []float64{100, 100}, "text": "B4"},
				}},
			},
		}),
	}
}

// testModel creates a uiModel with a rendered session (no store or watcher).
func testModel() uiModel {
	p := panel.New(config.Default(), panel.Options{})
	m := newModel(p, nil, "/tmp/telemetry.db", "")
	m.width = 80
	m.height = 24
	m.help.Width = 80
	m.render(testEvents())
	return m
}

func emptyModel() uiModel {
	m := newModel(panel.New(config.Default(), panel.Options{}), nil, "", "")
	m.width = 80
	m.height = 24
	return m
}

func press(t *testing.T, m uiModel, k string) uiModel {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, _ := m.Update(msg)
	return updated.(uiModel)
}

func TestParseViewFlag(t *testing.T) {
	tests := []struct {
		input string
		want  viewID
		err   bool
	}{
		{"canvas", viewCanvas, false},
		{"Canvas", viewCanvas, false},
		{"c", viewCanvas, false},
		{"layers", viewLayers, false},
		{"l", viewLayers, false},
		{"namespaces", viewNamespaces, false},
		{"n", viewNamespaces, false},
		{"timeline", viewTimeline, false},
		{"t", viewTimeline, false},
		{"scoreboard", viewScoreboard, false},
		{"s", viewScoreboard, false},
		{"stats", viewStats, false},
		{"i", viewStats, false},
		{"bogus", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseViewFlag(tt.input)
			if tt.err {
				if err == nil {
					t.Errorf("parseViewFlag(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseViewFlag(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseViewFlag(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFeedChangesStopsOnDone(t *testing.T) {
	changes := make(chan struct{}, 1)
	done := make(chan struct{})
	sent := make(chan tea.Msg, 16)
	finished := make(chan struct{})
	go func() {
		feedChanges(done, changes, time.Hour, func(msg tea.Msg) { sent <- msg })
		close(finished)
	}()

	changes <- struct{}{}
	select {
	case msg := <-sent:
		if _, ok := msg.(dbChangedMsg); !ok {
			t.Errorf("sent %T, want dbChangedMsg", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher signal was not forwarded")
	}

	// A closed watcher channel must not spin or stop polling.
	close(changes)
	time.Sleep(20 * time.Millisecond)
	select {
	case msg := <-sent:
		t.Errorf("closed changes channel produced %T", msg)
	default:
	}

	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("feedChanges did not return after done was closed")
	}
}

func TestFeedChangesPolls(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	sent := make(chan tea.Msg, 16)
	go feedChanges(done, nil, 5*time.Millisecond, func(msg tea.Msg) { sent <- msg })
	for i := 0; i < 2; i++ {
		select {
		case <-sent:
		case <-time.After(2 * time.Second):
			t.Fatal("poll tick was not sent")
		}
	}
}

func TestViewIDString(t *testing.T) {
	tests := []struct {
		v    viewID
		want string
	}{
		{viewCanvas, "Canvas"},
		{viewLayers, "Layers"},
		{viewNamespaces, "Namespaces"},
		{viewTimeline, "Timeline"},
		{viewScoreboard, "Scoreboard"},
		{viewStats, "Stats"},
		{viewID(99), "?"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("viewID(%d).String() = %q, want %q", int(tt.v), got, tt.want)
		}
	}
}

func TestViewLoading(t *testing.T) {
	m := testModel()
	m.width = 0

	if out := m.View(); out != "Loading..." {
		t.Errorf("expected 'Loading...' when width=0, got %q", out)
	}
}

func TestViewFullRenderEachView(t *testing.T) {
	m := testModel()
	for v := viewID(0); v < viewCount; v++ {
		m.activeView = v
		out := m.View()
		if !strings.Contains(out, "crane viewer") {
			t.Errorf("%s: missing title bar", v)
		}
		if !strings.Contains(out, v.String()) {
			t.Errorf("%s: missing tab label", v)
		}
		for i, line := range strings.Split(out, "\n") {
			if w := ansi.StringWidth(line); w > m.width {
				t.Errorf("%s: line %d is %d cells wide", v, i, w)
			}
		}
	}
}

func TestRenderCanvas(t *testing.T) {
	m := testModel()
	m.viewport = m.viewport.Zoom(true, m.home())
	out := m.renderCanvas(20)

	if !strings.Contains(out, "LIVE") {
		t.Error("canvas should show LIVE mode")
	}
	if !strings.Contains(out, "o") {
		t.Error("canvas should draw the robot circle")
	}
	if !strings.Contains(out, "B4") {
		t.Error("canvas should draw the text label")
	}
	if !strings.Contains(out, "1 raw SVG primitives") {
		t.Error("canvas should count undrawn SVG fragments")
	}
}

func TestRenderCanvasGrid(t *testing.T) {
	cfg := config.Default()
	cfg.ShowGrid = true
	cfg.GridSize = 1000
	m := newModel(panel.New(cfg, panel.Options{}), nil, "", "")
	m.width, m.height = 80, 24
	m.render(testEvents())
	if !m.frame.ShowGrid || m.frame.GridSize != 1000 || m.frame.FieldColor != config.DefaultFieldColor {
		t.Fatalf("frame grid = %v %v %q", m.frame.ShowGrid, m.frame.GridSize, m.frame.FieldColor)
	}

	out := ansi.Strip(m.renderCanvas(20))
	if !strings.Contains(out, ". .") {
		t.Errorf("canvas should draw dotted grid lines:\n%s", out)
	}
	if !strings.Contains(out, "B4") {
		t.Error("shapes should draw over the grid")
	}
}

func TestTintGridKeepsText(t *testing.T) {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	for _, line := range []string{"", "...", "a..b.", "no dots"} {
		if got := ansi.Strip(tintGrid(line, style)); got != line {
			t.Errorf("tintGrid(%q) = %q", line, got)
		}
	}
}

func TestRenderCanvasEmpty(t *testing.T) {
	m := emptyModel()
	if out := m.renderCanvas(20); !strings.Contains(out, "no state") {
		t.Errorf("empty canvas = %q", out)
	}
}

func TestRenderLayers(t *testing.T) {
	m := testModel()
	out := m.renderLayers()

	for _, want := range []string{"field", "robots/blue", "circle#3", `<rect width="10"/>`} {
		if !strings.Contains(out, want) {
			t.Errorf("layers view should contain %q", want)
		}
	}
	if strings.Contains(out, "Hidden") {
		t.Error("nothing is hidden yet")
	}
}

func TestRenderNamespacesToggle(t *testing.T) {
	m := testModel()
	m = press(t, m, "n")
	if m.activeView != viewNamespaces {
		t.Fatalf("activeView = %v", m.activeView)
	}

	out := m.renderNamespaces()
	for _, want := range []string{"> [x] field", "[x] robots", "    [x] blue"} {
		if !strings.Contains(out, want) {
			t.Errorf("namespaces view missing %q in:\n%s", want, out)
		}
	}

	m = press(t, m, "down")
	m = press(t, m, "down")
	m = press(t, m, "x")
	if len(m.frame.Hidden) != 1 || m.frame.Hidden[0] != "robots/blue" {
		t.Errorf("Hidden = %v", m.frame.Hidden)
	}
	if !strings.Contains(m.renderNamespaces(), "[ ] blue") {
		t.Error("blue should be unchecked")
	}
	if !strings.Contains(m.renderLayers(), "Hidden") {
		t.Error("layers view should list hidden layers")
	}

	m = press(t, m, "space")
	if len(m.frame.Hidden) != 0 {
		t.Errorf("space should toggle back, Hidden = %v", m.frame.Hidden)
	}
}

func TestUpdateSeekAndLive(t *testing.T) {
	m := testModel()
	m = press(t, m, "t")
	if m.frame.Mode != timeline.Live || m.frame.At != 1500 {
		t.Fatalf("start = %v at %d", m.frame.Mode, m.frame.At)
	}

	m = press(t, m, "left")
	if m.frame.Mode != timeline.Seek || m.frame.At != 1400 {
		t.Errorf("after left = %v at %d", m.frame.Mode, m.frame.At)
	}
	if got := m.frame.Layers["robots/blue"]; len(got) != 1 {
		t.Errorf("before the update robots/blue has %d primitives, want 1", len(got))
	}
	if !strings.Contains(m.renderTimeline(), "SEEK") {
		t.Error("timeline view should show SEEK")
	}

	// Seeking is clamped to the retained history.
	for range 20 {
		m = press(t, m, "[")
	}
	if m.frame.At != 1000 {
		t.Errorf("clamped seek = %d, want 1000", m.frame.At)
	}

	m = press(t, m, "g")
	if m.seek != nil || m.frame.Mode != timeline.Live || m.frame.At != 1500 {
		t.Errorf("after live = %v at %d", m.frame.Mode, m.frame.At)
	}
}

func TestUpdateCanvasPanZoom(t *testing.T) {
	m := testModel()
	home := m.home()

	m = press(t, m, "left")
	if m.viewport.X >= home.X {
		t.Errorf("left should pan toward negative x: %v", m.viewport)
	}
	if m.frame.Mode != timeline.Live {
		t.Error("left on the canvas should not seek")
	}

	m = press(t, m, "+")
	if m.viewport.W >= home.W {
		t.Errorf("zoom in: W = %v", m.viewport.W)
	}
	m = press(t, m, "0")
	if m.viewport != home {
		t.Errorf("reset = %v, want %v", m.viewport, home)
	}
}

func TestUpdateToggleUpdates(t *testing.T) {
	m := testModel()
	m = press(t, m, "u")
	if m.panel.Config().UpdateEnabled {
		t.Fatal("updates should be off")
	}
	if m.frame.At != 1000 {
		t.Errorf("without updates the display time is the snapshot, got %d", m.frame.At)
	}
	if !strings.Contains(m.notice, "updates off") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestRenderScoreboard(t *testing.T) {
	m := testModel()
	out := m.renderScoreboard()
	for _, want := range []string{"Tigers", "ER-Force", "1 : 2", "1:05"} {
		if !strings.Contains(out, want) {
			t.Errorf("scoreboard missing %q in:\n%s", want, out)
		}
	}

	if out := emptyModel().renderScoreboard(); !strings.Contains(out, "no referee messages") {
		t.Errorf("empty scoreboard = %q", out)
	}
}

func TestRenderScoreboardDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.ScoreboardEnabled = false
	m := newModel(panel.New(cfg, panel.Options{}), nil, "", "")
	m.render(testEvents())
	if out := m.renderScoreboard(); !strings.Contains(out, "scoreboard disabled") {
		t.Errorf("disabled scoreboard = %q", out)
	}
}

func TestRenderStats(t *testing.T) {
	m := testModel()
	m.lastErr = errors.New("disk gone")
	out := m.renderStats()
	for _, want := range []string{"/tmp/telemetry.db", config.DefaultUpdateTopic, "3 (0 skipped)", "disk gone"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q in:\n%s", want, out)
		}
	}
}

func TestUpdateTabCyclesViews(t *testing.T) {
	m := testModel()
	for i := 1; i <= int(viewCount); i++ {
		m = press(t, m, "tab")
		if want := viewID(i) % viewCount; m.activeView != want {
			t.Errorf("after %d tabs activeView = %v, want %v", i, m.activeView, want)
		}
	}
}

func TestUpdateHelpToggle(t *testing.T) {
	m := testModel()
	m = press(t, m, "?")
	if !m.showHelp || !m.help.ShowAll {
		t.Error("? should show full help")
	}
	m = press(t, m, "?")
	if m.showHelp {
		t.Error("second ? should hide help")
	}
}

func TestUpdateWindowSizeMsg(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(uiModel)
	if m.width != 120 || m.height != 40 || m.help.Width != 120 {
		t.Errorf("size = %dx%d help %d", m.width, m.height, m.help.Width)
	}
}

func TestEventsReadyRenders(t *testing.T) {
	m := emptyModel()
	m.fetching = true
	updated, cmd := m.Update(eventsReadyMsg{events: testEvents()})
	m = updated.(uiModel)
	if m.fetching || cmd != nil {
		t.Errorf("fetching = %v, cmd = %v", m.fetching, cmd)
	}
	if m.frame.Received != 3 || !m.frame.OK {
		t.Errorf("frame = received %d ok %v", m.frame.Received, m.frame.OK)
	}

	updated, _ = m.Update(eventsReadyMsg{err: errors.New("locked")})
	if m = updated.(uiModel); m.lastErr == nil {
		t.Error("read error should be kept for the status bar")
	}
}

func TestRequestFetchWithoutTail(t *testing.T) {
	m := emptyModel()
	updated, cmd := m.Update(dbChangedMsg{})
	if cmd != nil || updated.(uiModel).fetching {
		t.Error("no tail should mean no fetch")
	}
}

func TestSelectedNSClampedOnRender(t *testing.T) {
	m := testModel()
	m.selectedNS = 10
	m.render(nil)
	if m.selectedNS != 2 {
		t.Errorf("selectedNS = %d, want 2", m.selectedNS)
	}
}

func TestTruncateLines(t *testing.T) {
	got := truncateLines("abcdef\nab", 4)
	if got != "abcd\nab" {
		t.Errorf("truncateLines = %q", got)
	}
	if got := truncateLines("abc", 0); got != "abc" {
		t.Errorf("width 0 = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestShortDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{-2 * time.Second, "-2s"},
	}
	for _, tt := range tests {
		if got := shortDuration(tt.d); got != tt.want {
			t.Errorf("shortDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatMillis(t *testing.T) {
	if got := formatMillis(3_723_045); got != "01:02:03.045" {
		t.Errorf("formatMillis = %q", got)
	}
}

func TestTimelineBar(t *testing.T) {
	bar := ansi.Strip(timelineBar(0, 100, 50, 11))
	if bar != "=====|-----" {
		t.Errorf("bar = %q", bar)
	}
	if bar := ansi.Strip(timelineBar(5, 5, 5, 4)); bar != "===|" {
		t.Errorf("single point bar = %q", bar)
	}
}
