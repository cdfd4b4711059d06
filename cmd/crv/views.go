package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/daviddao/crane_viewer/internal/referee"
	"github.com/daviddao/crane_viewer/internal/render"
	"github.com/daviddao/crane_viewer/internal/timeline"
	"github.com/daviddao/crane_viewer/internal/wire"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	visibleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	hiddenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")).
			Bold(true)

	seekStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387")).
			Bold(true)

	yellowTeamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF")).
			Bold(true)

	blueTeamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA")).
			Bold(true)

	canvasStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// --- View rendering ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')
	b.WriteRune('\n')

	contentHeight := m.height - 5 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}

	var content string
	switch m.activeView {
	case viewCanvas:
		content = m.renderCanvas(contentHeight)
	case viewLayers:
		content = m.renderLayers()
	case viewNamespaces:
		content = m.renderNamespaces()
	case viewTimeline:
		content = m.renderTimeline()
	case viewScoreboard:
		content = m.renderScoreboard()
	case viewStats:
		content = m.renderStats()
	}

	// View() is a value receiver, so scroll is applied to a local copy.
	lines := strings.Split(content, "\n")
	scrollPos := m.scrollPos
	if m.activeView == viewCanvas {
		scrollPos = 0
	}
	if scrollPos >= len(lines) {
		scrollPos = max(0, len(lines)-1)
	}
	if scrollPos > 0 {
		lines = lines[scrollPos:]
	}
	if contentHeight > 0 && len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	content = strings.Join(lines, "\n")

	// Truncate each line to terminal width so content doesn't wrap
	// on resize. Uses ANSI-aware width measurement.
	b.WriteString(truncateLines(content, m.width))

	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	if m.showHelp {
		b.WriteString(truncateLines(m.help.View(keys), m.width))
	} else {
		b.WriteString(truncateLines(m.renderStatusBar(), m.width))
	}

	return b.String()
}

func (m uiModel) renderTitleBar() string {
	title := titleStyle.Render("crane viewer")
	stats := dimStyle.Render(fmt.Sprintf(
		"%d layers | %d snapshots | %d updates | %.1f msg/s",
		len(m.frame.Paths),
		m.frame.Snapshots,
		m.frame.Updates,
		m.frame.Rate,
	))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-2))
	return title + gap + stats
}

func (m uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(i.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(i.String()))
		}
	}
	return strings.Join(tabs, " ")
}

func (m uiModel) renderStatusBar() string {
	left := fmt.Sprintf(" %s", contextHelp(m.activeView))
	var right string
	switch {
	case m.notice != "":
		right = m.notice + " "
	case m.lastErr != nil:
		right = "error: " + m.lastErr.Error() + " "
	default:
		ago := time.Since(m.lastRefresh).Truncate(time.Second)
		right = fmt.Sprintf("%s | refreshed %s ago ", modeLabel(m.frame.Mode), ago)
	}
	gap := strings.Repeat(" ", max(0, m.width-len(left)-len(right)))
	return statusBarStyle.Render(left + gap + right)
}

func modeLabel(mode timeline.Mode) string {
	if mode == timeline.Seek {
		return "SEEK"
	}
	return "LIVE"
}

func (m uiModel) renderMode() string {
	if m.frame.Mode == timeline.Seek {
		return seekStyle.Render("SEEK")
	}
	return liveStyle.Render("LIVE")
}

// --- Canvas view ---

func (m uiModel) renderCanvas(height int) string {
	var b strings.Builder
	at := "-"
	if m.frame.HasAt {
		at = formatMillis(m.frame.At)
	}
	b.WriteString(fmt.Sprintf("%s %s  %s  zoom %.1fx",
		m.renderMode(), at, dimStyle.Render("viewBox "+m.viewport.String()), m.viewport.Ratio(m.home())))
	b.WriteRune('\n')

	if !m.frame.OK {
		b.WriteString(dimStyle.Render("  (no state)"))
		b.WriteRune('\n')
		return b.String()
	}

	rows := max(1, height-2)
	gridStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.frame.FieldColor))
	for _, line := range render.Raster(m.frame, m.viewport, max(1, m.width), rows) {
		if m.frame.ShowGrid {
			b.WriteString(tintGrid(line, gridStyle))
		} else {
			b.WriteString(canvasStyle.Render(line))
		}
		b.WriteRune('\n')
	}

	raw := 0
	for _, ps := range m.frame.Layers {
		for _, p := range ps {
			if p.Kind == wire.KindSVG {
				raw++
			}
		}
	}
	if raw > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d raw SVG primitives not drawn (see Layers, or crv dump --svg)", raw)))
	}
	return b.String()
}

// tintGrid renders grid dots in the field colour and everything else in
// the canvas style.
func tintGrid(line string, grid lipgloss.Style) string {
	var b strings.Builder
	var run []rune
	flush := func(dots bool) {
		if len(run) == 0 {
			return
		}
		if dots {
			b.WriteString(grid.Render(string(run)))
		} else {
			b.WriteString(canvasStyle.Render(string(run)))
		}
		run = run[:0]
	}
	dots := false
	for _, r := range line {
		if isDot := r == render.GlyphGrid; isDot != dots {
			flush(dots)
			dots = isDot
		}
		run = append(run, r)
	}
	flush(dots)
	return b.String()
}

// --- Layers view ---

func (m uiModel) renderLayers() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Layers"))
	b.WriteRune('\n')

	if len(m.frame.Paths) == 0 {
		b.WriteString(dimStyle.Render("  (no visible layers)"))
		b.WriteRune('\n')
	} else {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-32s %-6s %s", "Path", "Prims", "First")))
		b.WriteRune('\n')
		for _, path := range m.frame.Paths {
			ps := m.frame.Layers[path]
			first := ""
			if len(ps) > 0 {
				first = truncate(ps[0].String(), 60)
			}
			b.WriteString(visibleStyle.Render(fmt.Sprintf("  %-32s %-6d", path, len(ps))))
			b.WriteString(" ")
			b.WriteString(dimStyle.Render(first))
			b.WriteRune('\n')
		}
	}

	if len(m.frame.Hidden) > 0 {
		b.WriteRune('\n')
		b.WriteString(headerStyle.Render("Hidden"))
		b.WriteRune('\n')
		for _, path := range m.frame.Hidden {
			b.WriteString(hiddenStyle.Render("  " + path))
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// --- Namespaces view ---

func (m uiModel) renderNamespaces() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Namespaces"))
	b.WriteRune('\n')

	rows := namespaceRows(m.frame)
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("  (no layers observed yet)"))
		b.WriteRune('\n')
		return b.String()
	}
	for i, row := range rows {
		cursor := "  "
		if i == m.selectedNS {
			cursor = "> "
		}
		box, style := "[x]", visibleStyle
		if !row.visible {
			box, style = "[ ]", hiddenStyle
		}
		indent := strings.Repeat("  ", len(row.segs)-1)
		line := fmt.Sprintf("%s%s%s %s", cursor, indent, box, row.segs[len(row.segs)-1])
		if i == m.selectedNS {
			b.WriteString(style.Bold(true).Render(line))
		} else {
			b.WriteString(style.Render(line))
		}
		b.WriteRune('\n')
	}
	return b.String()
}

// --- Timeline view ---

func (m uiModel) renderTimeline() string {
	f := m.frame
	var b strings.Builder
	b.WriteString(headerStyle.Render("Timeline"))
	b.WriteRune('\n')

	at := "-"
	if f.HasAt {
		at = formatMillis(f.At)
	}
	b.WriteString(fmt.Sprintf("  %-10s %s\n", "Mode", m.renderMode()))
	b.WriteString(fmt.Sprintf("  %-10s %s\n", "Display", at))
	switch {
	case f.HasBase:
		b.WriteString(fmt.Sprintf("  %-10s %s (+%d update ops)\n", "Base", formatMillis(f.Base), f.Applied))
	case f.OK:
		b.WriteString(fmt.Sprintf("  %-10s %s\n", "Base", dimStyle.Render(fmt.Sprintf("none, %d update ops without snapshot", f.Applied))))
	default:
		b.WriteString(fmt.Sprintf("  %-10s %s\n", "Base", dimStyle.Render("none")))
	}

	if f.Snapshots+f.Updates == 0 {
		b.WriteString(dimStyle.Render("  (no messages in history)"))
		b.WriteRune('\n')
		return b.String()
	}
	span := time.Duration(f.Latest-f.Oldest) * time.Millisecond
	b.WriteString(fmt.Sprintf("  %-10s %s .. %s (%s)\n", "History", formatMillis(f.Oldest), formatMillis(f.Latest), shortDuration(span)))
	b.WriteRune('\n')
	b.WriteString("  " + timelineBar(f.Oldest, f.Latest, f.At, max(10, m.width-4)))
	b.WriteRune('\n')
	return b.String()
}

// timelineBar draws the retained range with a marker at the display time.
func timelineBar(oldest, latest, at int64, width int) string {
	pos := width - 1
	if latest > oldest {
		frac := float64(at-oldest) / float64(latest-oldest)
		pos = int(frac * float64(width-1))
	}
	pos = min(max(pos, 0), width-1)
	return dimStyle.Render(strings.Repeat("=", pos)) + seekStyle.Render("|") + dimStyle.Render(strings.Repeat("-", width-1-pos))
}

// --- Scoreboard view ---

func (m uiModel) renderScoreboard() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Scoreboard"))
	b.WriteRune('\n')

	if !m.frame.Scoreboard {
		b.WriteString(dimStyle.Render("  (scoreboard disabled)"))
		b.WriteRune('\n')
		return b.String()
	}
	if !m.frame.HasReferee {
		b.WriteString(dimStyle.Render("  (no referee messages)"))
		b.WriteRune('\n')
		return b.String()
	}

	st := m.frame.Referee
	b.WriteString(fmt.Sprintf("  %s %d : %d %s\n",
		yellowTeamStyle.Render(teamName(st.Yellow.Name, "Yellow")), st.Yellow.Score,
		st.Blue.Score, blueTeamStyle.Render(teamName(st.Blue.Name, "Blue"))))
	b.WriteString(fmt.Sprintf("  Stage: %s  Command: %s  Time left: %s\n",
		st.Stage, st.Command, st.CountdownString()))
	b.WriteRune('\n')

	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s %5s %4s %6s %8s %8s %6s %5s %8s %4s",
		"Team", "Score", "Red", "Yellow", "Timeouts", "TO time", "Goalie", "Fouls", "BP fails", "Bots")))
	b.WriteRune('\n')
	b.WriteString(yellowTeamStyle.Render(teamRow(st.Yellow, "Yellow")))
	b.WriteRune('\n')
	b.WriteString(blueTeamStyle.Render(teamRow(st.Blue, "Blue")))
	b.WriteRune('\n')
	return b.String()
}

func teamRow(t referee.Team, def string) string {
	return fmt.Sprintf("  %-16s %5d %4d %6d %8d %8s %6d %5d %8d %4d",
		truncate(teamName(t.Name, def), 16), t.Score, t.RedCards, t.YellowCards, t.Timeouts,
		referee.FormatCountdown(t.TimeoutTime), t.Goalkeeper, t.FoulCounter,
		t.BallPlacementFailures, t.MaxAllowedBots)
}

func teamName(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// --- Stats view ---

func (m uiModel) renderStats() string {
	f := m.frame
	var b strings.Builder
	b.WriteString(headerStyle.Render("Stats"))
	b.WriteRune('\n')

	cfg := m.panel.Config()
	rows := [][2]string{
		{"Database", m.dbPath},
		{"Config", m.cfgPath},
		{"Topics", strings.Join(m.panel.Subscriptions(), ", ")},
		{"Updates", onOff(cfg.UpdateEnabled)},
		{"Retention", fmt.Sprintf("%s / %d entries", shortDuration(cfg.HistoryMaxAge()), cfg.HistoryMaxCount)},
		{"Snapshots", fmt.Sprintf("%d", f.Snapshots)},
		{"Updates", fmt.Sprintf("%d timestamps, %d batches", f.Updates, f.Batches)},
		{"Primitives", fmt.Sprintf("%d visible", f.Primitives)},
		{"Received", fmt.Sprintf("%d (%d skipped)", f.Received, f.Skipped)},
		{"Rate", fmt.Sprintf("%.1f msg/s", f.Rate)},
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %-11s %s\n", r[0], r[1]))
	}
	if m.lastErr != nil {
		b.WriteString(hiddenStyle.Render("  last error: " + m.lastErr.Error()))
		b.WriteRune('\n')
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// --- Helpers ---

// truncateLines clips each line to width display cells.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func shortDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "-" + shortDuration(-d)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatMillis renders a receive time in ms as a UTC wall clock.
func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("15:04:05.000")
}
