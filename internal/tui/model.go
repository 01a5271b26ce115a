// Package tui provides the Bubble Tea control panel.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/autotype/internal/cadence"
	"github.com/verte-zerg/autotype/internal/control"
	"github.com/verte-zerg/autotype/internal/model"
	"github.com/verte-zerg/autotype/internal/session"
	statsPkg "github.com/verte-zerg/autotype/internal/stats"
)

const (
	previewBefore = 240
	previewAfter  = 480
	previewLines  = 8
)

// History supplies past runs for the footer.
type History interface {
	ListRuns(ctx context.Context, cfg model.StatsConfig) ([]model.RunAggregate, error)
}

type eventMsg struct {
	ev session.Event
}

type commandDoneMsg struct {
	kind control.Kind
	err  error
}

// Model implements the Bubble Tea control panel.
type Model struct {
	ctrl      control.Session
	history   History
	logger    *zap.Logger
	variation float64

	width  int
	height int

	state     session.State
	text      []rune
	position  int
	total     int
	baseWPM   float64
	wpm       float64
	flow      cadence.FlowState
	typos     int
	countdown int
	summary   string
	message   string
	isError   bool
	quitting  bool

	bar    progress.Model
	custom textinput.Model
	asking bool

	lastWPM      float64
	lastRate     float64
	hasLast      bool
	allWPM       float64
	allTyped     int
	allTypos     int
	allDuration  int64
	allTypoRate  float64
	runsRecorded int
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	typedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9D9D9"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#8FBF7F"))
	stateStyles      = map[session.State]lipgloss.Style{
		session.Stopped: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8C8C8C")),
		session.Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A")),
		session.Paused:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAAD14")),
	}
)

// NewModel constructs the control panel. history may be nil.
func NewModel(ctrl control.Session, history History, variation float64, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	custom := textinput.New()
	custom.Placeholder = fmt.Sprintf("%d-%d", control.MinWPM, control.MaxWPM)
	custom.CharLimit = 3
	custom.Prompt = "custom wpm: "

	snap := ctrl.Snapshot()
	m := &Model{
		ctrl:      ctrl,
		history:   history,
		logger:    logger.Named("tui"),
		variation: variation,
		state:     snap.State,
		position:  snap.Position,
		total:     snap.Total,
		baseWPM:   snap.BaseWPM,
		flow:      snap.Flow,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		custom:    custom,
	}
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = barWidth(msg.Width)
		return m, nil
	case eventMsg:
		m.applyEvent(msg.ev)
		return m, nil
	case commandDoneMsg:
		if msg.err != nil && errors.Is(msg.err, context.Canceled) {
			m.setInfo("start cancelled")
		}
		return m, nil
	case tea.KeyMsg:
		if m.asking {
			return m.updateCustom(msg)
		}
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, m.quit()
	case tea.KeyEnter:
		return m, m.dispatch(control.Command{Kind: control.Start})
	case tea.KeyRunes:
	default:
		return m, nil
	}
	key := string(msg.Runes)
	if preset, ok := control.PresetByKey(key); ok {
		m.setInfo(fmt.Sprintf("%s mode: %.0f wpm", preset.Name, preset.WPM))
		return m, m.dispatch(control.Command{Kind: control.Start, WPM: preset.WPM})
	}
	switch key {
	case "p":
		return m, m.dispatch(control.Command{Kind: control.Pause})
	case "r":
		return m, m.dispatch(control.Command{Kind: control.Resume})
	case "s":
		return m, m.dispatch(control.Command{Kind: control.Stop})
	case "x":
		return m, m.dispatch(control.Command{Kind: control.Reset})
	case "c":
		m.asking = true
		m.custom.SetValue("")
		return m, m.custom.Focus()
	case "q":
		return m, m.quit()
	}
	return m, nil
}

func (m *Model) updateCustom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.asking = false
		m.custom.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, m.quit()
	case tea.KeyEnter:
		value := strings.TrimSpace(m.custom.Value())
		m.asking = false
		m.custom.Blur()
		cmd, err := control.Parse(value)
		if err != nil || cmd.Kind != control.Start || cmd.WPM == 0 {
			if err == nil {
				err = fmt.Errorf("enter a number between %d and %d", control.MinWPM, control.MaxWPM)
			}
			m.setError(err)
			return m, nil
		}
		m.setInfo(fmt.Sprintf("custom mode: %.0f wpm", cmd.WPM))
		return m, m.dispatch(cmd)
	}
	var cmd tea.Cmd
	m.custom, cmd = m.custom.Update(msg)
	return m, cmd
}

// dispatch runs cmd off the UI goroutine; Start blocks for the countdown.
func (m *Model) dispatch(cmd control.Command) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := control.Dispatch(context.Background(), ctrl, cmd)
		return commandDoneMsg{kind: cmd.Kind, err: err}
	}
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	ctrl := m.ctrl
	return func() tea.Msg {
		// Stop also cancels a start still in its pre-roll.
		_ = ctrl.Stop()
		_ = ctrl.Wait()
		return tea.Quit()
	}
}

func (m *Model) applyEvent(ev session.Event) {
	if ev.Kind != session.EventRejected {
		m.state = ev.State
	}
	switch ev.Kind {
	case session.EventReady:
		m.countdown = 0
		m.position = ev.Position
		m.total = ev.Total
		m.baseWPM = ev.BaseWPM
		m.summary = fmt.Sprintf("%d chars · %d words · %d lines · ~%.0fs",
			ev.Summary.Chars, ev.Summary.Words, ev.Summary.Lines, ev.Summary.EstimatedSeconds(ev.BaseWPM))
		m.message = ""
	case session.EventCountdown:
		m.countdown = ev.Countdown
		m.setInfo(fmt.Sprintf("typing starts in %d... focus the target window", ev.Countdown))
	case session.EventStarted:
		m.countdown = 0
		m.text = m.loadText()
		m.position = ev.Position
		m.total = ev.Total
		m.baseWPM = ev.BaseWPM
		m.flow = ev.Flow
		m.typos = 0
		m.wpm = 0
		m.setInfo("typing")
	case session.EventProgress:
		m.position = ev.Position
		m.wpm = ev.WPM
		m.flow = ev.Flow
		m.typos = ev.Typos
	case session.EventFlowChanged:
		m.position = ev.Position
		m.flow = ev.Flow
	case session.EventTypo:
		m.typos = ev.Typos
	case session.EventPaused:
		m.position = ev.Position
		m.setInfo("paused; r to resume, s to stop")
	case session.EventResumed:
		m.setInfo("resumed")
	case session.EventStopped:
		m.position = ev.Position
		m.setInfo(fmt.Sprintf("stopped at %d/%d; start again to continue", ev.Position, ev.Total))
		m.recordRun(ev.Stats)
	case session.EventCompleted:
		m.position = ev.Total
		m.wpm = ev.WPM
		m.setInfo(fmt.Sprintf("finished %d characters in %.1fs at %.1f wpm", ev.Typed, ev.Elapsed.Seconds(), ev.WPM))
		m.recordRun(ev.Stats)
	case session.EventFailed:
		m.position = ev.Position
		m.setError(ev.Err)
		m.recordRun(ev.Stats)
	case session.EventRejected:
		m.countdown = 0
		m.setError(ev.Err)
	}
}

// loadText mirrors the controller's text for the preview.
func (m *Model) loadText() []rune {
	if tp, ok := m.ctrl.(interface{ Text() string }); ok {
		return []rune(tp.Text())
	}
	return nil
}

func (m *Model) setInfo(msg string) {
	m.message = msg
	m.isError = false
}

func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	m.message = err.Error()
	m.isError = true
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	contentWidth := int(float64(width) * 0.80)
	if contentWidth < 20 {
		contentWidth = width
	}

	var sections []string
	sections = append(sections, titleStyle.Render("autotype"))
	sections = append(sections, m.renderStatus())
	sections = append(sections, m.bar.ViewAs(m.fraction())+" "+m.renderCounts())
	if m.summary != "" {
		sections = append(sections, footerStyle.Render(m.summary))
	}
	if preview := m.renderPreview(contentWidth); preview != "" {
		sections = append(sections, "", preview, "")
	}
	if m.asking {
		sections = append(sections, m.custom.View())
	} else if m.message != "" {
		style := infoStyle
		if m.isError {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.message))
	}
	sections = append(sections, footerStyle.Render(helpLine()))
	content := lipgloss.NewStyle().Width(contentWidth).Render(strings.Join(sections, "\n"))

	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + footer
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderStatus() string {
	style, ok := stateStyles[m.state]
	if !ok {
		style = pendingStyle
	}
	segments := []string{
		style.Render(strings.ToUpper(m.state.String())),
		fmt.Sprintf("%.0f wpm (±%.0f)", m.baseWPM, m.baseWPM*m.variation),
		"flow " + m.flow.String(),
	}
	if m.countdown > 0 {
		segments = append(segments, fmt.Sprintf("starting in %d", m.countdown))
	}
	return strings.Join(segments, "  ")
}

func (m *Model) renderCounts() string {
	return fmt.Sprintf("%d/%d · %.0f%% · %.1f wpm · %d typos", m.position, m.total, m.fraction()*100, m.wpm, m.typos)
}

func (m *Model) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	f := float64(m.position) / float64(m.total)
	if f > 1 {
		return 1
	}
	return f
}

func (m *Model) renderPreview(width int) string {
	if len(m.text) == 0 {
		return ""
	}
	pos := m.position
	if pos > len(m.text) {
		pos = len(m.text)
	}
	start := pos - previewBefore
	if start < 0 {
		start = 0
	}
	end := pos + previewAfter
	if end > len(m.text) {
		end = len(m.text)
	}
	cursor := -1
	if pos < len(m.text) {
		cursor = pos - start
	}
	runes := buildStyledRunes(m.text[start:end], pos-start, cursor)
	return lastLines(wrapStyledRunes(runes, width), previewLines)
}

func helpLine() string {
	parts := make([]string, 0, len(control.Presets)+1)
	for _, p := range control.Presets {
		parts = append(parts, fmt.Sprintf("%s %.0f", p.Key, p.WPM))
	}
	return strings.Join(parts, " · ") + " · c custom · enter start · p pause · r resume · s stop · x reset · q quit"
}

func (m *Model) loadFooterStats() {
	if m.history == nil {
		return
	}
	runs, err := m.history.ListRuns(context.Background(), model.StatsConfig{})
	if err != nil {
		m.logger.Warn("failed to load run history", zap.Error(err))
		return
	}
	if len(runs) == 0 {
		return
	}
	last := runs[len(runs)-1]
	m.lastWPM, _, m.lastRate = statsPkg.RunMetrics(last.TypedChars, last.Typos, last.DurationMs)
	m.hasLast = true

	for _, r := range runs {
		m.allTyped += r.TypedChars
		m.allTypos += r.Typos
		m.allDuration += r.DurationMs
	}
	m.runsRecorded = len(runs)
	m.recomputeAllTime()
}

func (m *Model) recordRun(stats *model.RunStats) {
	if stats == nil || stats.TypedChars == 0 {
		return
	}
	m.lastWPM, _, m.lastRate = statsPkg.RunMetrics(stats.TypedChars, stats.Typos, stats.DurationMs)
	m.hasLast = true
	m.allTyped += stats.TypedChars
	m.allTypos += stats.Typos
	m.allDuration += stats.DurationMs
	m.runsRecorded++
	m.recomputeAllTime()
}

func (m *Model) recomputeAllTime() {
	m.allWPM, _, m.allTypoRate = statsPkg.RunMetrics(m.allTyped, m.allTypos, m.allDuration)
}

func (m *Model) renderFooter() string {
	segments := []string{fmt.Sprintf("Progress %d%%", int(m.fraction()*100))}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.2f typos/100", m.lastWPM, m.lastRate))
	}
	if m.runsRecorded > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.2f typos/100 · %d runs", m.allWPM, m.allTypoRate, m.runsRecorded))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func barWidth(total int) int {
	w := total/2 - 10
	if w < 10 {
		return 10
	}
	if w > 60 {
		return 60
	}
	return w
}
