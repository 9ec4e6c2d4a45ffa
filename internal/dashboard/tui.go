// Package dashboard renders a live terminal view of monitored targets:
// per-target diagnostic counts, the recent history of the selected
// target, and a ticker of fired triggers.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/safety"
	"github.com/rixmerz/muxpilot/internal/stream"
)

const (
	recentDepth  = 15
	tickerDepth  = 5
	defaultWidth = 100
)

// messages
type tickMsg struct{}

type diagnosticMsg model.Diagnostic

type triggerMsg model.TriggerEvent

// Dashboard runs the interactive monitor view.
type Dashboard struct {
	Coord           *stream.Coordinator
	Bus             *bus.Bus
	RefreshInterval time.Duration // 0 means 2s
	Theme           string        // "dark" (default) or "light"
	// Send types a command into a pane. Nil hides the send prompt.
	Send func(ctx context.Context, target, command string) error
}

// dashModel implements tea.Model.
type dashModel struct {
	coord           *stream.Coordinator
	diags           <-chan model.Diagnostic
	triggers        <-chan model.TriggerEvent
	refreshInterval time.Duration
	st              styles

	window  stream.Window
	targets []string
	counts  map[string]stream.Counts
	cursor  int

	triggerLog []model.TriggerEvent

	// send prompt state
	ctx       context.Context
	send      func(ctx context.Context, target, command string) error
	validator *safety.Validator
	inputting bool
	input     textinput.Model
	message   string

	width  int
	height int
}

func (d *Dashboard) Run(ctx context.Context) error {
	interval := d.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ti := textinput.New()
	ti.Placeholder = "Type a command and press Enter..."
	ti.CharLimit = 2048
	ti.Width = 80

	m := &dashModel{
		coord:           d.Coord,
		diags:           d.Bus.SubscribeDiagnostics(),
		triggers:        d.Bus.SubscribeTriggers(),
		refreshInterval: interval,
		st:              newStyles(ThemeByName(d.Theme)),
		window:          stream.WindowAll,
		ctx:             ctx,
		send:            d.Send,
		validator:       &safety.Validator{},
		input:           ti,
		width:           defaultWidth,
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m *dashModel) Init() tea.Cmd {
	m.refresh()
	return tea.Batch(m.scheduleTick(), m.waitDiagnostic(), m.waitTrigger())
}

func (m *dashModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// waitDiagnostic blocks on the bus's diagnostic stream; a closed channel
// ends the subscription silently.
func (m *dashModel) waitDiagnostic() tea.Cmd {
	ch := m.diags
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return nil
		}
		return diagnosticMsg(d)
	}
}

func (m *dashModel) waitTrigger() tea.Cmd {
	ch := m.triggers
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return triggerMsg(ev)
	}
}

// refresh re-reads counts from the coordinator and keeps the cursor on
// the same target when possible.
func (m *dashModel) refresh() {
	var selected string
	if m.cursor >= 0 && m.cursor < len(m.targets) {
		selected = m.targets[m.cursor]
	}

	m.counts = m.coord.SummaryByTarget(m.window)
	m.targets = make([]string, 0, len(m.counts))
	for target := range m.counts {
		m.targets = append(m.targets, target)
	}
	sort.Strings(m.targets)

	m.cursor = 0
	for i, target := range m.targets {
		if target == selected {
			m.cursor = i
			break
		}
	}
}

func (m *dashModel) selectedTarget() string {
	if m.cursor < 0 || m.cursor >= len(m.targets) {
		return ""
	}
	return m.targets[m.cursor]
}

func (m *dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.scheduleTick()

	case diagnosticMsg:
		m.refresh()
		return m, m.waitDiagnostic()

	case triggerMsg:
		m.triggerLog = append(m.triggerLog, model.TriggerEvent(msg))
		if len(m.triggerLog) > tickerDepth {
			m.triggerLog = m.triggerLog[len(m.triggerLog)-tickerDepth:]
		}
		return m, m.waitTrigger()

	case tea.KeyMsg:
		if m.inputting {
			return m.handleInputKey(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.targets)-1 {
				m.cursor++
			}
		case "tab", "w":
			m.window = nextWindow(m.window)
			m.refresh()
		case "c":
			if target := m.selectedTarget(); target != "" {
				m.coord.ClearHistory(target)
				m.refresh()
			}
		case "s":
			if m.send != nil && m.selectedTarget() != "" {
				m.inputting = true
				m.message = ""
				m.input.SetValue("")
				m.input.Focus()
				return m, textinput.Blink
			}
		}
	}
	return m, nil
}

// handleInputKey handles keys while the send prompt is open.
func (m *dashModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "escape":
		m.inputting = false
		m.input.Blur()
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		target := m.selectedTarget()
		if text != "" && target != "" {
			fields := strings.Fields(text)
			if err := m.validator.Validate(fields[0], fields[1:]); err != nil {
				m.message = fmt.Sprintf("rejected: %v", err)
			} else if err := m.send(m.ctx, target, text); err != nil {
				m.message = fmt.Sprintf("send failed: %v", err)
			} else {
				m.message = fmt.Sprintf("sent to %s", target)
			}
		}
		m.inputting = false
		m.input.Blur()
		return m, nil
	}

	// Forward all other keys to the text input component.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func nextWindow(w stream.Window) stream.Window {
	switch w {
	case stream.WindowAll:
		return stream.WindowHour
	case stream.WindowHour:
		return stream.WindowDay
	default:
		return stream.WindowAll
	}
}

func windowLabel(w stream.Window) string {
	switch w {
	case stream.WindowHour:
		return "last hour"
	case stream.WindowDay:
		return "last 24h"
	default:
		return "all time"
	}
}

func (m *dashModel) View() string {
	var b strings.Builder

	b.WriteString(m.st.title.Render("muxpilot"))
	b.WriteString(m.st.dim.Render(fmt.Sprintf("  %s", windowLabel(m.window))))
	b.WriteString("\n")
	b.WriteString(m.st.header.Render(strings.Repeat("─", min(m.width, defaultWidth))))
	b.WriteString("\n")

	b.WriteString(m.viewTargets())
	b.WriteString("\n")
	b.WriteString(m.viewRecent())
	b.WriteString("\n")
	b.WriteString(m.viewTriggers())
	b.WriteString("\n")
	if m.inputting {
		b.WriteString(m.st.header.Render("send to " + m.selectedTarget()))
		b.WriteString("\n  ")
		b.WriteString(m.input.View())
	} else {
		if m.message != "" {
			b.WriteString(m.st.dim.Render(m.message))
			b.WriteString("\n")
		}
		b.WriteString(m.viewHints())
	}

	return b.String()
}

func (m *dashModel) viewTargets() string {
	if len(m.targets) == 0 {
		return m.st.dim.Render("no targets watched") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.st.dim.Render(fmt.Sprintf("  %-24s %8s %8s %8s", "TARGET", "ERRORS", "WARNINGS", "INFO")))
	b.WriteString("\n")
	for i, target := range m.targets {
		c := m.counts[target]
		row := fmt.Sprintf("  %-24s %8d %8d %8d", target, c.Errors, c.Warnings, c.Infos)
		switch {
		case i == m.cursor:
			b.WriteString(m.st.selected.Render(row))
		case c.Errors > 0:
			b.WriteString(m.st.err.Render(row))
		case c.Warnings > 0:
			b.WriteString(m.st.warn.Render(row))
		default:
			b.WriteString(m.st.ok.Render(row))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashModel) viewRecent() string {
	target := m.selectedTarget()
	if target == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.st.header.Render("recent  " + target))
	b.WriteString("\n")
	recent := m.coord.Recent(target, recentDepth)
	if len(recent) == 0 {
		b.WriteString(m.st.dim.Render("  no diagnostics"))
		b.WriteString("\n")
		return b.String()
	}
	for _, d := range recent {
		line := "  " + formatDiagnostic(d)
		switch d.Kind {
		case model.KindError:
			b.WriteString(m.st.err.Render(line))
		case model.KindWarning:
			b.WriteString(m.st.warn.Render(line))
		default:
			b.WriteString(m.st.info.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashModel) viewTriggers() string {
	if len(m.triggerLog) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.st.header.Render("triggers"))
	b.WriteString("\n")
	for _, ev := range m.triggerLog {
		b.WriteString(m.st.info.Render(fmt.Sprintf("  %s  %s  %s",
			ev.FiredAt.Local().Format("15:04:05"), ev.Category, ev.Target)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *dashModel) viewHints() string {
	hints := []struct{ key, desc string }{
		{"↑/↓", "select"},
		{"tab", "window"},
		{"c", "clear"},
	}
	if m.send != nil {
		hints = append(hints, struct{ key, desc string }{"s", "send"})
	}
	hints = append(hints, struct{ key, desc string }{"q", "quit"})
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, m.st.hintKey.Render(h.key)+" "+m.st.hintDesc.Render(h.desc))
	}
	return lipgloss.NewStyle().Render(strings.Join(parts, "  "))
}

func formatDiagnostic(d model.Diagnostic) string {
	var b strings.Builder
	b.WriteString(d.Timestamp.Local().Format("15:04:05"))
	if d.File != "" {
		fmt.Fprintf(&b, "  %s", d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
	}
	msg := d.Message
	if len(msg) > 80 {
		msg = msg[:77] + "..."
	}
	b.WriteString("  ")
	b.WriteString(msg)
	return b.String()
}
