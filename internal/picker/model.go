// Package picker is a terminal tool window for choosing a capture source.
// It lists sources over the negotiation channel and announces the choice
// with select-screen-source, like a source-picker window would.
package picker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/ipc"
)

// Channel is the window side of the negotiation channel the picker uses.
type Channel interface {
	Invoke(ctx context.Context, channel string, args any) (json.RawMessage, error)
	Send(channel string, payload any) error
}

type filter int

const (
	filterAll filter = iota
	filterScreens
	filterWindows
)

func (f filter) String() string {
	switch f {
	case filterScreens:
		return "screens"
	case filterWindows:
		return "windows"
	}
	return "all"
}

// SourcesMsg carries the result of get-screen-sources.
type SourcesMsg struct {
	Sources []capture.Source
	Err     error
}

// SelectedMsg reports that the selection was sent.
type SelectedMsg struct {
	ID  string
	Err error
}

// Model is the bubbletea model of the picker.
type Model struct {
	ctx     context.Context
	ch      Channel
	timeout time.Duration

	sources  []capture.Source
	filtered []capture.Source
	filter   filter
	cursor   int
	offset   int
	width    int
	height   int

	loading  bool
	err      error
	selected string
	quitting bool
}

// New creates a picker that talks over ch.
func New(ctx context.Context, ch Channel) Model {
	return Model{
		ctx:     ctx,
		ch:      ch,
		timeout: 10 * time.Second,
		width:   100,
		height:  24,
		loading: true,
	}
}

// Selected returns the chosen source id, or "" if the user quit.
func (m Model) Selected() string { return m.selected }

// Err returns the last channel error.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return m.fetch()
}

func (m Model) fetch() tea.Cmd {
	ctx, ch, timeout := m.ctx, m.ch, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		raw, err := ch.Invoke(ctx, ipc.ChannelGetScreenSources, nil)
		if err != nil {
			return SourcesMsg{Err: err}
		}
		var sources []capture.Source
		if err := json.Unmarshal(raw, &sources); err != nil {
			return SourcesMsg{Err: fmt.Errorf("picker: decode sources: %w", err)}
		}
		return SourcesMsg{Sources: sources}
	}
}

func (m Model) choose(id string) tea.Cmd {
	ch := m.ch
	return func() tea.Msg {
		return SelectedMsg{ID: id, Err: ch.Send(ipc.ChannelSelectScreenSource, id)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case SourcesMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err == nil {
			m.sources = msg.Sources
			m.applyFilter()
		}
		return m, nil

	case SelectedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.selected = msg.ID
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
			m.clampOffset()
		}

	case "home", "g":
		m.cursor = 0
		m.clampOffset()

	case "end", "G":
		m.cursor = max(0, len(m.filtered)-1)
		m.clampOffset()

	case "tab":
		m.filter = (m.filter + 1) % 3
		m.applyFilter()

	case "r":
		if !m.loading {
			m.loading = true
			m.err = nil
			return m, m.fetch()
		}

	case "enter":
		if len(m.filtered) > 0 {
			return m, m.choose(m.filtered[m.cursor].ID)
		}
	}
	return m, nil
}

func (m *Model) applyFilter() {
	m.filtered = nil
	for _, s := range m.sources {
		switch m.filter {
		case filterScreens:
			if s.Kind() != capture.KindScreen {
				continue
			}
		case filterWindows:
			if s.Kind() != capture.KindWindow {
				continue
			}
		}
		m.filtered = append(m.filtered, s)
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
	m.clampOffset()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Choose what to record"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  [%s]  %d sources", m.filter, len(m.filtered))))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(pad("Kind", 7)+" "+pad("Name", m.nameWidth())) + "\n")

	visible := m.visibleRows()
	end := min(m.offset+visible, len(m.filtered))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.filtered[i], i == m.cursor) + "\n")
	}
	for i := end - m.offset; i < visible; i++ {
		b.WriteString("\n")
	}

	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("  loading sources..."))
	case m.err != nil:
		b.WriteString(errorStyle.Render("  " + m.err.Error()))
	default:
		b.WriteString(helpStyle.Render("  Enter: record  Tab: filter  r: refresh  q: quit"))
	}
	return b.String()
}

func (m Model) renderRow(s capture.Source, selected bool) string {
	kind, tag := "window", windowTag
	if s.Kind() == capture.KindScreen {
		kind, tag = "screen", screenTag
	}
	name := pad(s.Name, m.nameWidth())
	if selected {
		row := selectedStyle.Render(pad(kind, 7) + " " + name)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, row)
	}
	return " " + tag.Render(pad(kind, 7)) + " " + name
}

func (m Model) nameWidth() int {
	return max(20, m.width-12)
}

func (m Model) visibleRows() int {
	return max(1, m.height-4)
}

func (m *Model) clampOffset() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}
