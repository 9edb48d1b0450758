package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starsquare/classpy"
	"github.com/starsquare/classpy/dump"
	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	rangeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type row struct {
	c     tree.Component
	depth int
}

type modelState int

const (
	stateBrowse modelState = iota
	stateGoto
)

type interactiveModel struct {
	root     tree.Component
	err      error
	loadErr  error
	expanded map[tree.Component]bool
	filename string
	rows     []row
	input    textinput.Model
	opts     classpy.Options
	selected int
	top      int
	height   int
	state    modelState
}

func newInteractiveModel(filename string, opts classpy.Options) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		opts:     opts,
		expanded: map[tree.Component]bool{},
		height:   20,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	root tree.Component
	err  error
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadFile
}

func (m *interactiveModel) loadFile() tea.Msg {
	data, err := load(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	root, err := classpy.Parse(data, m.opts)
	return loadedMsg{root: root, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 3)
		m.scroll()

	case loadedMsg:
		if msg.root == nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.root = msg.root
		m.err = msg.err
		m.expanded[m.root] = true
		m.rebuild()

	case tea.KeyMsg:
		if m.state == stateGoto {
			return m.updateGoto(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *interactiveModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.rows)-1 {
			m.selected++
		}

	case "pgup":
		m.selected = max(m.selected-m.height, 0)

	case "pgdown":
		m.selected = max(min(m.selected+m.height, len(m.rows)-1), 0)

	case "enter", " ":
		if c := m.current(); c != nil && len(c.Children()) > 0 {
			m.expanded[c] = !m.expanded[c]
			m.rebuild()
		}

	case "right", "l":
		if c := m.current(); c != nil && len(c.Children()) > 0 {
			m.expanded[c] = true
			m.rebuild()
		}

	case "left", "h":
		m.collapse()

	case "g":
		if m.root != nil {
			ti := textinput.New()
			ti.Placeholder = "0x1a or 26"
			ti.Prompt = "offset: "
			ti.Width = 20
			ti.Focus()
			m.input = ti
			m.state = stateGoto
			return m, textinput.Blink
		}
	}
	m.scroll()
	return m, nil
}

func (m *interactiveModel) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.state = stateBrowse
		return m, nil

	case "enter":
		m.state = stateBrowse
		m.gotoOffset(m.input.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// gotoOffset expands the path to the smallest component covering the
// offset and selects it.
func (m *interactiveModel) gotoOffset(text string) {
	off, err := strconv.ParseInt(strings.TrimSpace(text), 0, 64)
	if err != nil {
		m.err = errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("bad offset %q", text))
		return
	}
	path := tree.At(m.root, int(off))
	if path == nil {
		m.err = errors.NotFound(errors.PhaseLoad, "component at offset", text)
		return
	}
	for _, c := range path[:len(path)-1] {
		m.expanded[c] = true
	}
	m.rebuild()
	target := path[len(path)-1]
	for i, r := range m.rows {
		if r.c == target {
			m.selected = i
			break
		}
	}
	m.scroll()
}

// collapse closes the selected component, or moves to its parent when it is
// already closed.
func (m *interactiveModel) collapse() {
	c := m.current()
	if c == nil {
		return
	}
	if m.expanded[c] && c != m.root {
		m.expanded[c] = false
		m.rebuild()
		return
	}
	depth := m.rows[m.selected].depth
	for i := m.selected - 1; i >= 0; i-- {
		if m.rows[i].depth < depth {
			m.selected = i
			return
		}
	}
}

func (m *interactiveModel) current() tree.Component {
	if m.selected < len(m.rows) {
		return m.rows[m.selected].c
	}
	return nil
}

// rebuild flattens the expanded part of the tree into rows, keeping the
// selection on the same component when it is still visible.
func (m *interactiveModel) rebuild() {
	prev := m.current()
	m.rows = m.rows[:0]
	tree.Walk(m.root, func(c tree.Component, depth int) bool {
		m.rows = append(m.rows, row{c: c, depth: depth})
		return m.expanded[c]
	})
	m.selected = min(m.selected, max(len(m.rows)-1, 0))
	for i, r := range m.rows {
		if r.c == prev {
			m.selected = i
			break
		}
	}
}

func (m *interactiveModel) scroll() {
	if m.selected < m.top {
		m.top = m.selected
	}
	if m.selected >= m.top+m.height {
		m.top = m.selected - m.height + 1
	}
}

func (m *interactiveModel) View() string {
	if m.loadErr != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.loadErr))
	}
	if m.root == nil {
		return "Decoding..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("classpy"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	end := min(m.top+m.height, len(m.rows))
	for i := m.top; i < end; i++ {
		r := m.rows[i]
		marker := "  "
		if len(r.c.Children()) > 0 {
			marker = "+ "
			if m.expanded[r.c] {
				marker = "- "
			}
		}
		text := strings.Repeat("  ", r.depth) + marker + m.formatRow(r.c)
		if i == m.selected {
			b.WriteString(selectedStyle.Render(text))
		} else {
			b.WriteString(text)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if c := m.current(); c != nil {
		b.WriteString(rangeStyle.Render(fmt.Sprintf("bytes %#x..%#x (%d)", c.Offset(), c.Offset()+c.Length(), c.Length())))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	if m.state == stateGoto {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter jump • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • enter toggle • ←/→ collapse/expand • g go to offset • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatRow(c tree.Component) string {
	if c == m.rows[m.selected].c {
		return dump.Line(c)
	}
	line := rangeStyle.Render(fmt.Sprintf("[%#x+%d]", c.Offset(), c.Length()))
	if c.OutOfBand() {
		line += "@"
	}
	if c.Name() != "" {
		line += " " + nameStyle.Render(c.Name())
	}
	if c.Desc() != "" {
		line += ": " + c.Desc()
	}
	if !tree.Complete(c) {
		line += " " + errorStyle.Render("(incomplete)")
	}
	return line
}

func runInteractive(filename string, opts classpy.Options) error {
	if _, err := os.Stat(filename); err != nil {
		return errors.Load("stat "+filename, err)
	}
	p := tea.NewProgram(newInteractiveModel(filename, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
