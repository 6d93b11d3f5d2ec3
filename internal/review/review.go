// Package review is the interactive statement review shown before a
// migration runs. Every generated statement starts approved; the user
// can exclude individual statements, inspect the sequence, and confirm
// or abort the run.
package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mydiff/mydiff/internal/generate"
)

// Result is returned when the user confirms the review.
type Result struct {
	Approved []generate.Statement
}

// entry is one statement row in the review list.
type entry struct {
	stmt     generate.Statement
	approved bool
	visible  bool // false when filtered out by search
}

// Model is the bubbletea model for statement review.
type Model struct {
	entries   []entry
	cursor    int
	filter    textinput.Model
	filtering bool

	done      bool
	cancelled bool
	width     int
	height    int

	visibleIdxs []int
}

// NewModel creates a review model with every statement approved.
func NewModel(stmts []generate.Statement) Model {
	entries := make([]entry, len(stmts))
	for i, s := range stmts {
		entries[i] = entry{stmt: s, approved: true, visible: true}
	}

	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64

	m := Model{
		entries: entries,
		filter:  filter,
		width:   100,
		height:  24,
	}
	m.recomputeVisible()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.cancelled = true
		m.done = true
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)

	case "down", "j":
		m.moveCursor(1)

	case "home":
		if len(m.visibleIdxs) > 0 {
			m.cursor = 0
		}

	case "end":
		if len(m.visibleIdxs) > 0 {
			m.cursor = len(m.visibleIdxs) - 1
		}

	case " ":
		m.toggleCurrent()

	case "a":
		m.setAll(true)

	case "n":
		m.setAll(false)

	case "/":
		m.filtering = true
		m.filter.SetValue("")
		m.filter.Focus()
		return m, textinput.Blink

	case "enter":
		if m.approvedCount() == 0 {
			return m, nil // an empty migration has nothing to confirm
		}
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.SetValue("")
		m.filter.Blur()
		m.applyFilter()
		return m, nil

	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Review Migration Statements") + "\n\n")

	if m.filtering {
		b.WriteString("  " + m.filter.View() + "\n\n")
	} else if m.filter.Value() != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  Filter: %s (/ to change)", m.filter.Value())) + "\n\n")
	}

	listHeight := m.height - 10
	if listHeight < 5 {
		listHeight = 5
	}

	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := start + listHeight
	if end > len(m.visibleIdxs) {
		end = len(m.visibleIdxs)
	}

	if len(m.visibleIdxs) == 0 {
		b.WriteString(dimStyle.Render("  No statements match the filter") + "\n")
	}

	for vi := start; vi < end; vi++ {
		idx := m.visibleIdxs[vi]
		e := m.entries[idx]

		checkbox := dimStyle.Render("[ ]")
		if e.approved {
			checkbox = successStyle.Render("[x]")
		}

		cursor := "  "
		lineStyle := lipgloss.NewStyle()
		if vi == m.cursor {
			cursor = highlightStyle.Render("> ")
			lineStyle = lineStyle.Bold(true)
		}

		sql := truncate(e.stmt.SQL, m.width-10)
		b.WriteString(fmt.Sprintf("%s%s %s\n", cursor, checkbox, lineStyle.Render(sql)))
	}

	if len(m.visibleIdxs) > listHeight {
		b.WriteString(dimStyle.Render(fmt.Sprintf("\n  Showing %d-%d of %d", start+1, end, len(m.visibleIdxs))) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(summaryStyle.Render(fmt.Sprintf("  %d of %d statements approved", m.approvedCount(), len(m.entries))) + "\n")

	excluded := len(m.entries) - m.approvedCount()
	if excluded > 0 {
		b.WriteString(warnStyle.Render("  ⚠ excluding statements can leave the target short of convergence") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  space toggle • a all • n none • / filter • enter confirm • q abort") + "\n")

	return b.String()
}

// Result returns the approved statements in sequence order, or nil if
// the review was cancelled.
func (m Model) Result() *Result {
	if m.cancelled {
		return nil
	}
	var approved []generate.Statement
	for _, e := range m.entries {
		if e.approved {
			approved = append(approved, e.stmt)
		}
	}
	if len(approved) == 0 {
		return nil
	}
	return &Result{Approved: approved}
}

// Done returns true if the model finished.
func (m Model) Done() bool {
	return m.done
}

// Cancelled returns true if the user aborted.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// --- internal helpers ---

func (m *Model) moveCursor(delta int) {
	if len(m.visibleIdxs) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = len(m.visibleIdxs) - 1
	}
}

func (m *Model) toggleCurrent() {
	if m.cursor >= len(m.visibleIdxs) {
		return
	}
	idx := m.visibleIdxs[m.cursor]
	m.entries[idx].approved = !m.entries[idx].approved
}

func (m *Model) setAll(approved bool) {
	for i := range m.entries {
		if m.entries[i].visible {
			m.entries[i].approved = approved
		}
	}
}

func (m *Model) approvedCount() int {
	n := 0
	for _, e := range m.entries {
		if e.approved {
			n++
		}
	}
	return n
}

func (m *Model) applyFilter() {
	needle := strings.ToLower(m.filter.Value())
	for i := range m.entries {
		m.entries[i].visible = needle == "" ||
			strings.Contains(strings.ToLower(m.entries[i].stmt.SQL), needle)
	}
	m.recomputeVisible()
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = len(m.visibleIdxs) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) recomputeVisible() {
	m.visibleIdxs = m.visibleIdxs[:0]
	for i := range m.entries {
		if m.entries[i].visible {
			m.visibleIdxs = append(m.visibleIdxs, i)
		}
	}
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// styles
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	summaryStyle   = lipgloss.NewStyle().Bold(true)
)
