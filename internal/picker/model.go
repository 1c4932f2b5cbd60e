// Package picker is an interactive command picker built on Bubble Tea. It
// lists recent, frequent or predicted commands and narrows them with a
// fuzzy filter as the user types.
package picker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// debounceInterval is the delay after the last keystroke before fetching.
const debounceInterval = 80 * time.Millisecond

type pickerState int

const (
	stateIdle pickerState = iota
	stateLoading
	stateLoaded
	stateEmpty
	stateError
	stateCancelled
)

type fetchDoneMsg struct {
	requestID uint64
	items     []Item
	err       error
}

type debounceMsg struct {
	id uint64
}

// initMsg routes the first fetch through Update so its state changes stick.
type initMsg struct{}

// Model is the Bubble Tea model for the picker.
type Model struct {
	state     pickerState
	tabs      []Tab
	activeTab int
	items     []Item
	selection int // -1 when empty
	err       error

	input textinput.Model

	requestID   uint64
	debounceID  uint64
	provider    Provider
	cancelFetch context.CancelFunc

	width  int
	height int

	result string
}

// NewModel creates a picker over tabs. An empty tab list uses DefaultTabs.
func NewModel(tabs []Tab, provider Provider) Model {
	if len(tabs) == 0 {
		tabs = DefaultTabs()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "type to filter"
	ti.PromptStyle = queryStyle
	ti.Focus()

	return Model{
		state:     stateIdle,
		tabs:      tabs,
		selection: -1,
		input:     ti,
		provider:  provider,
	}
}

// WithQuery pre-fills the filter.
func (m Model) WithQuery(q string) Model {
	m.input.SetValue(q)
	return m
}

// Result returns the chosen value, or "" if nothing was chosen.
func (m Model) Result() string {
	return m.result
}

// IsCancelled reports whether the user dismissed the picker.
func (m Model) IsCancelled() bool {
	return m.state == stateCancelled
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg { return initMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case fetchDoneMsg:
		return m.handleFetchDone(msg), nil

	case debounceMsg:
		if msg.id != m.debounceID {
			return m, nil
		}
		return m, m.startFetch()

	case initMsg:
		return m, m.startFetch()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.state = stateCancelled
		m.cancelInflight()
		return m, tea.Quit

	case tea.KeyEnter:
		if m.selection >= 0 && m.selection < len(m.items) {
			m.result = m.items[m.selection].Value
		}
		m.cancelInflight()
		return m, tea.Quit

	case tea.KeyUp, tea.KeyCtrlP:
		if m.selection > 0 {
			m.selection--
		}
		return m, nil

	case tea.KeyDown, tea.KeyCtrlN:
		if m.selection < len(m.items)-1 {
			m.selection++
		}
		return m, nil

	case tea.KeyTab:
		if len(m.tabs) < 2 {
			return m, nil
		}
		m.activeTab = (m.activeTab + 1) % len(m.tabs)
		m.selection = -1
		return m, m.startFetch()

	case tea.KeyShiftTab:
		if len(m.tabs) < 2 {
			return m, nil
		}
		m.activeTab = (m.activeTab + len(m.tabs) - 1) % len(m.tabs)
		m.selection = -1
		return m, m.startFetch()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() == before {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.startDebounce())
}

func (m Model) handleFetchDone(msg fetchDoneMsg) Model {
	if msg.requestID != m.requestID {
		return m
	}

	if msg.err != nil {
		m.state = stateError
		m.err = msg.err
		m.items = nil
		m.selection = -1
		return m
	}

	m.items = msg.items
	if len(m.items) == 0 {
		m.state = stateEmpty
		m.selection = -1
		return m
	}
	m.state = stateLoaded
	m.selection = min(max(m.selection, 0), len(m.items)-1)
	return m
}

func (m *Model) startDebounce() tea.Cmd {
	m.debounceID++
	id := m.debounceID
	return tea.Tick(debounceInterval, func(time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// startFetch cancels any in-flight fetch and asks the provider for the
// current tab and query.
func (m *Model) startFetch() tea.Cmd {
	m.cancelInflight()
	m.requestID++
	m.state = stateLoading

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFetch = cancel

	req := Request{
		RequestID: m.requestID,
		Query:     m.input.Value(),
		TabID:     m.tabs[m.activeTab].ID,
		Limit:     m.listHeight(),
	}
	p := m.provider
	return func() tea.Msg {
		resp, err := p.Fetch(ctx, req)
		if err != nil {
			return fetchDoneMsg{requestID: req.RequestID, err: err}
		}
		return fetchDoneMsg{requestID: req.RequestID, items: resp.Items}
	}
}

func (m *Model) cancelInflight() {
	if m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelFetch = nil
	}
}

// listHeight is the number of list rows: the terminal minus tab bar,
// query line and status line.
func (m Model) listHeight() int {
	const chrome = 3
	if h := m.height - chrome; h >= 1 {
		return h
	}
	return 20
}

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	queryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.viewTabs())
	b.WriteRune('\n')
	b.WriteString(m.viewContent())
	b.WriteRune('\n')
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) viewTabs() string {
	parts := make([]string, len(m.tabs))
	for i, tab := range m.tabs {
		label := " " + tab.Label + " "
		if i == m.activeTab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = inactiveTabStyle.Render(label)
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) viewContent() string {
	switch m.state {
	case stateLoaded:
		return m.viewList()
	case stateEmpty:
		return dimStyle.Render("No matches")
	case stateError:
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case stateCancelled:
		return dimStyle.Render("Cancelled")
	default:
		return dimStyle.Render("Loading...")
	}
}

func (m Model) viewList() string {
	rows := min(len(m.items), m.listHeight())

	valueWidth := 0
	if m.width > 0 {
		// marker (2) + gap before detail (2) + detail column (12)
		valueWidth = max(m.width-16, 8)
	}

	lines := make([]string, rows)
	for i := 0; i < rows; i++ {
		it := m.items[i]
		value := it.Value
		if valueWidth > 0 {
			value = Pad(Truncate(value, valueWidth), valueWidth)
		}
		line := value
		if it.Detail != "" {
			line += "  " + dimStyle.Render(it.Detail)
		}
		if i == m.selection {
			lines[i] = selectedStyle.Render("> ") + selectedStyle.Render(line)
		} else {
			lines[i] = "  " + normalStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
