// Package progress is a bubbletea view of a running execution: a progress
// bar over completed steps, per-step status, and a key to pause.
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/boltindex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/boltindex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/boltindex/internal/core/domain"
)

const (
	pollInterval = 150 * time.Millisecond
	maxBarWidth  = 60
)

// Engine is the part of the execution engine the view drives.
type Engine interface {
	Run(ctx context.Context, executionID string) (*domain.RunResult, error)
	Status(ctx context.Context, executionID string) (*domain.ExecutionState, error)
	Pause(ctx context.Context, executionID string) error
}

type (
	tickMsg   struct{}
	statusMsg struct {
		state *domain.ExecutionState
		err   error
	}
	doneMsg struct {
		result *domain.RunResult
		err    error
	}
	pauseMsg struct{ err error }
)

// Model runs one execution and renders its progress.
type Model struct {
	ctx         context.Context
	engine      Engine
	executionID string

	styles *styles.Styles
	keys   *keymap.KeyMap
	help   help.Model
	bar    progress.Model
	spin   spinner.Model

	state   *domain.ExecutionState
	result  *domain.RunResult
	err     error
	note    string
	pausing bool
	done    bool
}

// New creates a model for an initialized execution.
func New(ctx context.Context, engine Engine, executionID string) Model {
	st := styles.DefaultStyles()
	return Model{
		ctx:         ctx,
		engine:      engine,
		executionID: executionID,
		styles:      st,
		keys:        keymap.DefaultKeyMap(),
		help:        help.New(),
		bar:         st.ProgressBar(40),
		spin:        spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Init starts the run, the spinner and status polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.run(), tick())
}

func (m Model) run() tea.Cmd {
	return func() tea.Msg {
		res, err := m.engine.Run(m.ctx, m.executionID)
		return doneMsg{result: res, err: err}
	}
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		st, err := m.engine.Status(m.ctx, m.executionID)
		return statusMsg{state: st, err: err}
	}
}

func (m Model) pause() tea.Cmd {
	return func() tea.Msg {
		return pauseMsg{err: m.engine.Pause(m.ctx, m.executionID)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-4, maxBarWidth), 10)
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tea.Batch(m.poll(), tick())

	case statusMsg:
		if msg.err == nil && msg.state != nil && !m.done {
			m.state = msg.state
		}
		return m, nil

	case pauseMsg:
		if msg.err != nil && !m.done {
			m.note = msg.err.Error()
			m.pausing = false
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if msg.result != nil {
			st := msg.result.State
			m.state = &st
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Pause), key.Matches(msg, m.keys.Quit):
		if m.done {
			return m, tea.Quit
		}
		if m.pausing {
			return m, nil
		}
		// The run returns once the pause checkpoint is written, which quits.
		m.pausing = true
		m.note = ""
		return m, m.pause()
	}
	return m, nil
}

// Result returns the run's result once the program has exited.
func (m Model) Result() (*domain.RunResult, error) {
	return m.result, m.err
}

// Fraction is the share of steps that are finished.
func (m Model) Fraction() float64 {
	if m.state == nil || len(m.state.Plan.Steps) == 0 {
		return 0
	}
	finished := 0
	for _, s := range m.state.Steps {
		if s.Status == domain.StepCompleted || s.Status == domain.StepFailed {
			finished++
		}
	}
	return float64(finished) / float64(len(m.state.Plan.Steps))
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	title := m.executionID
	if m.state != nil && m.state.Plan.Name != "" {
		title = m.state.Plan.Name
	}
	b.WriteString(m.styles.Title.Render("boltindex") + " " + m.styles.Muted.Render(title) + "\n\n")

	switch {
	case m.done && m.result != nil:
		b.WriteString("Outcome: " + m.styles.Outcome(m.result.Outcome()) + "\n")
	case m.done:
		b.WriteString(m.styles.Error.Render("Run failed") + "\n")
	case m.pausing:
		b.WriteString(m.spin.View() + " " + m.styles.Warning.Render("Pausing, waiting for in-flight steps...") + "\n")
	default:
		b.WriteString(m.spin.View() + " Running\n")
	}
	b.WriteString(m.bar.ViewAs(m.Fraction()) + "\n\n")

	if m.state != nil {
		width := 0
		for _, s := range m.state.Plan.Steps {
			width = max(width, len(s.ID))
		}
		for _, s := range m.state.Plan.Steps {
			st := m.state.Steps[s.ID]
			status := domain.StepPending
			attempts := 0
			if st != nil {
				status = st.Status
				attempts = st.Attempts
			}
			line := fmt.Sprintf("  %-*s  %s", width, s.ID, m.styles.StepStatus(status))
			if attempts > 1 {
				line += m.styles.Muted.Render(fmt.Sprintf("  (attempt %d)", attempts))
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if m.note != "" {
		b.WriteString(m.styles.Warning.Render(m.note) + "\n")
	}
	if !m.done {
		b.WriteString(m.help.View(m.keys) + "\n")
	}
	return b.String()
}

// Run shows the view while the engine runs the execution and returns the
// run's result. Program options are passed to bubbletea.
func Run(ctx context.Context, engine Engine, executionID string, opts ...tea.ProgramOption) (*domain.RunResult, error) {
	final, err := tea.NewProgram(New(ctx, engine, executionID), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("progress view: unexpected model %T", final)
	}
	return m.Result()
}
