package overlay

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// DefaultStartDelay leaves the overlay on screen before loading begins.
	DefaultStartDelay = 300 * time.Millisecond
	// DefaultPollInterval is how often the percentage is read.
	DefaultPollInterval = 50 * time.Millisecond

	maxBarWidth = 60
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Padding(1, 2)
)

// ProgressFunc reports the loading percentage, 0 to 100.
type ProgressFunc func() int

// StartFunc kicks off loading once the overlay is visible.
type StartFunc func() error

// CompleteMsg is emitted once the percentage reaches 100.
type CompleteMsg struct{}

// FailedMsg ends the overlay with an error, for loads that abort after they
// started.
type FailedMsg struct {
	Err error
}

type startMsg struct{}

type pollMsg struct{}

type Option func(*Model)

func WithStartDelay(d time.Duration) Option {
	return func(m *Model) { m.startDelay = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithOnProgress registers a hook receiving progress as a fraction in [0, 1].
func WithOnProgress(fn func(float64)) Option {
	return func(m *Model) { m.onProgress = fn }
}

// Model is a loading screen: it starts the load after a short delay, shows
// the percentage until it reaches 100 and then hands over to the next model.
type Model struct {
	progress     ProgressFunc
	start        StartFunc
	next         tea.Model
	startDelay   time.Duration
	pollInterval time.Duration
	onProgress   func(float64)

	bar     progress.Model
	percent int
	started bool
	done    bool
	err     error
}

func New(progressFn ProgressFunc, start StartFunc, next tea.Model, opts ...Option) *Model {
	m := &Model{
		progress:     progressFn,
		start:        start,
		next:         next,
		startDelay:   DefaultStartDelay,
		pollInterval: DefaultPollInterval,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.bar.Width = maxBarWidth
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	if m.startDelay <= 0 {
		return func() tea.Msg { return startMsg{} }
	}
	return tea.Tick(m.startDelay, func(time.Time) tea.Msg {
		return startMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.bar.Width = min(maxBarWidth, max(10, msg.Width-8))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil

	case startMsg:
		if m.started {
			return m, nil
		}
		m.started = true
		if m.start != nil {
			if err := m.start(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
		return m, m.observe()

	case pollMsg:
		if m.done {
			return m, nil
		}
		return m, m.observe()

	case FailedMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case CompleteMsg:
		m.percent = 0
		if m.next == nil {
			return m, tea.Quit
		}
		return m.next, m.next.Init()
	}
	return m, nil
}

// observe reads the percentage and schedules the next read, or the hand-off.
func (m *Model) observe() tea.Cmd {
	p := min(100, max(0, m.progress()))
	m.percent = p
	if m.onProgress != nil {
		m.onProgress(float64(p) / 100)
	}
	if p >= 100 {
		m.done = true
		return func() tea.Msg { return CompleteMsg{} }
	}
	return tea.Tick(m.pollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

// Label is the text shown above the bar.
func (m *Model) Label() string {
	return fmt.Sprintf("Loading... %d%%", m.percent)
}

func (m *Model) Percent() int {
	return m.percent
}

func (m *Model) Err() error {
	return m.err
}

func (m *Model) View() string {
	if m.err != nil {
		return boxStyle.Render(errorStyle.Render("Loading failed: " + m.err.Error()))
	}
	return boxStyle.Render(labelStyle.Render(m.Label()) + "\n\n" + m.bar.ViewAs(float64(m.percent)/100))
}
