package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/testsession"
)

// Mode represents the current screen
type Mode int

const (
	ModeGuard   Mode = iota // checking the session, nothing protected shown
	ModeLoading             // fetching the test
	ModeTest
	ModeConfirm
	ModeHelp
	ModeDone
	ModeRedirect
	ModeError
)

// Guard decides whether the test screen may be shown
type Guard interface {
	Check(ctx context.Context, path string) auth.GuardState
	Redirect() (auth.Redirect, bool)
}

// Loader opens the attempt, either starting a new one or resuming
type Loader func(ctx context.Context, m *testsession.Machine) error

// Options configure the test screen
type Options struct {
	Path         string // route the guard is checked for
	AutoSubmit   bool
	PollInterval time.Duration
	Now          func() time.Time
}

// Outcome is how the screen ended
type Outcome struct {
	Submitted bool
	Redirect  *auth.Redirect
	Err       error
}

// Model is the test-taking TUI model
type Model struct {
	guard   Guard
	machine *testsession.Machine
	load    Loader
	opts    Options

	// UI state
	width     int
	height    int
	mode      Mode
	optCursor int
	spinner   spinner.Model
	bar       progress.Model

	autoSubmitted bool
	submitting    bool
	outcome       Outcome
	message       string
}

// NewModel creates the test screen
func NewModel(guard Guard, machine *testsession.Machine, load Loader, opts Options) Model {
	logger.Info("Initializing test screen", logger.F("path", opts.Path))

	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return Model{
		guard:   guard,
		machine: machine,
		load:    load,
		opts:    opts,
		mode:    ModeGuard,
		spinner: sp,
		bar:     progress.New(progress.WithSolidFill(string(BandGreenColor)), progress.WithoutPercentage()),
	}
}

// Outcome reports how the screen ended
func (m Model) Outcome() Outcome {
	return m.outcome
}

// Mode returns the current screen
func (m Model) Mode() Mode {
	return m.mode
}

// syncCursor points the option cursor at the stored answer, or the first option
func (m *Model) syncCursor() {
	v := m.machine.View()
	m.optCursor = 0
	if len(v.Questions) == 0 {
		return
	}
	if idx, ok := v.Answers[v.Questions[v.Cursor].Key()]; ok {
		m.optCursor = idx
	}
}
