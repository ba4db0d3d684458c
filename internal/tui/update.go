package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/testsession"
)

const requestTimeout = 30 * time.Second

// tickMsg is sent every second to redraw the countdown
type tickMsg time.Time

// pollTickMsg asks for a server status poll
type pollTickMsg struct{}

type guardMsg struct{ state auth.GuardState }

type loadedMsg struct{ err error }

type pollMsg struct {
	changed bool
	err     error
}

type submitMsg struct{ err error }

// Init starts the guard check; nothing else runs until it passes
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.checkGuard())
}

func (m Model) checkGuard() tea.Cmd {
	guard, path := m.guard, m.opts.Path
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return guardMsg{state: guard.Check(ctx, path)}
	}
}

func (m Model) loadTest() tea.Cmd {
	load, machine := m.load, m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loadedMsg{err: load(ctx, machine)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m Model) doPoll() tea.Cmd {
	machine := m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		changed, err := machine.Poll(ctx)
		return pollMsg{changed: changed, err: err}
	}
}

func (m Model) submitCmd() tea.Cmd {
	machine := m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return submitMsg{err: machine.Submit(ctx)}
	}
}

// quitCmd flushes pending answer saves before quitting
func (m Model) quitCmd() tea.Cmd {
	machine := m.machine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := machine.Flush(ctx); err != nil {
			logger.Warn("Quit before answers were saved", logger.F("error", err))
		}
		return tea.Quit()
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.mode == ModeGuard || m.mode == ModeLoading || m.submitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case guardMsg:
		return m.handleGuard(msg.state)

	case loadedMsg:
		if msg.err != nil {
			logger.Error("Failed to load test", logger.F("error", msg.err))
			m.mode = ModeError
			m.outcome.Err = msg.err
			return m, tea.Quit
		}
		if m.machine.State() == testsession.Completed {
			m.mode = ModeDone
			m.message = "This test has already been completed."
			return m, nil
		}
		m.mode = ModeTest
		m.syncCursor()
		return m, tea.Batch(tickCmd(), m.pollCmd())

	case tickMsg:
		if m.mode == ModeDone {
			return m, nil
		}
		if cmd := m.maybeAutoSubmit(m.opts.Now()); cmd != nil {
			return m, tea.Batch(tickCmd(), cmd, m.spinner.Tick)
		}
		return m, tickCmd()

	case pollTickMsg:
		if m.mode == ModeDone || m.submitting {
			return m, m.pollCmd()
		}
		return m, m.doPoll()

	case pollMsg:
		if msg.err != nil {
			logger.Debug("Status poll failed", logger.F("error", msg.err))
			if errors.Is(msg.err, api.ErrTokenInvalid) {
				m.message = "Session expired while polling; answers are kept locally"
			}
		}
		if m.machine.State() == testsession.Completed && !m.submitting {
			m.mode = ModeDone
			m.message = "This test was completed on the server."
			return m, nil
		}
		return m, m.pollCmd()

	case submitMsg:
		m.submitting = false
		if msg.err != nil {
			m.mode = ModeTest
			m.message = fmt.Sprintf("Submit failed: %s. Press S to retry.", api.Message(msg.err, msg.err.Error()))
			return m, nil
		}
		m.mode = ModeDone
		m.outcome.Submitted = true
		m.message = ""
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clamp(msg.Width-30, 10, 40)
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeTest:
			return m.handleTestKeys(msg)
		case ModeConfirm:
			return m.handleConfirmKeys(msg)
		case ModeHelp:
			m.mode = ModeTest
			return m, nil
		case ModeDone:
			return m, tea.Quit
		default:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

func (m Model) handleGuard(state auth.GuardState) (tea.Model, tea.Cmd) {
	switch state {
	case auth.Authenticated:
		m.mode = ModeLoading
		return m, tea.Batch(m.loadTest(), m.spinner.Tick)
	case auth.Redirecting:
		r, _ := m.guard.Redirect()
		m.outcome.Redirect = &r
		m.mode = ModeRedirect
		logger.Info("Guard redirect", logger.F("to", r.URL()))
		return m, tea.Quit
	}
	return m, nil
}

// maybeAutoSubmit submits once when time runs out, if enabled
func (m *Model) maybeAutoSubmit(now time.Time) tea.Cmd {
	if !m.opts.AutoSubmit || m.autoSubmitted || m.submitting {
		return nil
	}
	if m.machine.State() != testsession.Active || m.machine.Remaining(now) > 0 {
		return nil
	}
	logger.Info("Time is up, submitting automatically")
	m.autoSubmitted = true
	m.submitting = true
	m.mode = ModeTest
	m.message = "Time's up! Submitting your answers..."
	return m.submitCmd()
}

// handleTestKeys handles key presses while answering
func (m Model) handleTestKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	v := m.machine.View()
	options := 0
	if len(v.Questions) > 0 {
		options = len(v.Questions[v.Cursor].Options())
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, m.quitCmd()

	case key.Matches(msg, keys.Up):
		if m.optCursor > 0 {
			m.optCursor--
		}

	case key.Matches(msg, keys.Down):
		if m.optCursor < options-1 {
			m.optCursor++
		}

	case key.Matches(msg, keys.Next):
		m.machine.Next()
		m.syncCursor()
		m.message = ""

	case key.Matches(msg, keys.Prev):
		m.machine.Previous()
		m.syncCursor()
		m.message = ""

	case key.Matches(msg, keys.Select):
		m.choose(m.optCursor)

	case key.Matches(msg, keys.Submit):
		m.mode = ModeConfirm

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	default:
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			idx := int(s[0] - '1')
			if idx < options {
				m.optCursor = idx
				m.choose(idx)
			}
		}
	}
	return m, nil
}

func (m *Model) choose(idx int) {
	err := m.machine.Select(idx)
	switch {
	case err == nil:
		m.message = ""
	case errors.Is(err, testsession.ErrTimeUp):
		m.message = "Time is up. Answers can no longer be changed."
	default:
		m.message = err.Error()
	}
}

func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Confirm):
		m.mode = ModeTest
		m.submitting = true
		m.message = "Submitting..."
		return m, tea.Batch(m.submitCmd(), m.spinner.Tick)
	case key.Matches(msg, keys.Cancel):
		m.mode = ModeTest
	}
	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
