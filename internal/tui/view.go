package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/quizdesk/internal/testsession"
)

// View renders the UI
func (m Model) View() string {
	switch m.mode {
	case ModeGuard:
		return m.center(m.spinner.View() + " Checking authentication...")
	case ModeLoading:
		return m.center(m.spinner.View() + " Loading test...")
	case ModeRedirect:
		if m.outcome.Redirect != nil {
			return m.center("Redirecting to " + m.outcome.Redirect.URL())
		}
		return ""
	case ModeError:
		return m.center(ErrorStyle.Render("Could not load the test."))
	case ModeDone:
		return m.center(m.renderDone())
	}

	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	body := m.renderQuestion()
	statusBar := m.renderStatusBar()

	mainContent := lipgloss.JoinVertical(lipgloss.Left, header, body)
	bodyHeight := m.height - lipgloss.Height(statusBar)

	if m.mode == ModeConfirm {
		mainContent = lipgloss.Place(
			m.width, bodyHeight,
			lipgloss.Center, lipgloss.Center,
			m.renderConfirmModal(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	if m.mode == ModeHelp {
		mainContent = m.renderHelp()
	}

	mainContent = lipgloss.NewStyle().Height(bodyHeight).Render(mainContent)
	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) center(s string) string {
	if m.width == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m Model) renderHeader() string {
	v := m.machine.View()
	c := m.machine.Countdown(m.opts.Now())

	title := HeaderStyle.Render("quizdesk · Test " + truncate(v.SessionID, 24))
	timer := CountdownStyle(c.Band()).Render("Time Remaining " + c.Text())

	bar := m.bar
	bar.FullColor = string(BandColor(c.Band()))
	indicators := bar.ViewAs(c.Progress())
	if c.Warning() {
		indicators += " " + lipgloss.NewStyle().Foreground(BandRedColor).Bold(true).Render("⚠")
	}
	if c.Expired() {
		indicators += " " + TimesUpStyle.Render("Time's Up!")
	}

	right := lipgloss.JoinHorizontal(lipgloss.Center, timer, "  ", indicators)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		return lipgloss.JoinVertical(lipgloss.Left, title, right)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, strings.Repeat(" ", gap), right)
}

func (m Model) renderQuestion() string {
	v := m.machine.View()
	if len(v.Questions) == 0 {
		return QuestionStyle.Render("No questions.")
	}
	q := v.Questions[v.Cursor]
	chosen, answered := v.Answers[q.Key()]

	var s string
	s += HelpStyle.Render(fmt.Sprintf("Question %d of %d", v.Cursor+1, len(v.Questions))) + "\n\n"
	s += lipgloss.NewStyle().Bold(true).Render(wrap(q.Text(), clamp(m.width-8, 20, 100))) + "\n\n"

	for i, opt := range q.Options() {
		marker := "○"
		if answered && chosen == i {
			marker = OptionChosenStyle.Render("●")
		}
		cursor := "  "
		style := OptionStyle
		if i == m.optCursor {
			cursor = "❯ "
			style = OptionCursorStyle
		}
		line := fmt.Sprintf("%s%s %d. %s", cursor, marker, i+1, truncate(opt, clamp(m.width-14, 10, 120)))
		s += style.Render(line) + "\n"
	}

	s += "\n" + m.renderNavigator(v)
	return QuestionStyle.Render(s)
}

// renderNavigator shows one cell per question: answered, current or open
func (m Model) renderNavigator(v testsession.View) string {
	var cells []string
	for i, q := range v.Questions {
		_, ok := v.Answers[q.Key()]
		cell := "·"
		if ok {
			cell = "■"
		}
		if i == v.Cursor {
			cell = lipgloss.NewStyle().Foreground(Primary).Bold(true).Render("[" + cell + "]")
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, " ")
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.submitting:
		left = m.spinner.View() + " " + m.message
	case m.message != "":
		left = ErrorStyle.Render(m.message)
	default:
		left = m.machine.Summary().String()
	}
	help := HelpStyle.Render("←/→ question  ↑/↓ option  enter choose  S submit  ? help  q quit")
	return StatusBarStyle.Width(m.width).Render(left + "  " + help)
}

func (m Model) renderConfirmModal() string {
	summary := m.machine.Summary()
	var s string
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Submit test?") + "\n\n"
	s += summary.String() + ".\n"
	if summary.Answered < summary.Total {
		s += HelpStyle.Render("Unanswered questions will be marked wrong.") + "\n"
	}
	s += "\n" + HelpStyle.Render("y confirm · n cancel")
	return ModalStyle.Render(s)
}

func (m Model) renderDone() string {
	v := m.machine.View()
	var s string
	if m.message != "" {
		s += m.message + "\n\n"
	} else {
		s += lipgloss.NewStyle().Bold(true).Foreground(BandGreenColor).Render("✓ Test submitted") + "\n\n"
	}
	if v.Result != nil {
		if v.Result.Message != "" {
			s += v.Result.Message + "\n"
		}
		if v.Result.Score != nil {
			s += fmt.Sprintf("Score: %.1f\n", *v.Result.Score)
		}
	}
	s += "\n" + HelpStyle.Render("See your results with: quizdesk test history") + "\n"
	s += HelpStyle.Render("Press any key to exit")
	return s
}

func (m Model) renderHelp() string {
	var s string
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Keys") + "\n\n"
	for _, b := range []struct{ k, d string }{
		{keys.Prev.Help().Key, keys.Prev.Help().Desc},
		{keys.Next.Help().Key, keys.Next.Help().Desc},
		{keys.Up.Help().Key, keys.Up.Help().Desc},
		{keys.Down.Help().Key, keys.Down.Help().Desc},
		{keys.Select.Help().Key, keys.Select.Help().Desc},
		{"1-9", "choose option by number"},
		{keys.Submit.Help().Key, keys.Submit.Help().Desc},
		{keys.Quit.Help().Key, keys.Quit.Help().Desc + " (answers are saved)"},
	} {
		s += fmt.Sprintf("  %-8s %s\n", b.k, b.d)
	}
	s += "\n" + HelpStyle.Render("Press any key to return")
	return QuestionStyle.Render(s)
}
