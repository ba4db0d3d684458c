// Package testsession runs a single timed test attempt: loading it, recording
// answers, moving between questions and submitting.
package testsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/model"
)

// State of a test attempt
type State int

const (
	Loading State = iota
	Active
	Submitting
	Completed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	ErrNotActive       = errors.New("test is not active")
	ErrTimeUp          = errors.New("time is up")
	ErrUnknownQuestion = errors.New("question is not part of this test")
	ErrOptionRange     = errors.New("option out of range")
	ErrNoQuestions     = errors.New("test has no questions")
	ErrAnswersNotSaved = errors.New("answers not saved")
)

// API is the part of the client a test attempt needs
type API interface {
	StartTest(ctx context.Context, step int) (*model.TestSession, error)
	TestStatus(ctx context.Context, sessionID string) (*model.TestSession, error)
	SaveAnswers(ctx context.Context, sessionID string, answers []model.Answer) error
	SubmitTest(ctx context.Context, sessionID string) (*api.SubmitResult, error)
}

// Options tune a Machine
type Options struct {
	LockOnExpiry bool             // reject edits once the countdown reaches zero
	Now          func() time.Time // defaults to time.Now
}

// Summary counts answered questions
type Summary struct {
	Answered int
	Total    int
}

func (s Summary) String() string {
	return fmt.Sprintf("You answered %d out of %d questions", s.Answered, s.Total)
}

// View is a copy of the attempt for rendering
type View struct {
	State     State
	SessionID string
	Questions []model.SessionQuestion
	Cursor    int
	Answers   map[string]int
	EndTime   time.Time
	Duration  time.Duration
	LastError error
	Result    *api.SubmitResult
}

// Machine is the client-side state of one attempt. The server owns the end
// time and the graded result; local answers are a cache reconciled at submit.
type Machine struct {
	api   API
	opts  Options
	saver *saver

	mu        sync.Mutex
	state     State
	session   model.TestSession
	cursor    int
	answers   map[string]int
	lastErr   error
	result    *api.SubmitResult
	sessionID string
}

// New creates a Machine in the loading state
func New(a API, opts Options) *Machine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{api: a, opts: opts, answers: map[string]int{}, saver: newSaver(a.SaveAnswers)}
}

// Start opens a new attempt for step
func (m *Machine) Start(ctx context.Context, step int) error {
	ts, err := m.api.StartTest(ctx, step)
	if err != nil {
		m.fail(err)
		return err
	}
	return m.enter(ts, false)
}

// Load resumes an existing attempt, keeping the answers the server holds
func (m *Machine) Load(ctx context.Context, sessionID string) error {
	ts, err := m.api.TestStatus(ctx, sessionID)
	if err != nil {
		m.fail(err)
		return err
	}
	return m.enter(ts, true)
}

func (m *Machine) enter(ts *model.TestSession, keepAnswers bool) error {
	if len(ts.Questions) == 0 && !ts.IsCompleted() {
		m.fail(ErrNoQuestions)
		return ErrNoQuestions
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = *ts
	m.sessionID = ts.SessionID
	m.cursor = 0
	m.answers = map[string]int{}
	m.lastErr = nil
	if keepAnswers {
		for _, a := range ts.Answers {
			m.answers[a.QuestionID] = a.OptionIndex
		}
	}
	m.state = Active
	if ts.IsCompleted() {
		m.state = Completed
	}

	logger.Info("Test session loaded",
		logger.F("session_id", ts.SessionID),
		logger.F("questions", len(ts.Questions)),
		logger.F("state", m.state.String()),
	)
	return nil
}

func (m *Machine) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// Answer records optionIndex for questionID, replacing any earlier answer,
// and queues a save of the full answer set
func (m *Machine) Answer(questionID string, optionIndex int) error {
	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return ErrNotActive
	}
	if m.opts.LockOnExpiry && m.remainingLocked() == 0 {
		m.mu.Unlock()
		return ErrTimeUp
	}
	q, ok := m.questionLocked(questionID)
	if !ok {
		m.mu.Unlock()
		return ErrUnknownQuestion
	}
	if optionIndex < 0 || optionIndex >= len(q.Options()) {
		m.mu.Unlock()
		return ErrOptionRange
	}

	if prev, had := m.answers[questionID]; had && prev == optionIndex {
		m.mu.Unlock()
		return nil
	}
	m.answers[questionID] = optionIndex
	answers := m.answerListLocked()
	id := m.sessionID
	m.mu.Unlock()

	m.saver.enqueue(id, answers)
	return nil
}

// Select answers the question under the cursor
func (m *Machine) Select(optionIndex int) error {
	m.mu.Lock()
	if m.state != Active || len(m.session.Questions) == 0 {
		m.mu.Unlock()
		return ErrNotActive
	}
	id := m.session.Questions[m.cursor].Key()
	m.mu.Unlock()
	return m.Answer(id, optionIndex)
}

// Next moves to the following question; no-op on the last one
func (m *Machine) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < len(m.session.Questions)-1 {
		m.cursor++
	}
}

// Previous moves to the preceding question; no-op on the first one
func (m *Machine) Previous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor > 0 {
		m.cursor--
	}
}

// Summary reports answered against total
func (m *Machine) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	answered := 0
	for _, q := range m.session.Questions {
		if _, ok := m.answers[q.Key()]; ok {
			answered++
		}
	}
	return Summary{Answered: answered, Total: len(m.session.Questions)}
}

// Submit finalizes the attempt. Pending saves go out first, and if the server
// never accepted the latest answer set it is sent again; the server then
// grades what it has stored. On failure the attempt returns to active.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return ErrNotActive
	}
	m.state = Submitting
	m.lastErr = nil
	id := m.sessionID
	answers := m.answerListLocked()
	m.mu.Unlock()

	if err := m.saver.flush(ctx); err != nil {
		return m.submitFailed(err)
	}
	if m.saver.unsaved() != nil {
		logger.Info("Resending answers before submit", logger.F("session_id", id), logger.F("answers", len(answers)))
		m.saver.enqueue(id, answers)
		if err := m.saver.flush(ctx); err != nil {
			return m.submitFailed(err)
		}
		if err := m.saver.unsaved(); err != nil {
			if !errors.Is(err, ErrAnswersNotSaved) {
				err = fmt.Errorf("%w: %w", ErrAnswersNotSaved, err)
			}
			return m.submitFailed(err)
		}
	}

	res, err := m.api.SubmitTest(ctx, id)
	if err != nil {
		return m.submitFailed(err)
	}

	m.mu.Lock()
	m.state = Completed
	m.result = res
	m.mu.Unlock()
	logger.Info("Test submitted", logger.F("session_id", id))
	return nil
}

func (m *Machine) submitFailed(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Active
	m.lastErr = err
	logger.Warn("Test submit failed", logger.F("session_id", m.sessionID), logger.F("error", err))
	return err
}

// Poll refreshes the server view: the end time is adopted as reported and a
// server-side completion ends the attempt. Returns true if anything changed.
func (m *Machine) Poll(ctx context.Context) (bool, error) {
	m.mu.Lock()
	id := m.sessionID
	state := m.state
	m.mu.Unlock()
	if id == "" || state == Completed {
		return false, nil
	}

	ts, err := m.api.TestStatus(ctx, id)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	if !ts.EndTime.IsZero() && !ts.EndTime.Equal(m.session.EndTime) {
		m.session.EndTime = ts.EndTime
		changed = true
	}
	if ts.StartTime != nil {
		m.session.StartTime = ts.StartTime
	}
	if ts.Status != m.session.Status {
		m.session.Status = ts.Status
		changed = true
	}
	if ts.IsCompleted() && m.state == Active {
		m.state = Completed
		changed = true
	}
	return changed, nil
}

// Remaining is the time left at now
func (m *Machine) Remaining(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Remaining(m.session.EndTime, now)
}

// Countdown returns the display countdown at now
func (m *Machine) Countdown(now time.Time) Countdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewCountdown(m.session.EndTime, m.session.Duration(), now)
}

// Flush waits for queued answer saves
func (m *Machine) Flush(ctx context.Context) error {
	return m.saver.flush(ctx)
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns a copy of the attempt
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	answers := make(map[string]int, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	questions := make([]model.SessionQuestion, len(m.session.Questions))
	copy(questions, m.session.Questions)
	return View{
		State:     m.state,
		SessionID: m.sessionID,
		Questions: questions,
		Cursor:    m.cursor,
		Answers:   answers,
		EndTime:   m.session.EndTime,
		Duration:  m.session.Duration(),
		LastError: m.lastErr,
		Result:    m.result,
	}
}

func (m *Machine) remainingLocked() time.Duration {
	return Remaining(m.session.EndTime, m.opts.Now())
}

func (m *Machine) questionLocked(id string) (model.SessionQuestion, bool) {
	for _, q := range m.session.Questions {
		if q.Key() == id {
			return q, true
		}
	}
	return model.SessionQuestion{}, false
}

// answerListLocked lists answers in question order
func (m *Machine) answerListLocked() []model.Answer {
	out := make([]model.Answer, 0, len(m.answers))
	for _, q := range m.session.Questions {
		if idx, ok := m.answers[q.Key()]; ok {
			out = append(out, model.Answer{QuestionID: q.Key(), OptionIndex: idx})
		}
	}
	return out
}
