package model

import "time"

// Server-side test session states
const (
	TestStatusInProgress = "in_progress"
	TestStatusCompleted  = "completed"
	TestStatusExpired    = "expired"
)

// DefaultTestDuration is assumed when the server does not report a start time
const DefaultTestDuration = time.Hour

// SessionQuestion is one entry of a test session. The question body is
// embedded by the server under questionId.
type SessionQuestion struct {
	ID       string   `json:"id"`
	Question Question `json:"questionId"`
}

// Key returns the identifier answers are recorded under
func (q SessionQuestion) Key() string {
	if q.ID != "" {
		return q.ID
	}
	return q.Question.ID
}

// Text returns the question text
func (q SessionQuestion) Text() string {
	return q.Question.QuestionText
}

// Options returns the answer options
func (q SessionQuestion) Options() []string {
	return q.Question.Options
}

// Answer is the selected option for one question of a session
type Answer struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"selectedOptionIndex"`
}

// TestSession is a single attempt at a timed test as reported by the server
type TestSession struct {
	SessionID string            `json:"sessionId"`
	Status    string            `json:"status,omitempty"`
	StartTime *time.Time        `json:"startTime,omitempty"`
	EndTime   time.Time         `json:"endTime"`
	Questions []SessionQuestion `json:"questions"`
	Answers   []Answer          `json:"answers,omitempty"`
	Score     *float64          `json:"score,omitempty"`
}

// Duration returns the full length of the session window
func (s *TestSession) Duration() time.Duration {
	if s.StartTime == nil || !s.EndTime.After(*s.StartTime) {
		return DefaultTestDuration
	}
	return s.EndTime.Sub(*s.StartTime)
}

// IsCompleted returns true if the server has finalized the session
func (s *TestSession) IsCompleted() bool {
	return s.Status == TestStatusCompleted
}

// HistoryEntry is a finished session in the test history
type HistoryEntry struct {
	SessionID string    `json:"sessionId,omitempty"`
	Date      time.Time `json:"date"`
	Score     float64   `json:"score"`
	Status    string    `json:"status"`
}
