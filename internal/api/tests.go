package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/existflow/quizdesk/internal/model"
)

// SubmitResult is what the server reports after grading a session
type SubmitResult struct {
	Message string
	Score   *float64
}

// StartTest opens a new timed session for step
func (c *Client) StartTest(ctx context.Context, step int) (*model.TestSession, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var ts model.TestSession
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodPost, "/tests/start", nil,
		map[string]int{"step": step}, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// TestStatus fetches the server view of a session
func (c *Client) TestStatus(ctx context.Context, sessionID string) (*model.TestSession, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var ts model.TestSession
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodGet, testPath(sessionID, ""), nil, nil, &ts); err != nil {
		return nil, err
	}
	if ts.SessionID == "" {
		ts.SessionID = sessionID
	}
	return &ts, nil
}

// SaveAnswers stores the complete answer set of a session
func (c *Client) SaveAnswers(ctx context.Context, sessionID string, answers []model.Answer) error {
	hc, err := c.session()
	if err != nil {
		return err
	}
	if answers == nil {
		answers = []model.Answer{}
	}
	_, err = c.do(ctx, hc, kindAuthed, http.MethodPost, testPath(sessionID, "/answer"), nil,
		map[string]interface{}{"answers": answers}, nil)
	return err
}

// SubmitTest finalizes a session. Only the session id is sent; the server
// grades whatever answers it has stored.
func (c *Client) SubmitTest(ctx context.Context, sessionID string) (*SubmitResult, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	env, err := c.do(ctx, hc, kindAuthed, http.MethodPost, testPath(sessionID, "/submit"), nil,
		map[string]string{"sessionId": sessionID}, &raw)
	if err != nil {
		return nil, err
	}

	res := &SubmitResult{Message: env.Message}
	var graded struct {
		Score *float64 `json:"score"`
	}
	if json.Unmarshal(raw, &graded) == nil {
		res.Score = graded.Score
	}
	return res, nil
}

// TestHistory lists the user's finished sessions
func (c *Client) TestHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var entries []model.HistoryEntry
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodGet, "/tests/history", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func testPath(sessionID, suffix string) string {
	return "/tests/" + url.PathEscape(sessionID) + suffix
}
