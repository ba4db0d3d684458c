package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/existflow/quizdesk/internal/model"
)

// ListQuestions returns one page of the question bank
func (c *Client) ListQuestions(ctx context.Context, filter model.QuestionFilter) (*model.QuestionPage, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Level != "" {
		query.Set("level", filter.Level)
	}
	if filter.Competency != "" {
		query.Set("competency", filter.Competency)
	}
	if filter.SortBy != "" {
		query.Set("sortBy", filter.SortBy)
	}

	var page model.QuestionPage
	env, err := c.do(ctx, hc, kindAuthed, http.MethodGet, "/questions", query, nil, &page.Questions)
	if err != nil {
		return nil, err
	}
	if len(env.Pagination) > 0 {
		_ = json.Unmarshal(env.Pagination, &page.Pagination)
	}
	return &page, nil
}

// GetQuestion fetches a question by id
func (c *Client) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var q model.Question
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodGet, "/questions/"+url.PathEscape(id), nil, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuestion adds a question to the bank
func (c *Client) CreateQuestion(ctx context.Context, in model.QuestionInput) (*model.Question, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var q model.Question
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodPost, "/questions", nil, in, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateQuestion changes the non-nil fields of a question
func (c *Client) UpdateQuestion(ctx context.Context, id string, in model.QuestionInput) (*model.Question, error) {
	hc, err := c.session()
	if err != nil {
		return nil, err
	}
	var q model.Question
	if _, err := c.do(ctx, hc, kindAuthed, http.MethodPut, "/questions/"+url.PathEscape(id), nil, in, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteQuestion removes a question. Returns the server message.
func (c *Client) DeleteQuestion(ctx context.Context, id string) (string, error) {
	hc, err := c.session()
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, hc, kindAuthed, http.MethodDelete, "/questions/"+url.PathEscape(id), nil, nil, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}
