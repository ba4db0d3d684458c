package api

import (
	"context"
	"net/http"

	"github.com/existflow/quizdesk/internal/model"
)

const dashboardPath = "/report/dashboard/"

func (c *Client) dashboard(ctx context.Context, section string, out interface{}) error {
	hc, err := c.session()
	if err != nil {
		return err
	}
	_, err = c.do(ctx, hc, kindAuthed, http.MethodGet, dashboardPath+section, nil, nil, out)
	return err
}

func (c *Client) DashboardComplete(ctx context.Context) (*model.DashboardComplete, error) {
	var out model.DashboardComplete
	if err := c.dashboard(ctx, "complete", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var out model.DashboardStats
	if err := c.dashboard(ctx, "stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardTrends(ctx context.Context) ([]model.TrendPoint, error) {
	var out []model.TrendPoint
	if err := c.dashboard(ctx, "trends", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DashboardCompetencies(ctx context.Context) (*model.DashboardCompetencies, error) {
	var out model.DashboardCompetencies
	if err := c.dashboard(ctx, "competencies", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardDemographics(ctx context.Context) (*model.DashboardDemographics, error) {
	var out model.DashboardDemographics
	if err := c.dashboard(ctx, "demographics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DashboardPerformance(ctx context.Context) (*model.DashboardPerformance, error) {
	var out model.DashboardPerformance
	if err := c.dashboard(ctx, "performance", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TopPerformers(ctx context.Context) (*model.TopPerformers, error) {
	var out model.TopPerformers
	if err := c.dashboard(ctx, "top-performers", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
