package api

import (
	"context"
	"fmt"
	"net/http"

	"finflare/internal/core"
)

func (c *Client) Achievements(ctx context.Context) ([]core.Achievement, error) {
	var out []core.Achievement
	err := c.do(ctx, http.MethodGet, "/achievements", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context) ([]core.LeaderboardEntry, error) {
	var out []core.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/achievements/leaderboard", nil, &out)
	return out, err
}

// Forecast predicts the next months, one entry per period; months <= 0 uses
// the default horizon.
func (c *Client) Forecast(ctx context.Context, months int) ([]core.FinancialForecast, error) {
	if months <= 0 {
		months = core.DefaultForecastMonths
	}
	var out []core.FinancialForecast
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/forecasting/predict/%d", months), nil, &out)
	return out, err
}

func (c *Client) ProcessVoice(ctx context.Context, command string) (core.VoiceReply, error) {
	var out core.VoiceReply
	err := c.do(ctx, http.MethodPost, "/voice/process", map[string]string{"command": command}, &out)
	return out, err
}

func (c *Client) Dashboard(ctx context.Context) (core.Dashboard, error) {
	var out core.Dashboard
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &out); err != nil {
		return core.Dashboard{}, err
	}
	out.Normalize()
	return out, nil
}
