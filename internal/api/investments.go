package api

import (
	"context"
	"fmt"
	"net/http"

	"finflare/internal/core"
)

func (c *Client) ListInvestments(ctx context.Context) ([]core.Investment, error) {
	var out []core.Investment
	err := c.do(ctx, http.MethodGet, "/investments", nil, &out)
	return out, err
}

func (c *Client) CreateInvestment(ctx context.Context, inv core.Investment) (core.Investment, error) {
	var out core.Investment
	err := c.do(ctx, http.MethodPost, "/investments", inv, &out)
	return out, err
}

func (c *Client) UpdateInvestment(ctx context.Context, id int64, inv core.Investment) (core.Investment, error) {
	var out core.Investment
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/investments/%d", id), inv, &out)
	return out, err
}

func (c *Client) DeleteInvestment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/investments/%d", id), nil, nil)
}

func (c *Client) PortfolioSummary(ctx context.Context) (core.PortfolioSummary, error) {
	var out core.PortfolioSummary
	err := c.do(ctx, http.MethodGet, "/investments/portfolio/summary", nil, &out)
	return out, err
}
