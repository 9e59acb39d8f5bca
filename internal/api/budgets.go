package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"finflare/internal/core"
)

// Budgets read from the backend are normalized with Budget.Derive.

func (c *Client) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	return c.budgets(ctx, "/budgets")
}

func (c *Client) ActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	return c.budgets(ctx, "/budgets/active")
}

func (c *Client) BudgetAlerts(ctx context.Context) ([]core.Budget, error) {
	return c.budgets(ctx, "/budgets/alerts")
}

func (c *Client) budgets(ctx context.Context, path string) ([]core.Budget, error) {
	var out budgetPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return core.DeriveAll(out), nil
}

// budgetPage decodes either a bare array or a paged body whose items are
// under "content", as GET /budgets returns.
type budgetPage []core.Budget

func (p *budgetPage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = nil
		return nil
	}
	if b[0] == '[' {
		var list []core.Budget
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}
	var page struct {
		Content []core.Budget `json:"content"`
	}
	if err := json.Unmarshal(b, &page); err != nil {
		return err
	}
	*p = page.Content
	return nil
}

func (c *Client) CreateBudget(ctx context.Context, req core.BudgetRequest) (core.Budget, error) {
	return c.budget(ctx, http.MethodPost, "/budgets", req)
}

func (c *Client) UpdateBudget(ctx context.Context, id int64, req core.BudgetRequest) (core.Budget, error) {
	return c.budget(ctx, http.MethodPut, fmt.Sprintf("/budgets/%d", id), req)
}

func (c *Client) ToggleBudgetAlert(ctx context.Context, id int64) (core.Budget, error) {
	return c.budget(ctx, http.MethodPost, fmt.Sprintf("/budgets/%d/toggle-alert", id), nil)
}

// ResetBudget zeroes the spent amount of a budget.
func (c *Client) ResetBudget(ctx context.Context, id int64) (core.Budget, error) {
	return c.budget(ctx, http.MethodPost, fmt.Sprintf("/budgets/%d/reset", id), nil)
}

func (c *Client) DeleteBudget(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/budgets/%d", id), nil, nil)
}

func (c *Client) budget(ctx context.Context, method, path string, body any) (core.Budget, error) {
	var out core.Budget
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return core.Budget{}, err
	}
	out.Derive()
	return out, nil
}
