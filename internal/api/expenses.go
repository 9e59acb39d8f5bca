package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"finflare/internal/core"
)

func (c *Client) ListExpenses(ctx context.Context) (core.ExpenseList, error) {
	var out core.ExpenseList
	err := c.do(ctx, http.MethodGet, "/expenses", nil, &out)
	return out, err
}

func (c *Client) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/expenses/%d", id), nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPost, "/expenses", e, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/expenses/%d", id), e, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), nil, nil)
}

func (c *Client) ExpensesByCategory(ctx context.Context, category core.Category) (core.ExpenseList, error) {
	var out core.ExpenseList
	err := c.do(ctx, http.MethodGet, "/expenses/category/"+url.PathEscape(string(category)), nil, &out)
	return out, err
}

func (c *Client) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	var out core.MonthlyReport
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/expenses/reports/monthly/%d/%d", year, month), nil, &out)
	return out, err
}

// ScanReceipt uploads a receipt image for OCR under the form field "receipt".
func (c *Client) ScanReceipt(ctx context.Context, filename string, file io.Reader) (core.ReceiptScan, error) {
	var out core.ReceiptScan
	err := c.upload(ctx, "/expenses/ocr", "receipt", filename, file, &out)
	return out, err
}
