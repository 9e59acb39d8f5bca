package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflare/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)
	_, err = New("://nope")
	assert.Error(t, err)
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.ListExpenses(WithToken(context.Background(), "tok-123"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "/api/expenses", gotPath)

	_, err = c.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "no token in context means no Authorization header")
}

func TestUnauthorizedIsTypedForEveryMethod(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Full authentication is required"}`)
	})
	ctx := WithToken(context.Background(), "stale")

	calls := map[string]func() error{
		"dashboard":    func() error { _, err := c.Dashboard(ctx); return err },
		"expenses":     func() error { _, err := c.ListExpenses(ctx); return err },
		"delete":       func() error { return c.DeleteExpense(ctx, 1) },
		"budgets":      func() error { _, err := c.ActiveBudgets(ctx); return err },
		"investments":  func() error { _, err := c.PortfolioSummary(ctx); return err },
		"achievements": func() error { _, err := c.Leaderboard(ctx); return err },
		"forecast":     func() error { _, err := c.Forecast(ctx, 0); return err },
		"voice":        func() error { _, err := c.ProcessVoice(ctx, "hi"); return err },
		"validate":     func() error { _, err := c.ValidateToken(ctx); return err },
		"ocr": func() error {
			_, err := c.ScanReceipt(ctx, "r.png", strings.NewReader("img"))
			return err
		},
	}
	for name, call := range calls {
		err := call()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnauthorized), "%s: %v", name, err)
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr), name)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Full authentication is required", apiErr.Message)
	}
}

func TestErrorMessagesSurface(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/signin":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
		case "/api/expenses/9":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `<html>boom</html>`)
		}
	})
	ctx := context.Background()

	_, err := c.Login(ctx, core.Credentials{Username: "u", Password: "p"})
	assert.Equal(t, "Bad credentials", MessageOf(err, "Login failed"))
	assert.False(t, errors.Is(err, ErrUnauthorized))

	_, err = c.GetExpense(ctx, 9)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "fallback", MessageOf(err, "fallback"))

	_, err = c.ListInvestments(ctx)
	assert.Equal(t, "fallback", MessageOf(err, "fallback"), "html bodies are not messages")
	assert.Equal(t, "fallback", MessageOf(errors.New("network"), "fallback"))
}

func TestLoginAndRegister(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/api/auth/signin":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "alice", body["username"])
			_, _ = io.WriteString(w, `{"accessToken":"jwt","tokenType":"Bearer","id":4,"username":"alice","email":"a@x.io","firstName":"Alice"}`)
		case "/api/auth/signup":
			assert.Equal(t, "a@x.io", body["email"])
			_, _ = io.WriteString(w, `{"message":"User registered successfully!"}`)
		}
	})
	ctx := context.Background()

	resp, err := c.Login(ctx, core.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	s := resp.Session("")
	assert.Equal(t, "jwt", s.Token)
	assert.Equal(t, int64(4), s.UserID)
	assert.Equal(t, "Alice", s.DisplayName())

	msg, err := c.Register(ctx, core.Registration{Username: "alice", Email: "a@x.io", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully!", msg)
}

func TestExpenseRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/expenses":
			var e core.Expense
			require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
			e.ID = 42
			_ = json.NewEncoder(w).Encode(e)
		case r.Method == http.MethodPut && r.URL.Path == "/api/expenses/42":
			var e core.Expense
			require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
			e.ID = 42
			_ = json.NewEncoder(w).Encode(e)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/expenses/42":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/expenses/category/GROCERIES":
			_, _ = io.WriteString(w, `[{"id":1,"amount":3.5,"description":"milk","category":"GROCERIES","expenseDate":"2025-02-01"}]`)
		case r.URL.Path == "/api/expenses/reports/monthly/2025/2":
			_, _ = io.WriteString(w, `{"month":"2025-02","totalExpenses":3.5,"categoryWiseExpenses":{"GROCERIES":3.5}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	in := core.Expense{Amount: decimal.RequireFromString("9.99"), Description: "Pizza", Category: core.FoodDining, PaymentMethod: core.Cash}
	created, err := c.CreateExpense(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.True(t, created.Amount.Equal(in.Amount))

	created.Description = "Pizza night"
	updated, err := c.UpdateExpense(ctx, 42, created)
	require.NoError(t, err)
	assert.Equal(t, "Pizza night", updated.Description)

	require.NoError(t, c.DeleteExpense(ctx, 42))

	list, err := c.ExpensesByCategory(ctx, core.Groceries)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2025-02-01", list[0].Date.String())

	report, err := c.MonthlyReport(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", report.Breakdown()[0].Label)
}

func TestScanReceiptSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("receipt")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "receipt.jpg", header.Filename)
		assert.Equal(t, "jpeg-bytes", string(data))
		_, _ = io.WriteString(w, `{"description":"Corner Store","amount":12.40,"category":"GROCERIES"}`)
	})

	scan, err := c.ScanReceipt(context.Background(), "receipt.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, core.Groceries, scan.Category)
	assert.True(t, scan.Amount.Equal(decimal.RequireFromString("12.4")))
}

func TestBudgetsAreNormalized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/budgets/active":
			// isOverBudget disagrees with the amounts on purpose.
			_, _ = io.WriteString(w, `[{"id":1,"category":"TRAVEL","budgetAmount":100,"spentAmount":150,"isOverBudget":false,"alertEnabled":true,"alertThreshold":80}]`)
		case "/api/budgets/1/toggle-alert", "/api/budgets/1/reset":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = io.WriteString(w, `{"id":1,"category":"TRAVEL","budgetAmount":100,"spentAmount":0}`)
		}
	})
	ctx := context.Background()

	budgets, err := c.ActiveBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].OverBudget)
	assert.True(t, budgets[0].ShouldAlert)
	assert.Equal(t, 150.0, budgets[0].SpentPercentage)

	reset, err := c.ResetBudget(ctx, 1)
	require.NoError(t, err)
	assert.False(t, reset.OverBudget)
	assert.Equal(t, core.DefaultAlertThreshold, reset.AlertThreshold)

	_, err = c.ToggleBudgetAlert(ctx, 1)
	require.NoError(t, err)
}

func TestListBudgetsAcceptsPagedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"page", `{"content":[{"id":1,"category":"TRAVEL","budgetAmount":100,"spentAmount":120},{"id":2,"category":"GROCERIES","budgetAmount":400,"spentAmount":100}],"totalElements":2,"number":0,"size":20}`, 2},
		{"array", `[{"id":1,"category":"TRAVEL","budgetAmount":100,"spentAmount":120}]`, 1},
		{"empty page", `{"content":[],"totalElements":0}`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/budgets", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})
			budgets, err := c.ListBudgets(context.Background())
			require.NoError(t, err)
			require.Len(t, budgets, tt.want)
			if tt.want > 0 {
				assert.Equal(t, core.Category("TRAVEL"), budgets[0].Category)
				assert.True(t, budgets[0].OverBudget, "paged budgets are normalized too")
			}
		})
	}
}

func TestForecastDefaultsToThreeMonths(t *testing.T) {
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `[
			{"period":"2026-11","predictedSavings":500,"overspendingRisk":0.2,"recommendations":["Cook at home"],"confidenceScore":0.8},
			{"period":"2026-12","predictedSavings":420.5,"overspendingRisk":0.3,"recommendations":[],"confidenceScore":0.7}
		]`)
	})

	f, err := c.Forecast(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/forecasting/predict/3", path)
	require.Len(t, f, 2)
	assert.Equal(t, "2026-11", f[0].Period)
	assert.Equal(t, []string{"Cook at home"}, f[0].Recommendations)
	assert.True(t, decimal.RequireFromString("420.5").Equal(f[1].PredictedSavings))

	_, err = c.Forecast(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "/api/forecasting/predict/6", path)
}

func TestVoiceAndDashboard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/voice/process":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "show my budget", body["command"])
			_, _ = io.WriteString(w, `{"response":"You have 2 budgets","action":{"type":"NAVIGATE","target":"budgets"}}`)
		case "/api/dashboard":
			_, _ = io.WriteString(w, `{"monthlyExpenses":250.5,"categorySpending":{"Food & Dining":200,"Transportation":50.5},"financialHealthScore":72,"insights":["Nice"],"budgetProgress":{"budgets":[{"budgetAmount":10,"spentAmount":20}]}}`)
		}
	})
	ctx := context.Background()

	reply, err := c.ProcessVoice(ctx, "show my budget")
	require.NoError(t, err)
	assert.Equal(t, "You have 2 budgets", reply.Response)
	assert.JSONEq(t, `{"type":"NAVIGATE","target":"budgets"}`, string(reply.Action))

	d, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 72, d.FinancialHealthScore)
	assert.Equal(t, core.FoodDining, d.CategorySlices()[0].Category)
	assert.True(t, d.BudgetProgress.Budgets[0].OverBudget)
}

func TestRedirectsAreNotFollowed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	_, err := c.ListBudgets(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusFound, apiErr.StatusCode)
}
