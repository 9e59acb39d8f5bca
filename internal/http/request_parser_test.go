package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflare/internal/core"
)

func validExpenseValues() url.Values {
	return url.Values{
		"description":   {"Coffee beans"},
		"amount":        {"12.50"},
		"category":      {"FOOD_DINING"},
		"paymentMethod": {"CREDIT_CARD"},
		"expenseDate":   {"2024-06-15"},
	}
}

func TestExpenseForm_Expense(t *testing.T) {
	today := core.NewDate(2024, 6, 20)

	t.Run("valid form", func(t *testing.T) {
		e, err := bindExpenseForm(validExpenseValues()).Expense(today)
		require.NoError(t, err)
		assert.Equal(t, "Coffee beans", e.Description)
		assert.True(t, decimal.RequireFromString("12.50").Equal(e.Amount))
		assert.Equal(t, core.Category("FOOD_DINING"), e.Category)
		assert.Equal(t, core.CreditCard, e.PaymentMethod)
		assert.Equal(t, "2024-06-15", e.Date.String())
		assert.Equal(t, core.SourceManual, e.Source)
	})

	t.Run("date defaults to today", func(t *testing.T) {
		v := validExpenseValues()
		v.Del("expenseDate")
		e, err := bindExpenseForm(v).Expense(today)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-20", e.Date.String())
	})

	tests := []struct {
		name    string
		mutate  func(url.Values)
		field   string
		message string
	}{
		{"missing category", func(v url.Values) { v.Del("category") }, "category", "Category is required"},
		{"missing description", func(v url.Values) { v.Set("description", "   ") }, "description", "Description is required"},
		{"missing payment method", func(v url.Values) { v.Del("paymentMethod") }, "paymentMethod", "Payment method is required"},
		{"bad amount", func(v url.Values) { v.Set("amount", "abc") }, "amount", "Please enter a valid amount"},
		{"zero amount", func(v url.Values) { v.Set("amount", "0") }, "amount", "Please enter a valid amount"},
		{"unknown category", func(v url.Values) { v.Set("category", "YACHTS") }, "category", "Unknown category"},
		{"bad date", func(v url.Values) { v.Set("expenseDate", "15/06/2024") }, "expenseDate", "Expense date must be a date (YYYY-MM-DD)"},
		{"long description", func(v url.Values) { v.Set("description", strings.Repeat("x", 256)) }, "description", "Description must be at most 255 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validExpenseValues()
			tt.mutate(v)
			_, err := bindExpenseForm(v).Expense(today)
			var fe *FormError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Equal(t, tt.message, fe.Message)
		})
	}
}

func TestBudgetForm_Request(t *testing.T) {
	base := url.Values{
		"category":     {"GROCERIES"},
		"budgetAmount": {"400"},
		"period":       {"monthly"},
		"startDate":    {"2024-06-01"},
		"endDate":      {"2024-06-30"},
		"alertEnabled": {"on"},
	}

	req, err := bindBudgetForm(base).Request()
	require.NoError(t, err)
	assert.Equal(t, core.PeriodMonthly, req.Period)
	assert.Equal(t, core.DefaultAlertThreshold, req.AlertThreshold)
	assert.True(t, req.AlertEnabled)

	bad := url.Values{}
	for k, v := range base {
		bad[k] = v
	}
	bad.Set("alertThreshold", "150")
	_, err = bindBudgetForm(bad).Request()
	var fe *FormError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "alertThreshold", fe.Field)

	bad.Set("alertThreshold", "80")
	bad.Set("period", "DAILY")
	_, err = bindBudgetForm(bad).Request()
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "period", fe.Field)
}

func TestInvestmentForm_Investment(t *testing.T) {
	now := time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)
	v := url.Values{
		"symbol":        {"aapl"},
		"name":          {"Apple"},
		"type":          {"stock"},
		"quantity":      {"10"},
		"purchasePrice": {"150"},
		"currentPrice":  {"180"},
	}

	inv, err := bindInvestmentForm(v).Investment(now)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", inv.Symbol)
	assert.True(t, decimal.NewFromInt(1500).Equal(inv.TotalInvestment))
	assert.True(t, decimal.NewFromInt(1800).Equal(inv.CurrentValue))
	assert.True(t, decimal.NewFromInt(300).Equal(inv.ProfitLoss))

	v.Set("quantity", "1.5")
	_, err = bindInvestmentForm(v).Investment(now)
	var fe *FormError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "quantity", fe.Field)
}

func TestBindRegistration(t *testing.T) {
	v := url.Values{
		"username":        {"newuser"},
		"email":           {"new@example.com"},
		"password":        {"secret123"},
		"confirmPassword": {"secret123"},
	}
	reg, err := bindRegistration(v)
	require.NoError(t, err)
	assert.Equal(t, "newuser", reg.Username)

	v.Set("confirmPassword", "other")
	_, err = bindRegistration(v)
	assert.EqualError(t, err, "Passwords do not match")

	v.Set("email", "not-an-email")
	_, err = bindRegistration(v)
	assert.EqualError(t, err, "Invalid email format")
}

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
	}{
		{"defaults", url.Values{}, 2024, 6},
		{"explicit", url.Values{"year": {"2023"}, "month": {"2"}}, 2023, 2},
		{"month out of range", url.Values{"month": {"13"}}, 2024, 6},
		{"garbage", url.Values{"year": {"abc"}, "month": {"x"}}, 2024, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ParseMonthParams(tt.query, now)
			assert.Equal(t, tt.wantYear, p.Year)
			assert.Equal(t, tt.wantMonth, p.Month)
		})
	}
}

func TestParseForecastMonths(t *testing.T) {
	assert.Equal(t, core.DefaultForecastMonths, ParseForecastMonths(url.Values{}))
	assert.Equal(t, 6, ParseForecastMonths(url.Values{"months": {"6"}}))
	assert.Equal(t, 12, ParseForecastMonths(url.Values{"months": {"40"}}))
	assert.Equal(t, core.DefaultForecastMonths, ParseForecastMonths(url.Values{"months": {"-1"}}))
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(`{"command":"how much did I spend"}`))
		p := NewRequestBodyParser(r, 1024)
		require.NoError(t, p.Parse())
		assert.True(t, p.IsJSON())
		assert.Equal(t, "how much did I spend", p.Get("command"))
	})

	t.Run("form", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader("command=budget+status"))
		p := NewRequestBodyParser(r, 1024)
		require.NoError(t, p.Parse())
		assert.False(t, p.IsJSON())
		assert.Equal(t, "budget status", p.Get("command"))
	})

	t.Run("malformed json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(`{"command":`))
		p := NewRequestBodyParser(r, 1024)
		assert.Error(t, p.Parse())
	})
}

func TestNavigateTarget(t *testing.T) {
	assert.Equal(t, "/budgets", navigateTarget([]byte(`{"type":"NAVIGATE","target":"/budgets"}`)))
	assert.Empty(t, navigateTarget([]byte(`{"type":"NAVIGATE","target":"https://evil.example"}`)))
	assert.Empty(t, navigateTarget([]byte(`{"type":"NAVIGATE","target":"//evil.example"}`)))
	assert.Empty(t, navigateTarget([]byte(`{"type":"SPEAK"}`)))
	assert.Empty(t, navigateTarget(nil))
}
