package core

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Dashboard is the precomputed aggregate served by /dashboard.
type Dashboard struct {
	TotalBalance         decimal.Decimal            `json:"totalBalance"`
	MonthlyIncome        decimal.Decimal            `json:"monthlyIncome"`
	MonthlyExpenses      decimal.Decimal            `json:"monthlyExpenses"`
	TotalSavings         decimal.Decimal            `json:"totalSavings"`
	CategorySpending     map[string]decimal.Decimal `json:"categorySpending"`
	RecentTransactions   Activities                 `json:"recentTransactions"`
	BudgetProgress       BudgetProgress             `json:"budgetProgress"`
	SpendingTrends       SpendingTrends             `json:"spendingTrends"`
	FinancialHealthScore int                        `json:"financialHealthScore"`
	Insights             []string                   `json:"insights"`
	BudgetAlerts         []Budget                   `json:"budgetAlerts"`
	LastUpdated          DateTime                   `json:"lastUpdated"`
}

type BudgetProgress struct {
	Budgets         []Budget        `json:"budgets"`
	TotalBudget     decimal.Decimal `json:"totalBudget"`
	TotalSpent      decimal.Decimal `json:"totalSpent"`
	OverallProgress float64         `json:"overallProgress"`
}

type TrendPoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type SpendingTrends struct {
	MonthlyData            []TrendPoint    `json:"monthlyData"`
	AverageMonthlySpending decimal.Decimal `json:"averageMonthlySpending"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Date        Date            `json:"date"`
}

// Activities decodes either a bare array or an {"activities": [...]} envelope.
type Activities []Activity

func (a *Activities) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = nil
		return nil
	}
	if b[0] == '[' {
		var list []Activity
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*a = list
		return nil
	}
	var env struct {
		Activities []Activity `json:"activities"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	*a = env.Activities
	return nil
}

// CategorySlices maps the category spending into labeled, colored chart
// entries sorted by amount, largest first.
func (d Dashboard) CategorySlices() []CategoryAmount {
	return shapeSlices(d.CategorySpending)
}

// Normalize re-derives the budget fields of every budget the dashboard carries.
func (d *Dashboard) Normalize() {
	DeriveAll(d.BudgetProgress.Budgets)
	DeriveAll(d.BudgetAlerts)
}

// HealthRating names a financial health score band.
func HealthRating(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}
