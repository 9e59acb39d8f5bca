package core

import (
	"github.com/shopspring/decimal"
)

type BudgetPeriod string

const (
	PeriodWeekly    BudgetPeriod = "WEEKLY"
	PeriodMonthly   BudgetPeriod = "MONTHLY"
	PeriodQuarterly BudgetPeriod = "QUARTERLY"
	PeriodYearly    BudgetPeriod = "YEARLY"
)

// DefaultAlertThreshold is the spent percentage that raises an alert unless configured.
const DefaultAlertThreshold = 80

var BudgetPeriods = []BudgetPeriod{PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly}

func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

type Budget struct {
	ID              int64           `json:"id,omitempty"`
	Category        Category        `json:"category"`
	BudgetAmount    decimal.Decimal `json:"budgetAmount"`
	SpentAmount     decimal.Decimal `json:"spentAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	SpentPercentage float64         `json:"spentPercentage"`
	StartDate       Date            `json:"startDate"`
	EndDate         Date            `json:"endDate"`
	Period          BudgetPeriod    `json:"period"`
	AlertEnabled    bool            `json:"alertEnabled"`
	AlertThreshold  int             `json:"alertThreshold"`
	Active          bool            `json:"isActive"`
	OverBudget      bool            `json:"isOverBudget"`
	ShouldAlert     bool            `json:"shouldAlert"`
}

// Derive recomputes the fields that follow from the amounts so a copy read
// from anywhere satisfies OverBudget == Spent > Budget.
func (b *Budget) Derive() {
	if b.AlertThreshold <= 0 {
		b.AlertThreshold = DefaultAlertThreshold
	}
	b.RemainingAmount = b.BudgetAmount.Sub(b.SpentAmount)
	b.SpentPercentage = Percent(b.SpentAmount, b.BudgetAmount)
	b.OverBudget = b.SpentAmount.GreaterThan(b.BudgetAmount)
	b.ShouldAlert = b.AlertEnabled && b.SpentPercentage >= float64(b.AlertThreshold)
}

// ProgressWidth clamps the spent percentage for progress bars.
func (b Budget) ProgressWidth() float64 {
	switch {
	case b.SpentPercentage < 0:
		return 0
	case b.SpentPercentage > 100:
		return 100
	}
	return b.SpentPercentage
}

// BudgetRequest is the create/update payload.
type BudgetRequest struct {
	Category       Category        `json:"category"`
	BudgetAmount   decimal.Decimal `json:"budgetAmount"`
	StartDate      Date            `json:"startDate"`
	EndDate        Date            `json:"endDate"`
	Period         BudgetPeriod    `json:"period"`
	AlertEnabled   bool            `json:"alertEnabled"`
	AlertThreshold int             `json:"alertThreshold"`
}

func (r BudgetRequest) Validate() error {
	if !r.BudgetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.Category == "" {
		return ErrEmptyCategory
	}
	if !r.Category.Valid() {
		return ErrInvalidCategory
	}
	if !r.Period.Valid() {
		return ErrInvalidPeriod
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return ErrInvalidDate
	}
	if r.EndDate.Before(r.StartDate.Time) {
		return ErrInvalidDateRange
	}
	if r.AlertThreshold < 1 || r.AlertThreshold > 100 {
		return ErrInvalidThreshold
	}
	return nil
}

// Budget materializes the request as a new, active budget with nothing spent.
func (r BudgetRequest) Budget() Budget {
	b := Budget{
		Category:       r.Category,
		BudgetAmount:   r.BudgetAmount,
		SpentAmount:    decimal.Zero,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Period:         r.Period,
		AlertEnabled:   r.AlertEnabled,
		AlertThreshold: r.AlertThreshold,
		Active:         true,
	}
	b.Derive()
	return b
}

// DeriveAll normalizes every budget in place.
func DeriveAll(budgets []Budget) []Budget {
	for i := range budgets {
		budgets[i].Derive()
	}
	return budgets
}
