package core

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Label    string
	Color    string
	Amount   decimal.Decimal
	Percent  float64
}

// MonthlyReport is the backend's per-month expense report.
type MonthlyReport struct {
	Month                string                     `json:"month"`
	TotalExpenses        decimal.Decimal            `json:"totalExpenses"`
	CategoryWiseExpenses map[string]decimal.Decimal `json:"categoryWiseExpenses"`
	ExpensesList         []Expense                  `json:"expensesList"`
	PreviousMonthTotal   decimal.Decimal            `json:"previousMonthTotal"`
	MonthlyChange        decimal.Decimal            `json:"monthlyChange"`
}

// Breakdown shapes the per-category totals for the report table.
func (r MonthlyReport) Breakdown() []CategoryAmount {
	return shapeSlices(r.CategoryWiseExpenses)
}

// ChangePercent is the month-over-month change relative to the previous month.
func (r MonthlyReport) ChangePercent() float64 {
	return Percent(r.MonthlyChange, r.PreviousMonthTotal)
}

// MonthLabel formats year and month the way the report endpoint names months.
func MonthLabel(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

type FinancialForecast struct {
	Period           string          `json:"period"`
	PredictedSavings decimal.Decimal `json:"predictedSavings"`
	OverspendingRisk float64         `json:"overspendingRisk"`
	Recommendations  []string        `json:"recommendations"`
	ConfidenceScore  float64         `json:"confidenceScore"`
}

// DefaultForecastMonths is used when the caller does not pick a horizon.
const DefaultForecastMonths = 3

type Achievement struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PointsAwarded int       `json:"pointsAwarded"`
	IconURL       string    `json:"iconUrl,omitempty"`
	Unlocked      bool      `json:"isUnlocked"`
	UnlockedAt    *DateTime `json:"unlockedAt,omitempty"`
}

type LeaderboardEntry struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	TotalPoints   int    `json:"totalPoints"`
	CurrentStreak int    `json:"currentStreak"`
	MaxStreak     int    `json:"maxStreak"`
}

// Points sums the points of unlocked achievements.
func Points(achievements []Achievement) int {
	total := 0
	for _, a := range achievements {
		if a.Unlocked {
			total += a.PointsAwarded
		}
	}
	return total
}

// VoiceReply is the voice endpoint answer. Action is passed through untouched.
type VoiceReply struct {
	Response string          `json:"response"`
	Action   json.RawMessage `json:"action,omitempty"`
}

// ReceiptScan is what OCR extracted from an uploaded receipt.
type ReceiptScan struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Date        Date            `json:"expenseDate"`
}

// shapeSlices turns a category->amount map keyed by code or label into chart
// entries sorted by amount, largest first.
func shapeSlices(m map[string]decimal.Decimal) []CategoryAmount {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	out := make([]CategoryAmount, 0, len(m))
	for key, amount := range m {
		c, ok := ParseCategory(key)
		if !ok {
			c = Category(key)
		}
		out = append(out, CategoryAmount{
			Category: c,
			Label:    c.Label(),
			Color:    c.Color(),
			Amount:   amount,
			Percent:  Percent(amount, total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}
