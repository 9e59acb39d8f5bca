package core

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// AllCategories is the filter sentinel meaning no category predicate.
const AllCategories = "all"

type Expense struct {
	ID                       int64           `json:"id,omitempty"`
	Amount                   decimal.Decimal `json:"amount"`
	Description              string          `json:"description"`
	Category                 Category        `json:"category"`
	Date                     Date            `json:"expenseDate"`
	PaymentMethod            PaymentMethod   `json:"paymentMethod,omitempty"`
	Notes                    string          `json:"notes,omitempty"`
	ReceiptImageURL          string          `json:"receiptImageUrl,omitempty"`
	Source                   Source          `json:"source,omitempty"`
	Recurring                bool            `json:"isRecurring"`
	RecurrenceType           string          `json:"recurrenceType,omitempty"`
	AICategorized            bool            `json:"aiCategorized"`
	ClassificationConfidence *float64        `json:"classificationConfidence,omitempty"`
}

// Validate checks the fields required before a submission is attempted.
func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > 255 {
		return ErrDescriptionTooLong
	}
	if e.Category == "" {
		return ErrEmptyCategory
	}
	if !e.Category.Valid() {
		return ErrInvalidCategory
	}
	if strings.TrimSpace(string(e.PaymentMethod)) == "" {
		return ErrEmptyPaymentMethod
	}
	if utf8.RuneCountInString(e.Notes) > 500 {
		return ErrNotesTooLong
	}
	return nil
}

// ExpenseList is an ordered client-side copy of the user's expenses, newest first.
type ExpenseList []Expense

// Filter keeps expenses whose description or category label contains search
// (case-insensitive) and whose category equals category. An empty category or
// AllCategories applies no category predicate.
func (l ExpenseList) Filter(search, category string) ExpenseList {
	term := strings.ToLower(strings.TrimSpace(search))
	anyCategory := category == "" || category == AllCategories

	out := make(ExpenseList, 0, len(l))
	for _, e := range l {
		if !anyCategory && string(e.Category) != category {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(e.Description), term) &&
			!strings.Contains(strings.ToLower(e.Category.Label()), term) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (l ExpenseList) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l {
		total = total.Add(e.Amount)
	}
	return total
}

// Average returns Total/len, or zero for an empty list.
func (l ExpenseList) Average() decimal.Decimal {
	if len(l) == 0 {
		return decimal.Zero
	}
	return l.Total().Div(decimal.NewFromInt(int64(len(l)))).Round(2)
}

// Prepend returns a new list with e first.
func (l ExpenseList) Prepend(e Expense) ExpenseList {
	out := make(ExpenseList, 0, len(l)+1)
	out = append(out, e)
	return append(out, l...)
}

// Replace swaps the expense with e.ID for e. It reports whether one was found.
func (l ExpenseList) Replace(e Expense) (ExpenseList, bool) {
	out := make(ExpenseList, len(l))
	copy(out, l)
	for i := range out {
		if out[i].ID == e.ID {
			out[i] = e
			return out, true
		}
	}
	return out, false
}

// Remove drops the expense with the given id.
func (l ExpenseList) Remove(id int64) (ExpenseList, bool) {
	out := make(ExpenseList, 0, len(l))
	found := false
	for _, e := range l {
		if e.ID == id {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}

func (l ExpenseList) Find(id int64) (Expense, bool) {
	for _, e := range l {
		if e.ID == id {
			return e, true
		}
	}
	return Expense{}, false
}

// ByCategory sums amounts per category.
func (l ExpenseList) ByCategory() map[Category]decimal.Decimal {
	out := make(map[Category]decimal.Decimal)
	for _, e := range l {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}
