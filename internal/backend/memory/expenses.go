package memory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

// sortExpenses orders newest first, ties broken by id.
func sortExpenses(l core.ExpenseList) {
	sort.SliceStable(l, func(i, j int) bool {
		if !l[i].Date.Equal(l[j].Date.Time) {
			return l[i].Date.After(l[j].Date.Time)
		}
		return l[i].ID > l[j].ID
	})
}

func (s *Store) ListExpenses(ctx context.Context) (core.ExpenseList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/expenses")
	if err != nil {
		return nil, err
	}
	return append(core.ExpenseList(nil), acc.expenses...), nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/expenses/%d", id)
	acc, err := s.authorize(ctx, http.MethodGet, path)
	if err != nil {
		return core.Expense{}, err
	}
	e, ok := acc.expenses.Find(id)
	if !ok {
		return core.Expense{}, notFound(http.MethodGet, path)
	}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodPost, "/expenses")
	if err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, badRequest("/expenses", err.Error())
	}
	e.ID = s.id()
	if e.Date.IsZero() {
		e.Date = s.today()
	}
	if e.Source == "" {
		e.Source = core.SourceManual
	}
	acc.expenses = acc.expenses.Prepend(e)
	sortExpenses(acc.expenses)
	s.trackActivity(acc, e.Date)
	s.refresh(acc)
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, id int64, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/expenses/%d", id)
	acc, err := s.authorize(ctx, http.MethodPut, path)
	if err != nil {
		return core.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, badRequest(path, err.Error())
	}
	prev, ok := acc.expenses.Find(id)
	if !ok {
		return core.Expense{}, notFound(http.MethodPut, path)
	}
	e.ID = id
	if e.Date.IsZero() {
		e.Date = prev.Date
	}
	if e.Source == "" {
		e.Source = prev.Source
	}
	acc.expenses, _ = acc.expenses.Replace(e)
	sortExpenses(acc.expenses)
	s.refresh(acc)
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/expenses/%d", id)
	acc, err := s.authorize(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	var ok bool
	if acc.expenses, ok = acc.expenses.Remove(id); !ok {
		return notFound(http.MethodDelete, path)
	}
	s.refresh(acc)
	return nil
}

func (s *Store) ExpensesByCategory(ctx context.Context, category core.Category) (core.ExpenseList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/expenses/category/"+string(category))
	if err != nil {
		return nil, err
	}
	return acc.expenses.Filter("", string(category)), nil
}

func inMonth(d core.Date, year, month int) bool {
	return d.Year() == year && int(d.Month()) == month
}

func (acc *account) monthTotal(year, month int) decimal.Decimal {
	total := decimal.Zero
	for _, e := range acc.expenses {
		if inMonth(e.Date, year, month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (s *Store) MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, fmt.Sprintf("/expenses/reports/monthly/%d/%d", year, month))
	if err != nil {
		return core.MonthlyReport{}, err
	}

	report := core.MonthlyReport{
		Month:                core.MonthLabel(year, month),
		TotalExpenses:        decimal.Zero,
		CategoryWiseExpenses: map[string]decimal.Decimal{},
		ExpensesList:         []core.Expense{},
	}
	for _, e := range acc.expenses {
		if !inMonth(e.Date, year, month) {
			continue
		}
		report.TotalExpenses = report.TotalExpenses.Add(e.Amount)
		key := string(e.Category)
		report.CategoryWiseExpenses[key] = report.CategoryWiseExpenses[key].Add(e.Amount)
		report.ExpensesList = append(report.ExpensesList, e)
	}
	prevYear, prevMonth := year, month-1
	if prevMonth == 0 {
		prevYear, prevMonth = year-1, 12
	}
	report.PreviousMonthTotal = acc.monthTotal(prevYear, prevMonth)
	report.MonthlyChange = report.TotalExpenses.Sub(report.PreviousMonthTotal)
	return report, nil
}

// ScanReceipt stands in for OCR: the description comes from the file name and
// the category from the keyword lookup. The amount is left for the user.
func (s *Store) ScanReceipt(ctx context.Context, filename string, file io.Reader) (core.ReceiptScan, error) {
	s.mu.Lock()
	_, err := s.authorize(ctx, http.MethodPost, "/expenses/ocr")
	s.mu.Unlock()
	if err != nil {
		return core.ReceiptScan{}, err
	}
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		return core.ReceiptScan{}, fmt.Errorf("read receipt: %w", err)
	}
	if n == 0 {
		return core.ReceiptScan{}, badRequest("/expenses/ocr", "Empty receipt upload")
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	desc := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(base))
	if desc == "" || desc == "." {
		desc = "Scanned receipt"
	}
	return core.ReceiptScan{
		Description: desc,
		Amount:      decimal.Zero,
		Category:    core.SuggestCategory(desc),
		Date:        s.today(),
	}, nil
}
