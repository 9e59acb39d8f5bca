package memory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

// refresh recomputes everything derived from the expense list. Callers hold s.mu.
func (s *Store) refresh(acc *account) {
	today := s.today()
	for _, b := range acc.budgets {
		spent := decimal.Zero
		for _, e := range acc.expenses {
			if e.Category != b.Category || e.ID <= b.resetAfter || e.Date.Before(b.StartDate.Time) || e.Date.After(b.EndDate.Time) {
				continue
			}
			spent = spent.Add(e.Amount)
		}
		b.SpentAmount = spent
		b.Active = !today.After(b.EndDate.Time)
		b.Derive()
	}
	s.checkAchievements(acc)
}

func (acc *account) budgetList(keep func(core.Budget) bool) []core.Budget {
	out := make([]core.Budget, 0, len(acc.budgets))
	for _, b := range acc.budgets {
		if keep == nil || keep(b.Budget) {
			out = append(out, b.Budget)
		}
	}
	return out
}

func (acc *account) findBudget(id int64) *budgetState {
	for _, b := range acc.budgets {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/budgets")
	if err != nil {
		return nil, err
	}
	return acc.budgetList(nil), nil
}

func (s *Store) ActiveBudgets(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/budgets/active")
	if err != nil {
		return nil, err
	}
	return acc.budgetList(func(b core.Budget) bool { return b.Active }), nil
}

func (s *Store) BudgetAlerts(ctx context.Context) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/budgets/alerts")
	if err != nil {
		return nil, err
	}
	return acc.budgetList(func(b core.Budget) bool { return b.Active && b.ShouldAlert }), nil
}

func (s *Store) CreateBudget(ctx context.Context, req core.BudgetRequest) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodPost, "/budgets")
	if err != nil {
		return core.Budget{}, err
	}
	if err := req.Validate(); err != nil {
		return core.Budget{}, badRequest("/budgets", err.Error())
	}
	b := &budgetState{Budget: req.Budget()}
	b.ID = s.id()
	acc.budgets = append(acc.budgets, b)
	s.refresh(acc)
	return b.Budget, nil
}

func (s *Store) UpdateBudget(ctx context.Context, id int64, req core.BudgetRequest) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/budgets/%d", id)
	acc, err := s.authorize(ctx, http.MethodPut, path)
	if err != nil {
		return core.Budget{}, err
	}
	if err := req.Validate(); err != nil {
		return core.Budget{}, badRequest(path, err.Error())
	}
	b := acc.findBudget(id)
	if b == nil {
		return core.Budget{}, notFound(http.MethodPut, path)
	}
	b.Category = req.Category
	b.BudgetAmount = req.BudgetAmount
	b.StartDate, b.EndDate = req.StartDate, req.EndDate
	b.Period = req.Period
	b.AlertEnabled = req.AlertEnabled
	b.AlertThreshold = req.AlertThreshold
	s.refresh(acc)
	return b.Budget, nil
}

func (s *Store) ToggleBudgetAlert(ctx context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/budgets/%d/toggle-alert", id)
	acc, err := s.authorize(ctx, http.MethodPost, path)
	if err != nil {
		return core.Budget{}, err
	}
	b := acc.findBudget(id)
	if b == nil {
		return core.Budget{}, notFound(http.MethodPost, path)
	}
	b.AlertEnabled = !b.AlertEnabled
	b.Derive()
	return b.Budget, nil
}

// ResetBudget zeroes the spent amount: only expenses created afterwards count.
func (s *Store) ResetBudget(ctx context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/budgets/%d/reset", id)
	acc, err := s.authorize(ctx, http.MethodPost, path)
	if err != nil {
		return core.Budget{}, err
	}
	b := acc.findBudget(id)
	if b == nil {
		return core.Budget{}, notFound(http.MethodPost, path)
	}
	b.resetAfter = s.nextID - 1
	s.refresh(acc)
	return b.Budget, nil
}

func (s *Store) DeleteBudget(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/budgets/%d", id)
	acc, err := s.authorize(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	for i, b := range acc.budgets {
		if b.ID == id {
			acc.budgets = append(acc.budgets[:i], acc.budgets[i+1:]...)
			return nil
		}
	}
	return notFound(http.MethodDelete, path)
}
