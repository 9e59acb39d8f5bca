package memory

import (
	"context"
	"fmt"
	"net/http"

	"finflare/internal/core"
)

func (s *Store) ListInvestments(ctx context.Context) ([]core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/investments")
	if err != nil {
		return nil, err
	}
	return append([]core.Investment(nil), acc.investments...), nil
}

func (s *Store) CreateInvestment(ctx context.Context, inv core.Investment) (core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodPost, "/investments")
	if err != nil {
		return core.Investment{}, err
	}
	if err := inv.Validate(); err != nil {
		return core.Investment{}, badRequest("/investments", err.Error())
	}
	inv.ID = s.id()
	if inv.PurchaseDate.IsZero() {
		inv.PurchaseDate = core.DateTime{Time: s.now().UTC()}
	}
	inv.Revalue()
	acc.investments = append(acc.investments, inv)
	return inv, nil
}

func (s *Store) UpdateInvestment(ctx context.Context, id int64, inv core.Investment) (core.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/investments/%d", id)
	acc, err := s.authorize(ctx, http.MethodPut, path)
	if err != nil {
		return core.Investment{}, err
	}
	if err := inv.Validate(); err != nil {
		return core.Investment{}, badRequest(path, err.Error())
	}
	for i := range acc.investments {
		if acc.investments[i].ID == id {
			inv.ID = id
			if inv.PurchaseDate.IsZero() {
				inv.PurchaseDate = acc.investments[i].PurchaseDate
			}
			inv.Revalue()
			acc.investments[i] = inv
			return inv, nil
		}
	}
	return core.Investment{}, notFound(http.MethodPut, path)
}

func (s *Store) DeleteInvestment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/investments/%d", id)
	acc, err := s.authorize(ctx, http.MethodDelete, path)
	if err != nil {
		return err
	}
	for i, inv := range acc.investments {
		if inv.ID == id {
			acc.investments = append(acc.investments[:i], acc.investments[i+1:]...)
			return nil
		}
	}
	return notFound(http.MethodDelete, path)
}

func (s *Store) PortfolioSummary(ctx context.Context) (core.PortfolioSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, err := s.authorize(ctx, http.MethodGet, "/investments/portfolio/summary")
	if err != nil {
		return core.PortfolioSummary{}, err
	}
	return core.Summarize(acc.investments), nil
}
