package http

import (
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/session"
)

type dashboardView struct {
	core.Dashboard
	Slices       []core.CategoryAmount
	Rating       string
	Portfolio    *core.PortfolioSummary
	Achievements []core.Achievement
	Points       int
}

// handleDashboard renders the overview. The portfolio and achievement
// panels are optional: when only they fail the page still renders.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, st *session.Store) {
	var (
		dash                     core.Dashboard
		portfolio                core.PortfolioSummary
		achievements             []core.Achievement
		portfolioErr, achieveErr error
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		dash, err = session.Fetch(ctx, st, s.backend.Dashboard)
		return err
	})
	g.Go(func() error {
		portfolio, portfolioErr = session.Fetch(ctx, st, s.backend.PortfolioSummary)
		return nil
	})
	g.Go(func() error {
		achievements, achieveErr = session.Fetch(ctx, st, s.backend.Achievements)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.backendFailed(w, r, st, log.OpRead, err)
		return
	}
	for _, err := range []error{portfolioErr, achieveErr} {
		if errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrNotAuthenticated) {
			s.backendFailed(w, r, st, log.OpRead, err)
			return
		}
	}

	dash.Normalize()
	view := dashboardView{
		Dashboard: dash,
		Slices:    dash.CategorySlices(),
		Rating:    core.HealthRating(dash.FinancialHealthScore),
	}
	if portfolioErr == nil {
		view.Portfolio = &portfolio
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Portfolio panel unavailable", log.FieldError, portfolioErr.Error())
	}
	if achieveErr == nil {
		view.Achievements = achievements
		view.Points = core.Points(achievements)
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Achievements panel unavailable", log.FieldError, achieveErr.Error())
	}
	s.render(w, r, st, http.StatusOK, "dashboard", "Dashboard", view)
}
