package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/session"
)

type budgetFormView struct {
	Values     BudgetForm
	Categories []core.Category
	Periods    []core.BudgetPeriod
}

type budgetListView struct {
	Budgets []core.Budget
	Alerts  []core.Budget
}

type budgetsView struct {
	List budgetListView
	Form budgetFormView
}

func (s *Server) loadBudgets(ctx context.Context, st *session.Store) (budgetListView, error) {
	var view budgetListView
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		budgets, err := session.Fetch(ctx, st, s.backend.ListBudgets)
		view.Budgets = core.DeriveAll(budgets)
		return err
	})
	g.Go(func() error {
		alerts, err := session.Fetch(ctx, st, s.backend.BudgetAlerts)
		view.Alerts = core.DeriveAll(alerts)
		return err
	})
	return view, g.Wait()
}

func (s *Server) newBudgetForm() budgetFormView {
	start := s.now()
	end := start.AddDate(0, 1, -1)
	return budgetFormView{
		Values: BudgetForm{
			Period:         string(core.PeriodMonthly),
			StartDate:      core.NewDate(start.Year(), int(start.Month()), start.Day()).String(),
			EndDate:        core.NewDate(end.Year(), int(end.Month()), end.Day()).String(),
			AlertEnabled:   true,
			AlertThreshold: core.DefaultAlertThreshold,
		},
		Categories: core.Categories,
		Periods:    core.BudgetPeriods,
	}
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request, st *session.Store) {
	list, err := s.loadBudgets(r.Context(), st)
	if err != nil {
		s.backendFailed(w, r, st, log.OpList, err)
		return
	}
	s.render(w, r, st, http.StatusOK, "budgets", "Budgets", budgetsView{List: list, Form: s.newBudgetForm()})
}

// respondBudgets refetches the list after a write, since spent amounts and
// alerts are computed by the backend.
func (s *Server) respondBudgets(w http.ResponseWriter, r *http.Request, st *session.Store, resetForm bool) {
	s.done(w, r, "/budgets", func(b *HTMXResponseBuilder) {
		list, err := s.loadBudgets(r.Context(), st)
		if err != nil {
			s.backendFailed(w, r, st, log.OpList, err)
			return
		}
		if resetForm {
			b.TriggerFormReset()
		}
		s.fragment(w, r, st, "budgets", "budget_list", list, b)
	})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, st *session.Store) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	req, err := bindBudgetForm(r.PostForm).Request()
	if err != nil {
		s.formFailed(w, r, st, "/budgets", err)
		return
	}
	created, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.Budget, error) {
		return s.backend.CreateBudget(ctx, req)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget created",
		log.FieldOperation, log.OpCreate, log.FieldCategory, string(created.Category),
		log.FieldAmount, created.BudgetAmount.StringFixed(2))
	st.Notify(session.NoticeSuccess, "Budget created for "+created.Category.Label())
	s.respondBudgets(w, r, st, true)
}

// budgetAction runs a write against one budget and answers with the refreshed list.
func (s *Server) budgetAction(op, notice string, call func(ctx context.Context, id int64) error) storeHandler {
	return func(w http.ResponseWriter, r *http.Request, st *session.Store) {
		id, ok := parsePathID(r)
		if !ok {
			NotFoundError("Budget not found").Write(w)
			return
		}
		err := st.Call(r.Context(), func(ctx context.Context) error { return call(ctx, id) })
		if err != nil {
			s.backendFailed(w, r, st, op, err)
			return
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Budget changed",
			log.FieldOperation, op, "budget_id", id)
		st.Notify(session.NoticeSuccess, notice)
		s.respondBudgets(w, r, st, false)
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, st *session.Store) {
	s.budgetAction(log.OpDelete, "Budget deleted", s.backend.DeleteBudget)(w, r, st)
}

func (s *Server) handleToggleBudgetAlert(w http.ResponseWriter, r *http.Request, st *session.Store) {
	s.budgetAction(log.OpUpdate, "Budget alert updated", func(ctx context.Context, id int64) error {
		_, err := s.backend.ToggleBudgetAlert(ctx, id)
		return err
	})(w, r, st)
}

func (s *Server) handleResetBudget(w http.ResponseWriter, r *http.Request, st *session.Store) {
	s.budgetAction(log.OpUpdate, "Budget reset", func(ctx context.Context, id int64) error {
		_, err := s.backend.ResetBudget(ctx, id)
		return err
	})(w, r, st)
}
