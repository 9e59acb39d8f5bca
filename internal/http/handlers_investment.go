package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/session"
)

type investmentListView struct {
	Investments []core.Investment
	Summary     core.PortfolioSummary
}

type investmentsView struct {
	List       investmentListView
	Types      []core.InvestmentType
	RiskLevels []core.RiskLevel
	Today      string
}

func (s *Server) loadInvestments(ctx context.Context, st *session.Store) (investmentListView, error) {
	var view investmentListView
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Investments, err = session.Fetch(ctx, st, s.backend.ListInvestments)
		return err
	})
	g.Go(func() (err error) {
		view.Summary, err = session.Fetch(ctx, st, s.backend.PortfolioSummary)
		return err
	})
	return view, g.Wait()
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request, st *session.Store) {
	list, err := s.loadInvestments(r.Context(), st)
	if err != nil {
		s.backendFailed(w, r, st, log.OpList, err)
		return
	}
	s.render(w, r, st, http.StatusOK, "investments", "Investments", investmentsView{
		List:       list,
		Types:      core.InvestmentTypes,
		RiskLevels: core.RiskLevels,
		Today:      s.today().String(),
	})
}

func (s *Server) respondInvestments(w http.ResponseWriter, r *http.Request, st *session.Store, resetForm bool) {
	s.done(w, r, "/investments", func(b *HTMXResponseBuilder) {
		list, err := s.loadInvestments(r.Context(), st)
		if err != nil {
			s.backendFailed(w, r, st, log.OpList, err)
			return
		}
		if resetForm {
			b.TriggerFormReset()
		}
		s.fragment(w, r, st, "investments", "investment_list", list, b)
	})
}

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request, st *session.Store) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	inv, err := bindInvestmentForm(r.PostForm).Investment(s.now())
	if err != nil {
		s.formFailed(w, r, st, "/investments", err)
		return
	}
	created, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.Investment, error) {
		return s.backend.CreateInvestment(ctx, inv)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Investment added",
		log.FieldOperation, log.OpCreate, "symbol", created.Symbol, "quantity", created.Quantity)
	st.Notify(session.NoticeSuccess, created.Symbol+" added to your portfolio")
	s.respondInvestments(w, r, st, true)
}

func (s *Server) handleDeleteInvestment(w http.ResponseWriter, r *http.Request, st *session.Store) {
	id, ok := parsePathID(r)
	if !ok {
		NotFoundError("Investment not found").Write(w)
		return
	}
	err := st.Call(r.Context(), func(ctx context.Context) error {
		return s.backend.DeleteInvestment(ctx, id)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpDelete, err)
		return
	}
	st.Notify(session.NoticeSuccess, "Investment removed")
	s.respondInvestments(w, r, st, false)
}
