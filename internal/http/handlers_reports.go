package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"finflare/internal/core"
	"finflare/internal/export"
	"finflare/internal/log"
	"finflare/internal/session"
)

type monthLink struct {
	Year, Month int
}

type reportsView struct {
	Year, Month int
	Label       string
	Report      core.MonthlyReport
	Breakdown   []core.CategoryAmount
	Forecast    []core.FinancialForecast
	Months      int
	Prev, Next  monthLink
	// HasNext is false for the current month.
	HasNext bool
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, st *session.Store) {
	now := s.now()
	year, month := parseYearMonth(r, now)
	months := ParseForecastMonths(r.URL.Query())

	view := reportsView{Year: year, Month: month, Months: months, Label: core.MonthLabel(year, month)}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		view.Report, err = session.Fetch(ctx, st, func(ctx context.Context) (core.MonthlyReport, error) {
			return s.backend.MonthlyReport(ctx, year, month)
		})
		return err
	})
	g.Go(func() (err error) {
		view.Forecast, err = session.Fetch(ctx, st, func(ctx context.Context) ([]core.FinancialForecast, error) {
			return s.backend.Forecast(ctx, months)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		s.backendFailed(w, r, st, log.OpRead, err)
		return
	}
	view.Breakdown = view.Report.Breakdown()

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	prev, next := first.AddDate(0, -1, 0), first.AddDate(0, 1, 0)
	view.Prev = monthLink{prev.Year(), int(prev.Month())}
	view.Next = monthLink{next.Year(), int(next.Month())}
	view.HasNext = !next.After(now)

	s.render(w, r, st, http.StatusOK, "reports", "Reports", view)
}

// handleExportReport copies the selected month's report to the configured
// spreadsheet.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request, st *session.Store) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	p := ParseMonthParams(r.Form, s.now())
	back := "/reports?year=" + strconv.Itoa(p.Year) + "&month=" + strconv.Itoa(p.Month)

	report, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.MonthlyReport, error) {
		return s.backend.MonthlyReport(ctx, p.Year, p.Month)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpExport, err)
		return
	}

	sess, _ := st.Session()
	ref, err := s.exporter.ExportMonthlyReport(r.Context(), sess.Username, report)
	switch {
	case errors.Is(err, export.ErrNotConfigured):
		msg := "Report export is not configured on this server"
		if isHTMX(r) {
			NewHTMXResponse().
				Status(http.StatusServiceUnavailable).
				TriggerNotification(session.NoticeWarning, msg, 5000).
				Write(w)
			return
		}
		st.Notify(session.NoticeWarning, msg)
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	case err != nil:
		s.structured.LogError(r.Context(), "Report export failed", err, log.ComponentExport, log.OpExport,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork))
		if isHTMX(r) {
			BadGatewayError("Could not export the report").Write(w)
			return
		}
		st.Notify(session.NoticeError, "Could not export the report")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Report exported",
		log.FieldOperation, log.OpExport, log.FieldYear, p.Year, log.FieldMonth, p.Month, log.FieldSheetsRef, ref)
	st.Notify(session.NoticeSuccess, "Report for "+core.MonthLabel(p.Year, p.Month)+" exported")
	s.done(w, r, back, func(b *HTMXResponseBuilder) {
		b.TriggerNotices(st.DrainNotices())
		b.Status(http.StatusNoContent).Write(w)
	})
}
