package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"finflare/internal/api"
	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/session"
)

const msgBackendFailed = "Something went wrong. Please try again."

// PageData is what the layout renders around every page.
type PageData struct {
	Title    string
	Nav      string
	User     *core.Session
	Flash    []session.Notice
	DemoHint string
	Data     any
}

type NavItem struct{ Name, Href, Key string }

// NavItems is the shell navigation, in display order.
var NavItems = []NavItem{
	{"Dashboard", "/dashboard", "dashboard"},
	{"Expenses", "/expenses", "expenses"},
	{"Budgets", "/budgets", "budgets"},
	{"Investments", "/investments", "investments"},
	{"Reports", "/reports", "reports"},
	{"Achievements", "/achievements", "achievements"},
}

// render executes a full page inside the layout. Queued notices are shown
// inline as flash messages.
func (s *Server) render(w http.ResponseWriter, r *http.Request, st *session.Store, status int, page, title string, data any) {
	t, ok := s.pages[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown page template", "template", page)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	pd := PageData{Title: title, Nav: page, DemoHint: s.opts.DemoHint, Data: data}
	if st != nil {
		if sess, ok := st.Session(); ok {
			pd.User = &sess
		}
		pd.Flash = st.DrainNotices()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		s.structured.LogError(r.Context(), "Page template execution failed", err, log.ComponentTemplate, log.OpRender, nil)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fragment executes one named block of a page for htmx and sends queued
// notices as a show-notification trigger.
func (s *Server) fragment(w http.ResponseWriter, r *http.Request, st *session.Store, page, name string, data any, b *HTMXResponseBuilder) {
	t, ok := s.pages[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Fragment template execution failed",
			"template", page+"/"+name, log.FieldError, err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	if st != nil {
		b.TriggerNotices(st.DrainNotices())
	}
	b.BodyHTML(buf.Bytes()).Write(w)
}

// backendFailed answers a failed backend call. An expired session always
// sends the browser to /login, whichever view hit it.
func (s *Server) backendFailed(w http.ResponseWriter, r *http.Request, st *session.Store, op string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	switch {
	case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNotAuthenticated):
		logger.InfoContext(ctx, "Session no longer valid", log.FieldOperation, op)
		s.redirect(w, r, "/login")
		return
	case errors.Is(err, context.Canceled):
		logger.DebugContext(ctx, "Request canceled", log.FieldOperation, op)
		return
	}

	status, msg := http.StatusBadGateway, api.MessageOf(err, msgBackendFailed)
	var apiErr *api.Error
	switch {
	case errors.Is(err, api.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "The server took too long to answer"
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		status = http.StatusUnprocessableEntity
	}
	s.structured.LogError(ctx, "Backend call failed", err, log.ComponentBackend, op,
		log.NewFields().WithErrorType(log.ErrorTypeNetwork))

	if isHTMX(r) {
		ErrorResponse(status, msg).Write(w)
		return
	}
	s.render(w, r, st, status, "error", "Error", map[string]any{"Status": status, "Message": msg})
}

// formFailed reports an invalid submission. htmx gets a 422 with the
// message; a plain form post is redirected to back with a flash.
func (s *Server) formFailed(w http.ResponseWriter, r *http.Request, st *session.Store, back string, err error) {
	msg := "Invalid form data"
	var fe *FormError
	if errors.As(err, &fe) {
		msg = fe.Message
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Form rejected",
		log.FieldPath, r.URL.Path, log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, msg)
	if isHTMX(r) {
		UnprocessableEntityError(msg).Write(w)
		return
	}
	st.Notify(session.NoticeError, msg)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// done finishes a successful write: htmx gets the fragment, a plain
// post is redirected to back and sees the notices there.
func (s *Server) done(w http.ResponseWriter, r *http.Request, back string, render func(b *HTMXResponseBuilder)) {
	if !isHTMX(r) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	render(NewHTMXResponse())
}
