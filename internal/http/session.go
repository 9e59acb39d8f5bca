package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"finflare/internal/log"
	"finflare/internal/session"
)

const sessionCookie = "finflare_sid"

type ctxKey int

const storeKey ctxKey = iota

func withStore(ctx context.Context, st *session.Store) context.Context {
	return context.WithValue(ctx, storeKey, st)
}

func storeFrom(ctx context.Context) *session.Store {
	st, _ := ctx.Value(storeKey).(*session.Store)
	return st
}

// storeHandler is a handler that needs the browser's session.
type storeHandler func(w http.ResponseWriter, r *http.Request, st *session.Store)

// withSession resolves the browser's Store and waits for its initialization,
// so no page ever renders as logged out while a token is being checked.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := s.browserID(w, r)
		st, err := s.sessions.Resolve(r.Context(), sid)
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Client left during session initialization",
				log.FieldSessionID, sid, log.FieldError, err.Error())
			return
		}
		ctx := withStore(r.Context(), st)
		if sess, ok := st.Session(); ok {
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUser, sess.Username))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// browserID returns the sid cookie, issuing a new one when absent or malformed.
func (s *Server) browserID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(s.opts.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// authed gates h behind an authenticated session.
func (s *Server) authed(h storeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := storeFrom(r.Context())
		if st == nil || !st.IsAuthenticated() {
			s.redirect(w, r, "/login")
			return
		}
		h(w, r, st)
	}
}

// redirect navigates the browser, through HX-Redirect for htmx requests.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(to).Write(w)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
