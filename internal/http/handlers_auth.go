package http

import (
	"net/http"
	"net/url"

	"finflare/internal/log"
)

type authView struct {
	Username string
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	if st.IsAuthenticated() {
		s.redirect(w, r, "/dashboard")
		return
	}
	s.render(w, r, st, http.StatusOK, "login", "Sign in", authView{Username: r.URL.Query().Get("username")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	creds, err := bindCredentials(r.PostForm)
	if err != nil {
		s.formFailed(w, r, st, "/login", err)
		return
	}
	if !st.Login(r.Context(), creds.Username, creds.Password) {
		s.redirect(w, r, "/login?username="+url.QueryEscape(creds.Username))
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Login succeeded",
		log.FieldOperation, log.OpLogin, log.FieldUser, creds.Username)
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	if st.IsAuthenticated() {
		s.redirect(w, r, "/dashboard")
		return
	}
	s.render(w, r, st, http.StatusOK, "register", "Create account", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	reg, err := bindRegistration(r.PostForm)
	if err != nil {
		s.formFailed(w, r, st, "/register", err)
		return
	}
	if !st.Register(r.Context(), reg) {
		s.redirect(w, r, "/register")
		return
	}
	s.redirect(w, r, "/login?username="+url.QueryEscape(reg.Username))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	st.Logout()
	s.redirect(w, r, "/login")
}
