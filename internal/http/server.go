package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"finflare/internal/cache"
	"finflare/internal/core"
	"finflare/internal/events"
	"finflare/internal/export"
	"finflare/internal/log"
	"finflare/internal/middleware/ratelimit"
	"finflare/internal/middleware/security"
	"finflare/internal/middleware/trace"
	"finflare/internal/ports"
	"finflare/internal/session"
	appweb "finflare/web"
)

// Deps are the collaborators the views call into.
type Deps struct {
	Backend     ports.Backend
	Sessions    *session.Manager
	Categorizer core.Categorizer
	Exporter    ports.ReportExporter
	Events      events.Publisher
	Logger      *log.Logger
}

// Options tune the HTTP layer.
type Options struct {
	SecureCookies bool
	CookieTTL     time.Duration
	ListCacheTTL  time.Duration
	ListCacheSize int
	RateLimit     ratelimit.Config
	// DemoHint is shown on the login page when set.
	DemoHint string
	Now      func() time.Time
}

type Server struct {
	http.Server
	pages       map[string]*template.Template
	backend     ports.Backend
	sessions    *session.Manager
	categorizer core.Categorizer
	exporter    ports.ReportExporter
	events      events.Publisher
	logger      *log.Logger
	structured  *log.StructuredLogger
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	opts        Options
	now         func() time.Time
	started     time.Time

	// Per-browser copy of the expense list, reconciled after each write.
	// listFetches tracks the list fetches in flight per sid; listMu guards
	// both.
	lists       *cache.LRUCache[core.ExpenseList]
	listMu      sync.Mutex
	listFetches map[string]*listFetch

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Backend == nil || deps.Sessions == nil {
		return nil, errors.New("http server needs a backend and a session manager")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.Unavailable{}
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if opts.CookieTTL <= 0 {
		opts.CookieTTL = 30 * 24 * time.Hour
	}
	if opts.ListCacheTTL <= 0 {
		opts.ListCacheTTL = 30 * time.Second
	}
	if opts.ListCacheSize <= 0 {
		opts.ListCacheSize = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	pages, err := loadPages(appweb.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s := &Server{
		pages:       pages,
		backend:     deps.Backend,
		sessions:    deps.Sessions,
		categorizer: deps.Categorizer,
		exporter:    deps.Exporter,
		events:      deps.Events,
		logger:      logger,
		structured:  log.NewStructuredLogger(deps.Logger),
		limiter:     ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		opts:        opts,
		now:         opts.Now,
		started:     opts.Now(),
		lists:       cache.NewLRUCache[core.ExpenseList](opts.ListCacheSize, opts.ListCacheTTL),
		listFetches: make(map[string]*listFetch),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	// A login, logout or expiry changes whose list the browser sees.
	deps.Sessions.OnEvent(func(ev session.Event) { s.dropList(ev.SID) })

	s.Handler = s.routes()
	s.ReadHeaderTimeout = 10 * time.Second
	s.Addr = addr
	return s, nil
}

func (s *Server) routes() http.Handler {
	app := http.NewServeMux()

	app.HandleFunc("GET /{$}", s.handleRoot)
	app.HandleFunc("GET /login", s.handleLoginPage)
	app.HandleFunc("POST /login", s.handleLogin)
	app.HandleFunc("GET /register", s.handleRegisterPage)
	app.HandleFunc("POST /register", s.handleRegister)
	app.HandleFunc("POST /logout", s.handleLogout)

	app.HandleFunc("GET /dashboard", s.authed(s.handleDashboard))

	app.HandleFunc("GET /expenses", s.authed(s.handleExpenses))
	app.HandleFunc("GET /expenses/list", s.authed(s.handleExpenseList))
	app.HandleFunc("POST /expenses", s.authed(s.handleCreateExpense))
	app.HandleFunc("GET /expenses/{id}/edit", s.authed(s.handleEditExpense))
	app.HandleFunc("POST /expenses/{id}", s.authed(s.handleUpdateExpense))
	app.HandleFunc("POST /expenses/{id}/delete", s.authed(s.handleDeleteExpense))
	app.HandleFunc("DELETE /expenses/{id}", s.authed(s.handleDeleteExpense))
	app.HandleFunc("POST /expenses/suggest-category", s.authed(s.handleSuggestCategory))
	app.HandleFunc("POST /expenses/ocr", s.authed(s.handleScanReceipt))

	app.HandleFunc("GET /budgets", s.authed(s.handleBudgets))
	app.HandleFunc("POST /budgets", s.authed(s.handleCreateBudget))
	app.HandleFunc("POST /budgets/{id}/delete", s.authed(s.handleDeleteBudget))
	app.HandleFunc("POST /budgets/{id}/toggle-alert", s.authed(s.handleToggleBudgetAlert))
	app.HandleFunc("POST /budgets/{id}/reset", s.authed(s.handleResetBudget))

	app.HandleFunc("GET /investments", s.authed(s.handleInvestments))
	app.HandleFunc("POST /investments", s.authed(s.handleCreateInvestment))
	app.HandleFunc("POST /investments/{id}/delete", s.authed(s.handleDeleteInvestment))

	app.HandleFunc("GET /reports", s.authed(s.handleReports))
	app.HandleFunc("POST /reports/export", s.authed(s.handleExportReport))

	app.HandleFunc("GET /achievements", s.authed(s.handleAchievements))
	app.HandleFunc("POST /voice", s.authed(s.handleVoice))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		root.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}
	root.Handle("/", security.NoStore(s.withSession(app)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.rateLimited)

	var h http.Handler = root
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// loadPages parses layout.html and partials.html once and clones them for
// every other page so each page can define its own "content".
func loadPages(fsys fs.FS) (map[string]*template.Template, error) {
	shared := []string{"templates/layout.html", "templates/partials.html"}
	base, err := template.New("base").Funcs(templateFuncs()).ParseFS(fsys, shared...)
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" || name == "partials" {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := page.ParseFS(fsys, file); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		pages[name] = page
	}
	if _, ok := pages["error"]; !ok {
		return nil, errors.New("templates/error.html is missing")
	}
	return pages, nil
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please slow down.").Write(w)
}

// ListCache exposes the expense list cache so a cache.Manager can sweep it.
func (s *Server) ListCache() cache.Cleaner { return s.lists }

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
