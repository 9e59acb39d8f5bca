package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflare/internal/api"
	"finflare/internal/backend/memory"
	"finflare/internal/core"
	"finflare/internal/middleware/ratelimit"
	"finflare/internal/ports"
	"finflare/internal/session"
)

// rejectingBackend answers 401 on the expense list once reject is set, the
// way a backend does after a token was revoked.
type rejectingBackend struct {
	*memory.Store
	reject atomic.Bool
}

func (b *rejectingBackend) ListExpenses(ctx context.Context) (core.ExpenseList, error) {
	if b.reject.Load() {
		return nil, api.Unauthorized(http.MethodGet, "/expenses", "Token expired")
	}
	return b.Store.ListExpenses(ctx)
}

// stallingBackend holds the first expense list fetch after arm until
// release is closed, returning the list it read before stalling.
type stallingBackend struct {
	*memory.Store
	armed   atomic.Bool
	stalled chan struct{}
	release chan struct{}
}

func newStallingBackend() *stallingBackend {
	return &stallingBackend{Store: memory.New(), stalled: make(chan struct{}), release: make(chan struct{})}
}

func (b *stallingBackend) ListExpenses(ctx context.Context) (core.ExpenseList, error) {
	list, err := b.Store.ListExpenses(ctx)
	if b.armed.CompareAndSwap(true, false) {
		close(b.stalled)
		<-b.release
	}
	return list, err
}

type testApp struct {
	t      *testing.T
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T, backend ports.Backend) *testApp {
	t.Helper()
	sessions := session.NewManager(backend, session.NewMemoryTokens().For, session.ManagerConfig{InitTimeout: time.Second}, nil)
	srv, err := NewServer(":0", Deps{
		Backend:  backend,
		Sessions: sessions,
	}, Options{
		RateLimit: ratelimit.Config{RequestsPerMinute: 1000},
		DemoHint:  "Try demo / demo1234",
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{t: t, srv: srv, ts: ts, client: client}
}

func (a *testApp) do(method, path string, body io.Reader, headers map[string]string) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.ts.URL+path, body)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.client.Do(req)
	require.NoError(a.t, err)
	a.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) get(path string) *http.Response {
	return a.do(http.MethodGet, path, nil, nil)
}

func (a *testApp) htmx(method, path string, form url.Values) *http.Response {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	return a.do(method, path, body, map[string]string{"HX-Request": "true"})
}

func (a *testApp) post(path string, form url.Values) *http.Response {
	return a.do(http.MethodPost, path, strings.NewReader(form.Encode()), nil)
}

func (a *testApp) login() {
	a.t.Helper()
	resp := a.post("/login", url.Values{"username": {memory.DemoUsername}, "password": {memory.DemoPassword}})
	require.Equal(a.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(a.t, "/dashboard", resp.Header.Get("Location"))
}

// sid returns the browser id the cookie jar holds.
func (a *testApp) sid() string {
	u, _ := url.Parse(a.ts.URL)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == sessionCookie {
			return c.Value
		}
	}
	return ""
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func triggers(t *testing.T, resp *http.Response) map[string]json.RawMessage {
	t.Helper()
	raw := resp.Header.Get("HX-Trigger")
	require.NotEmpty(t, raw, "HX-Trigger header missing")
	out := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func notification(t *testing.T, resp *http.Response) (kind, message string, duration int) {
	t.Helper()
	var n struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	raw, ok := triggers(t, resp)["show-notification"]
	require.True(t, ok, "show-notification trigger missing")
	require.NoError(t, json.Unmarshal(raw, &n))
	return n.Type, n.Message, n.Duration
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, memory.New())

	resp := app.get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp = app.get("/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ready map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.Equal(t, "ready", ready["status"])
	assert.Contains(t, ready["checks"], "sessions")
}

func TestStaticAssets(t *testing.T) {
	app := newTestApp(t, memory.New())
	resp := app.get("/static/app.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "show-notification")
}

func TestUnauthenticatedRequestsGoToLogin(t *testing.T) {
	app := newTestApp(t, memory.New())

	for _, path := range []string{"/dashboard", "/expenses", "/budgets", "/investments", "/reports", "/achievements"} {
		resp := app.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	resp := app.htmx(http.MethodGet, "/expenses/list", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("HX-Redirect"))

	resp = app.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, "Try demo / demo1234")
}

func TestLogin(t *testing.T) {
	t.Run("wrong password", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		resp := app.post("/login", url.Values{"username": {"demo"}, "password": {"nope"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login?username=demo", resp.Header.Get("Location"))

		body := readBody(t, app.get("/login?username=demo"))
		assert.Contains(t, body, "Invalid username or password")
		assert.Contains(t, body, `value="demo"`)

		assert.Equal(t, http.StatusSeeOther, app.get("/dashboard").StatusCode)
	})

	t.Run("missing fields", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		resp := app.htmx(http.MethodPost, "/login", url.Values{"username": {"demo"}})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Password is required")
	})

	t.Run("success", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		app.login()

		resp := app.get("/dashboard")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "Welcome back!")
		assert.Contains(t, body, "Welcome back, Demo")

		// Logged in users skip the login form.
		resp = app.get("/login")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	})

	t.Run("logout", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		app.login()
		resp := app.post("/logout", url.Values{})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Contains(t, readBody(t, app.get("/login")), "Logged out successfully")
		assert.Equal(t, http.StatusSeeOther, app.get("/dashboard").StatusCode)
	})
}

func TestRegisterThenLogin(t *testing.T) {
	app := newTestApp(t, memory.New())
	resp := app.post("/register", url.Values{
		"username":        {"newuser"},
		"email":           {"new@example.com"},
		"password":        {"secret123"},
		"confirmPassword": {"secret123"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?username=newuser", resp.Header.Get("Location"))
	assert.Contains(t, readBody(t, app.get("/login?username=newuser")), "Registration successful")

	resp = app.post("/login", url.Values{"username": {"newuser"}, "password": {"secret123"}})
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	// The same username cannot register twice.
	other := newTestApp(t, memory.New())
	form := url.Values{"username": {"demo"}, "email": {"x@example.com"}, "password": {"secret123"}}
	resp = other.post("/register", form)
	assert.Equal(t, "/register", resp.Header.Get("Location"))
	assert.Contains(t, readBody(t, other.get("/register")), "Username is already taken")
}

func TestPagesRender(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	pages := map[string]string{
		"/dashboard":    "Spending by category",
		"/expenses":     "Add expense",
		"/budgets":      "New budget",
		"/investments":  "Add position",
		"/reports":      "Forecast",
		"/achievements": "Leaderboard",
	}
	for path, marker := range pages {
		t.Run(path, func(t *testing.T) {
			resp := app.get(path)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
			body := readBody(t, resp)
			assert.Contains(t, body, marker)
			assert.Contains(t, body, `aria-current="page"`)
		})
	}
}

func TestReportsForecastRows(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	resp := app.get("/reports?months=4")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)

	start := strings.Index(body, `class="forecast-periods"`)
	require.NotEqual(t, -1, start, "forecast table missing")
	table := body[start:]
	table = table[:strings.Index(table, "</table>")]
	assert.Equal(t, 1+4, strings.Count(table, "<tr>"), "one header row plus one row per period")
}

func TestExpenseFilter(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	resp := app.htmx(http.MethodGet, "/expenses/list?search=gas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Gas")
	assert.NotContains(t, body, "Lunch")
	assert.Contains(t, body, "<strong>1</strong> expenses")
	assert.Contains(t, body, "$45.00")

	resp = app.htmx(http.MethodGet, "/expenses/list?filterCategory=GROCERIES", nil)
	body = readBody(t, resp)
	assert.Contains(t, body, "Weekly supermarket run")
	assert.NotContains(t, body, "Netflix")
	assert.Contains(t, body, "<strong>2</strong> expenses")

	resp = app.htmx(http.MethodGet, "/expenses/list?filterCategory=all", nil)
	assert.Contains(t, readBody(t, resp), "<strong>10</strong> expenses")
}

func TestCreateExpense(t *testing.T) {
	valid := url.Values{
		"description":   {"Train ticket"},
		"amount":        {"19.90"},
		"category":      {"TRANSPORTATION"},
		"paymentMethod": {"CREDIT_CARD"},
	}

	t.Run("missing category leaves the list unchanged", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		app.login()
		require.Contains(t, readBody(t, app.htmx(http.MethodGet, "/expenses/list", nil)), "<strong>10</strong> expenses")

		form := url.Values{}
		for k, v := range valid {
			form[k] = v
		}
		form.Del("category")
		resp := app.htmx(http.MethodPost, "/expenses", form)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Category is required")
		kind, _, duration := notification(t, resp)
		assert.Equal(t, session.NoticeError, kind)
		assert.Equal(t, 5000, duration)

		list, ok := app.srv.lists.Get(app.sid())
		require.True(t, ok)
		assert.Len(t, list, 10)
	})

	t.Run("htmx create reconciles the list", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		app.login()
		app.htmx(http.MethodGet, "/expenses/list", nil)

		resp := app.htmx(http.MethodPost, "/expenses", valid)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "Train ticket")
		assert.Contains(t, body, "<strong>11</strong> expenses")

		trig := triggers(t, resp)
		assert.Contains(t, trig, "form:reset")
		assert.JSONEq(t, `{"count":11}`, string(trig["expenses:changed"]))
		kind, msg, duration := notification(t, resp)
		assert.Equal(t, session.NoticeSuccess, kind)
		assert.Equal(t, "Expense added successfully", msg)
		assert.Equal(t, 3000, duration)

		list, ok := app.srv.lists.Get(app.sid())
		require.True(t, ok)
		require.Len(t, list, 11)
		assert.Equal(t, "Train ticket", list[0].Description)
	})

	t.Run("plain post redirects with a flash", func(t *testing.T) {
		app := newTestApp(t, memory.New())
		app.login()
		resp := app.post("/expenses", valid)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/expenses", resp.Header.Get("Location"))

		body := readBody(t, app.get("/expenses"))
		assert.Contains(t, body, "Expense added successfully")
		assert.Contains(t, body, "Train ticket")
	})
}

func TestCreateDuringSlowListFetchIsKept(t *testing.T) {
	backend := newStallingBackend()
	app := newTestApp(t, backend)
	app.login()
	backend.armed.Store(true)

	type result struct {
		body string
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, app.ts.URL+"/expenses/list", nil)
		req.Header.Set("HX-Request", "true")
		resp, err := app.client.Do(req)
		if err != nil {
			slow <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		slow <- result{body: string(b), err: err}
	}()

	select {
	case <-backend.stalled:
	case <-time.After(5 * time.Second):
		t.Fatal("list fetch never started")
	}

	resp := app.htmx(http.MethodPost, "/expenses", url.Values{
		"description":   {"Train ticket"},
		"amount":        {"19.90"},
		"category":      {"TRANSPORTATION"},
		"paymentMethod": {"CREDIT_CARD"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	close(backend.release)

	res := <-slow
	require.NoError(t, res.err)
	assert.Contains(t, res.body, "Train ticket", "the overlapping fetch is retried")

	body := readBody(t, app.htmx(http.MethodGet, "/expenses/list", nil))
	assert.Contains(t, body, "Train ticket")
	assert.Contains(t, body, "<strong>11</strong> expenses")

	list, ok := app.srv.lists.Get(app.sid())
	require.True(t, ok)
	assert.Len(t, list, 11)

	app.srv.listMu.Lock()
	defer app.srv.listMu.Unlock()
	assert.Empty(t, app.srv.listFetches)
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()
	app.htmx(http.MethodGet, "/expenses/list", nil)

	list, ok := app.srv.lists.Get(app.sid())
	require.True(t, ok)
	var gas core.Expense
	for _, e := range list {
		if e.Description == "Gas" {
			gas = e
		}
	}
	require.NotZero(t, gas.ID)
	id := strconv.FormatInt(gas.ID, 10)

	resp := app.htmx(http.MethodGet, "/expenses/"+id+"/edit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `value="45.00"`)

	resp = app.htmx(http.MethodPost, "/expenses/"+id, url.Values{
		"description":   {"Gas station"},
		"amount":        {"50"},
		"category":      {"TRANSPORTATION"},
		"paymentMethod": {"DEBIT_CARD"},
		"expenseDate":   {gas.Date.String()},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Gas station")
	list, _ = app.srv.lists.Get(app.sid())
	updated, ok := list.Find(gas.ID)
	require.True(t, ok)
	assert.Equal(t, "50.00", updated.Amount.StringFixed(2))

	resp = app.htmx(http.MethodDelete, "/expenses/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.NotContains(t, body, "Gas station")
	assert.Contains(t, body, "<strong>9</strong> expenses")
	_, msg, _ := notification(t, resp)
	assert.Equal(t, "Expense deleted successfully", msg)

	// A second delete finds nothing.
	resp = app.htmx(http.MethodDelete, "/expenses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = app.htmx(http.MethodGet, "/expenses/abc/edit", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRejectedTokenEndsSession(t *testing.T) {
	backend := &rejectingBackend{Store: memory.New()}
	app := newTestApp(t, backend)
	app.login()
	require.Equal(t, http.StatusOK, app.get("/dashboard").StatusCode)

	backend.reject.Store(true)
	resp := app.get("/expenses")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	st := app.srv.sessions.Lookup(app.sid())
	require.NotNil(t, st)
	assert.False(t, st.IsAuthenticated())
	assert.Empty(t, st.Token())

	body := readBody(t, app.get("/login"))
	assert.Contains(t, body, "Your session has expired. Please log in again.")

	// Every page now needs a new login, even ones the backend still serves.
	backend.reject.Store(false)
	assert.Equal(t, http.StatusSeeOther, app.get("/budgets").StatusCode)
}

func TestRejectedTokenHTMX(t *testing.T) {
	backend := &rejectingBackend{Store: memory.New()}
	app := newTestApp(t, backend)
	app.login()

	backend.reject.Store(true)
	resp := app.htmx(http.MethodGet, "/expenses/list", nil)
	assert.Equal(t, "/login", resp.Header.Get("HX-Redirect"))
}

func TestSuggestCategory(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	resp := app.htmx(http.MethodPost, "/expenses/suggest-category", url.Values{"description": {"uber ride home"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `id="category-select"`)
	assert.Contains(t, body, "Suggested:")

	resp = app.htmx(http.MethodPost, "/expenses/suggest-category", url.Values{"description": {" "}})
	assert.NotContains(t, readBody(t, resp), "Suggested:")
}

func TestBudgetLifecycle(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	now := time.Now()
	resp := app.htmx(http.MethodPost, "/budgets", url.Values{
		"category":       {"TRAVEL"},
		"budgetAmount":   {"500"},
		"period":         {"MONTHLY"},
		"startDate":      {now.AddDate(0, 0, -1).Format("2006-01-02")},
		"endDate":        {now.AddDate(0, 1, 0).Format("2006-01-02")},
		"alertEnabled":   {"on"},
		"alertThreshold": {"75"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Travel")
	_, msg, _ := notification(t, resp)
	assert.Equal(t, "Budget created for Travel", msg)

	resp = app.htmx(http.MethodPost, "/budgets", url.Values{"category": {"TRAVEL"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = app.htmx(http.MethodPost, "/budgets/999999/delete", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportWithoutExporter(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	resp := app.htmx(http.MethodPost, "/reports/export", url.Values{"year": {"2024"}, "month": {"5"}})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	kind, msg, _ := notification(t, resp)
	assert.Equal(t, session.NoticeWarning, kind)
	assert.Contains(t, msg, "not configured")
}

func TestVoice(t *testing.T) {
	app := newTestApp(t, memory.New())
	app.login()

	resp := app.do(http.MethodPost, "/voice", strings.NewReader(`{"command":"how are my budgets"}`),
		map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply core.VoiceReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Contains(t, reply.Response, "active budgets")
	assert.Equal(t, "/budgets", navigateTarget(reply.Action))

	resp = app.htmx(http.MethodPost, "/voice", url.Values{"command": {"what did I spend"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `href="/expenses"`)

	resp = app.htmx(http.MethodPost, "/voice", url.Values{"command": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRateLimitOnlyCountsWrites(t *testing.T) {
	backend := memory.New()
	sessions := session.NewManager(backend, session.NewMemoryTokens().For, session.ManagerConfig{}, nil)
	srv, err := NewServer(":0", Deps{Backend: backend, Sessions: sessions}, Options{
		RateLimit: ratelimit.Config{RequestsPerMinute: 2},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	var last int
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=x&password=y"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		srv.Handler.ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
