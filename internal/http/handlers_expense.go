package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finflare/internal/api"
	"finflare/internal/core"
	"finflare/internal/events"
	"finflare/internal/log"
	"finflare/internal/session"
)

const maxReceiptBytes = 10 << 20

type expenseFormView struct {
	Action  string
	Values  ExpenseForm
	Editing bool
	Options formOptions
}

// CategorySelect is the category picker for the current form values.
func (v expenseFormView) CategorySelect() categorySelectView {
	return categorySelectView{Selected: core.Category(v.Values.Category), Options: v.Options}
}

type formOptions struct {
	Categories     []core.Category
	PaymentMethods []core.PaymentMethod
}

var expenseOptions = formOptions{Categories: core.Categories, PaymentMethods: core.PaymentMethods}

type expenseListView struct {
	Expenses core.ExpenseList
	Search   string
	Category string
	Total    decimal.Decimal
	Average  decimal.Decimal
	Count    int
	Options  formOptions
}

type expensesView struct {
	List expenseListView
	Form expenseFormView
}

type categorySelectView struct {
	Selected  core.Category
	Suggested bool
	Options   formOptions
}

// listFetch counts the writes that landed while list fetches for one sid
// were in flight.
type listFetch struct {
	inflight int
	writes   uint64
}

const listFetchAttempts = 2

// loadExpenses returns the browser's copy of the list, fetching it on a miss.
// A fetch that overlapped a write may predate it, so it is not cached and is
// retried once.
func (s *Server) loadExpenses(ctx context.Context, st *session.Store) (core.ExpenseList, error) {
	sid := st.SID()
	if list, ok := s.lists.Get(sid); ok {
		return list, nil
	}
	var list core.ExpenseList
	for attempt := 0; attempt < listFetchAttempts; attempt++ {
		seen := s.beginListFetch(sid)
		var err error
		list, err = session.Fetch(ctx, st, s.backend.ListExpenses)
		if s.endListFetch(sid, seen, list, err == nil) || err != nil {
			return list, err
		}
	}
	return list, nil
}

func (s *Server) beginListFetch(sid string) uint64 {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	f := s.listFetches[sid]
	if f == nil {
		f = &listFetch{}
		s.listFetches[sid] = f
	}
	f.inflight++
	return f.writes
}

// endListFetch caches list when no write landed since seen and reports
// whether it did.
func (s *Server) endListFetch(sid string, seen uint64, list core.ExpenseList, ok bool) bool {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	f := s.listFetches[sid]
	current := f.writes == seen
	if f.inflight--; f.inflight == 0 {
		delete(s.listFetches, sid)
	}
	if ok && current {
		s.lists.Set(sid, list)
	}
	return current
}

// noteWriteLocked marks fetches in flight for sid as stale. listMu is held.
func (s *Server) noteWriteLocked(sid string) {
	if f := s.listFetches[sid]; f != nil {
		f.writes++
	}
}

// dropList forgets the cached list of sid, for example when its user changes.
func (s *Server) dropList(sid string) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.noteWriteLocked(sid)
	s.lists.Delete(sid)
}

// reconcile applies a confirmed write to the cached list. When the list does
// not contain what the write expected it is dropped and refetched later.
func (s *Server) reconcile(sid string, apply func(core.ExpenseList) (core.ExpenseList, bool)) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	s.noteWriteLocked(sid)
	list, ok := s.lists.Get(sid)
	if !ok {
		return
	}
	next, ok := apply(list)
	if !ok {
		s.lists.Delete(sid)
		return
	}
	s.lists.Set(sid, next)
}

func listView(list core.ExpenseList, search, category string) expenseListView {
	if category == "" {
		category = core.AllCategories
	}
	filtered := list.Filter(search, category)
	return expenseListView{
		Expenses: filtered,
		Search:   search,
		Category: category,
		Total:    filtered.Total(),
		Average:  filtered.Average(),
		Count:    len(filtered),
		Options:  expenseOptions,
	}
}

// filters reads search and category from the query, or from the form for
// htmx posts that include the filter inputs.
func filters(r *http.Request) (search, category string) {
	search = sanitizeInput(r.FormValue("search"))
	category = sanitizeInput(r.FormValue("filterCategory"))
	if category == "" {
		category = sanitizeInput(r.URL.Query().Get("category"))
	}
	return search, category
}

func (s *Server) today() core.Date {
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

func (s *Server) newExpenseForm() expenseFormView {
	return expenseFormView{
		Action:  "/expenses",
		Values:  ExpenseForm{Date: s.today().String(), PaymentMethod: string(core.CreditCard)},
		Options: expenseOptions,
	}
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request, st *session.Store) {
	list, err := s.loadExpenses(r.Context(), st)
	if err != nil {
		s.backendFailed(w, r, st, log.OpList, err)
		return
	}
	search, category := filters(r)
	s.render(w, r, st, http.StatusOK, "expenses", "Expenses", expensesView{
		List: listView(list, search, category),
		Form: s.newExpenseForm(),
	})
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request, st *session.Store) {
	list, err := s.loadExpenses(r.Context(), st)
	if err != nil {
		s.backendFailed(w, r, st, log.OpList, err)
		return
	}
	search, category := filters(r)
	s.fragment(w, r, st, "expenses", "expense_list", listView(list, search, category), nil)
}

func (s *Server) respondExpenses(w http.ResponseWriter, r *http.Request, st *session.Store, resetForm bool) {
	s.done(w, r, "/expenses", func(b *HTMXResponseBuilder) {
		list, err := s.loadExpenses(r.Context(), st)
		if err != nil {
			s.backendFailed(w, r, st, log.OpList, err)
			return
		}
		search, category := filters(r)
		view := listView(list, search, category)
		if resetForm {
			b.TriggerFormReset()
		}
		b.TriggerExpensesChanged(view.Count)
		s.fragment(w, r, st, "expenses", "expense_list", view, b)
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, st *session.Store) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := bindExpenseForm(r.PostForm)
	expense, err := form.Expense(s.today())
	if err != nil {
		s.formFailed(w, r, st, "/expenses", err)
		return
	}

	created, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.Expense, error) {
		return s.backend.CreateExpense(ctx, expense)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpCreate, err)
		return
	}

	s.reconcile(st.SID(), func(l core.ExpenseList) (core.ExpenseList, bool) {
		return l.Prepend(created), true
	})
	s.structured.LogExpenseSaved(r.Context(), log.OpCreate, created.ID, created.Description, created.Amount.StringFixed(2), string(created.Category))
	s.publishExpense(r.Context(), st, events.ExpenseCreated, created)
	st.Notify(session.NoticeSuccess, "Expense added successfully")
	s.respondExpenses(w, r, st, true)
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request, st *session.Store) {
	id, ok := parsePathID(r)
	if !ok {
		NotFoundError("Expense not found").Write(w)
		return
	}
	expense, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.Expense, error) {
		return s.backend.GetExpense(ctx, id)
	})
	if err != nil {
		s.backendFailed(w, r, st, log.OpRead, err)
		return
	}
	form := expenseFormView{
		Action:  "/expenses/" + r.PathValue("id"),
		Editing: true,
		Options: expenseOptions,
		Values: ExpenseForm{
			Description:   expense.Description,
			Amount:        expense.Amount.StringFixed(2),
			Category:      string(expense.Category),
			PaymentMethod: string(expense.PaymentMethod),
			Date:          expense.Date.String(),
			Notes:         expense.Notes,
			Recurring:     expense.Recurring,
		},
	}
	if isHTMX(r) {
		s.fragment(w, r, st, "expenses", "expense_form", form, nil)
		return
	}
	list, err := s.loadExpenses(r.Context(), st)
	if err != nil {
		s.backendFailed(w, r, st, log.OpList, err)
		return
	}
	s.render(w, r, st, http.StatusOK, "expenses", "Edit expense", expensesView{
		List: listView(list, "", ""),
		Form: form,
	})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, st *session.Store) {
	id, ok := parsePathID(r)
	if !ok {
		NotFoundError("Expense not found").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	expense, err := bindExpenseForm(r.PostForm).Expense(s.today())
	if err != nil {
		s.formFailed(w, r, st, "/expenses/"+r.PathValue("id")+"/edit", err)
		return
	}
	expense.ID = id

	updated, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.Expense, error) {
		return s.backend.UpdateExpense(ctx, id, expense)
	})
	if err != nil {
		s.dropIfGone(st.SID(), id, err)
		s.backendFailed(w, r, st, log.OpUpdate, err)
		return
	}

	s.reconcile(st.SID(), func(l core.ExpenseList) (core.ExpenseList, bool) {
		return l.Replace(updated)
	})
	s.structured.LogExpenseSaved(r.Context(), log.OpUpdate, updated.ID, updated.Description, updated.Amount.StringFixed(2), string(updated.Category))
	s.publishExpense(r.Context(), st, events.ExpenseUpdated, updated)
	st.Notify(session.NoticeSuccess, "Expense updated successfully")
	s.respondExpenses(w, r, st, true)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, st *session.Store) {
	id, ok := parsePathID(r)
	if !ok {
		NotFoundError("Expense not found").Write(w)
		return
	}
	err := st.Call(r.Context(), func(ctx context.Context) error {
		return s.backend.DeleteExpense(ctx, id)
	})
	if err != nil {
		s.dropIfGone(st.SID(), id, err)
		s.backendFailed(w, r, st, log.OpDelete, err)
		return
	}

	s.reconcile(st.SID(), func(l core.ExpenseList) (core.ExpenseList, bool) {
		return l.Remove(id)
	})
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		log.FieldOperation, log.OpDelete, log.FieldExpenseID, id)
	s.publishExpense(r.Context(), st, events.ExpenseDeleted, core.Expense{ID: id})
	st.Notify(session.NoticeSuccess, "Expense deleted successfully")
	s.respondExpenses(w, r, st, false)
}

// dropIfGone forgets the cached list when the backend no longer has id.
func (s *Server) dropIfGone(sid string, id int64, err error) {
	if errors.Is(err, api.ErrNotFound) {
		s.reconcile(sid, func(l core.ExpenseList) (core.ExpenseList, bool) {
			return l.Remove(id)
		})
	}
}

func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request, st *session.Store) {
	desc := sanitizeInput(r.FormValue("description"))
	view := categorySelectView{Options: expenseOptions}
	if strings.TrimSpace(desc) != "" {
		c, err := s.categorizer.Suggest(r.Context(), desc)
		if err != nil {
			// The request went away before the suggestion was ready.
			return
		}
		view.Selected, view.Suggested = c, true
	}
	s.fragment(w, r, st, "expenses", "category_select", view, nil)
}

func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request, st *session.Store) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes)
	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		BadRequestError("Receipt must be an image under 10 MB").Write(w)
		return
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		UnprocessableEntityError("Please choose a receipt image").Write(w)
		return
	}
	defer file.Close()

	scan, err := session.Fetch(r.Context(), st, func(ctx context.Context) (core.ReceiptScan, error) {
		return s.backend.ScanReceipt(ctx, header.Filename, file)
	})
	if err != nil {
		s.backendFailed(w, r, st, "scan_receipt", err)
		return
	}

	form := s.newExpenseForm()
	form.Values.Description = scan.Description
	if scan.Amount.IsPositive() {
		form.Values.Amount = scan.Amount.StringFixed(2)
	}
	if scan.Category.Valid() {
		form.Values.Category = string(scan.Category)
	}
	if !scan.Date.IsZero() {
		form.Values.Date = scan.Date.String()
	}
	st.Notify(session.NoticeInfo, "Receipt scanned, please review the details")
	s.fragment(w, r, st, "expenses", "expense_form", form, nil)
}

func (s *Server) publishExpense(ctx context.Context, st *session.Store, t events.Type, e core.Expense) {
	sess, _ := st.Session()
	ev := events.New(t, st.SID(), sess.Username)
	ev.ExpenseID = e.ID
	if t != events.ExpenseDeleted {
		ev.Attrs = map[string]string{
			"amount":   e.Amount.StringFixed(2),
			"category": string(e.Category),
		}
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Activity event not published",
			log.FieldEvent, string(t), log.FieldError, err.Error())
	}
}
