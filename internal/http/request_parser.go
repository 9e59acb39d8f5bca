// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Forms are bound into small structs, checked with validator tags, then
// converted into core types that run their own domain validation.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report form (or JSON) names in messages, not Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormError is a user-facing validation failure.
type FormError struct {
	Field   string
	Message string
}

func (e *FormError) Error() string { return e.Message }

// checkStruct runs validator tags and reports the first failure.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FormError{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return &FormError{Message: "Invalid form data"}
}

// validationMessage returns a human-readable validation message.
func validationMessage(e validator.FieldError) string {
	field := fieldLabel(e.Field())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return field + " must be at least " + e.Param() + " characters"
		}
		return field + " must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return field + " must be at most " + e.Param() + " characters"
		}
		return field + " must be at most " + e.Param()
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "datetime":
		return field + " must be a date (YYYY-MM-DD)"
	case "gte", "lte":
		return field + " is out of range"
	default:
		return field + " is invalid"
	}
}

// fieldLabel turns paymentMethod into "Payment method".
func fieldLabel(name string) string {
	if name == "" {
		return "Value"
	}
	var b strings.Builder
	for i, r := range name {
		if i == 0 {
			b.WriteString(strings.ToUpper(string(r)))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(string(r)))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// domainMessage maps core validation errors to form messages.
func domainMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Please enter a valid amount"
	case errors.Is(err, core.ErrEmptyCategory):
		return "Please select a category"
	case errors.Is(err, core.ErrInvalidCategory):
		return "Unknown category"
	case errors.Is(err, core.ErrEmptyDescription):
		return "Description is required"
	case errors.Is(err, core.ErrEmptyPaymentMethod):
		return "Please select a payment method"
	case errors.Is(err, core.ErrInvalidDate):
		return "Please enter a valid date"
	}
	msg := err.Error()
	if msg == "" {
		return "Invalid form data"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now as defaults.
func ParseMonthParams(query url.Values, now time.Time) MonthParams {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y >= 1970 && y <= 9999 {
			params.Year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			params.Month = m
		}
	}

	return params
}

// ParseForecastMonths reads the months horizon, clamped to 1..12.
func ParseForecastMonths(query url.Values) int {
	n, err := strconv.Atoi(strings.TrimSpace(query.Get("months")))
	if err != nil || n < 1 {
		return core.DefaultForecastMonths
	}
	if n > 12 {
		return 12
	}
	return n
}

// ExpenseForm is the add/edit expense form.
type ExpenseForm struct {
	Description   string `form:"description" validate:"required,max=255"`
	Amount        string `form:"amount" validate:"required"`
	Category      string `form:"category" validate:"required"`
	PaymentMethod string `form:"paymentMethod" validate:"required"`
	Date          string `form:"expenseDate" validate:"omitempty,datetime=2006-01-02"`
	Notes         string `form:"notes" validate:"max=500"`
	Recurring     bool   `form:"isRecurring"`
}

func bindExpenseForm(form url.Values) ExpenseForm {
	return ExpenseForm{
		Description:   sanitizeInput(form.Get("description")),
		Amount:        strings.TrimSpace(form.Get("amount")),
		Category:      sanitizeInput(form.Get("category")),
		PaymentMethod: sanitizeInput(form.Get("paymentMethod")),
		Date:          strings.TrimSpace(form.Get("expenseDate")),
		Notes:         sanitizeInput(form.Get("notes")),
		Recurring:     checkbox(form.Get("isRecurring")),
	}
}

// Expense validates the form and builds the expense it describes.
func (f ExpenseForm) Expense(today core.Date) (core.Expense, error) {
	if err := checkStruct(f); err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Expense{}, &FormError{Field: "amount", Message: domainMessage(err)}
	}
	category, ok := core.ParseCategory(f.Category)
	if !ok {
		return core.Expense{}, &FormError{Field: "category", Message: domainMessage(core.ErrInvalidCategory)}
	}
	date := today
	if f.Date != "" {
		if date, err = core.ParseDate(f.Date); err != nil {
			return core.Expense{}, &FormError{Field: "expenseDate", Message: domainMessage(err)}
		}
	}
	e := core.Expense{
		Amount:        amount,
		Description:   f.Description,
		Category:      category,
		Date:          date,
		PaymentMethod: core.PaymentMethod(strings.ToUpper(f.PaymentMethod)),
		Notes:         f.Notes,
		Source:        core.SourceManual,
		Recurring:     f.Recurring,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, &FormError{Message: domainMessage(err)}
	}
	return e, nil
}

// BudgetForm is the create budget form.
type BudgetForm struct {
	Category       string `form:"category" validate:"required"`
	Amount         string `form:"budgetAmount" validate:"required"`
	Period         string `form:"period" validate:"required,oneof=WEEKLY MONTHLY QUARTERLY YEARLY"`
	StartDate      string `form:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate        string `form:"endDate" validate:"required,datetime=2006-01-02"`
	AlertEnabled   bool   `form:"alertEnabled"`
	AlertThreshold int    `form:"alertThreshold" validate:"gte=1,lte=100"`
}

func bindBudgetForm(form url.Values) BudgetForm {
	threshold := core.DefaultAlertThreshold
	if v := strings.TrimSpace(form.Get("alertThreshold")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			threshold = n
		} else {
			threshold = 0
		}
	}
	return BudgetForm{
		Category:       sanitizeInput(form.Get("category")),
		Amount:         strings.TrimSpace(form.Get("budgetAmount")),
		Period:         strings.ToUpper(strings.TrimSpace(form.Get("period"))),
		StartDate:      strings.TrimSpace(form.Get("startDate")),
		EndDate:        strings.TrimSpace(form.Get("endDate")),
		AlertEnabled:   checkbox(form.Get("alertEnabled")),
		AlertThreshold: threshold,
	}
}

func (f BudgetForm) Request() (core.BudgetRequest, error) {
	if err := checkStruct(f); err != nil {
		return core.BudgetRequest{}, err
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.BudgetRequest{}, &FormError{Field: "budgetAmount", Message: domainMessage(err)}
	}
	category, ok := core.ParseCategory(f.Category)
	if !ok {
		return core.BudgetRequest{}, &FormError{Field: "category", Message: domainMessage(core.ErrInvalidCategory)}
	}
	start, err := core.ParseDate(f.StartDate)
	if err != nil {
		return core.BudgetRequest{}, &FormError{Field: "startDate", Message: domainMessage(err)}
	}
	end, err := core.ParseDate(f.EndDate)
	if err != nil {
		return core.BudgetRequest{}, &FormError{Field: "endDate", Message: domainMessage(err)}
	}
	req := core.BudgetRequest{
		Category:       category,
		BudgetAmount:   amount,
		StartDate:      start,
		EndDate:        end,
		Period:         core.BudgetPeriod(f.Period),
		AlertEnabled:   f.AlertEnabled,
		AlertThreshold: f.AlertThreshold,
	}
	if err := req.Validate(); err != nil {
		return core.BudgetRequest{}, &FormError{Message: domainMessage(err)}
	}
	return req, nil
}

// InvestmentForm is the add position form.
type InvestmentForm struct {
	Symbol        string `form:"symbol" validate:"required,max=10"`
	Name          string `form:"name" validate:"required,max=100"`
	Type          string `form:"type" validate:"required,oneof=STOCK CRYPTO BOND ETF MUTUAL_FUND"`
	Quantity      string `form:"quantity" validate:"required,number"`
	PurchasePrice string `form:"purchasePrice" validate:"required"`
	CurrentPrice  string `form:"currentPrice"`
	PurchaseDate  string `form:"purchaseDate" validate:"omitempty,datetime=2006-01-02"`
	RiskLevel     string `form:"riskLevel" validate:"omitempty,oneof=LOW MEDIUM HIGH VERY_HIGH"`
	Sector        string `form:"sector" validate:"max=50"`
}

func bindInvestmentForm(form url.Values) InvestmentForm {
	return InvestmentForm{
		Symbol:        strings.ToUpper(sanitizeInput(form.Get("symbol"))),
		Name:          sanitizeInput(form.Get("name")),
		Type:          strings.ToUpper(strings.TrimSpace(form.Get("type"))),
		Quantity:      strings.TrimSpace(form.Get("quantity")),
		PurchasePrice: strings.TrimSpace(form.Get("purchasePrice")),
		CurrentPrice:  strings.TrimSpace(form.Get("currentPrice")),
		PurchaseDate:  strings.TrimSpace(form.Get("purchaseDate")),
		RiskLevel:     strings.ToUpper(strings.TrimSpace(form.Get("riskLevel"))),
		Sector:        sanitizeInput(form.Get("sector")),
	}
}

func (f InvestmentForm) Investment(now time.Time) (core.Investment, error) {
	if err := checkStruct(f); err != nil {
		return core.Investment{}, err
	}
	qty, err := strconv.ParseInt(f.Quantity, 10, 64)
	if err != nil || qty <= 0 {
		return core.Investment{}, &FormError{Field: "quantity", Message: "Quantity must be a positive whole number"}
	}
	price, err := core.ParseAmount(f.PurchasePrice)
	if err != nil {
		return core.Investment{}, &FormError{Field: "purchasePrice", Message: domainMessage(err)}
	}
	var current decimal.NullDecimal
	if f.CurrentPrice != "" {
		cp, err := core.ParseAmount(f.CurrentPrice)
		if err != nil {
			return core.Investment{}, &FormError{Field: "currentPrice", Message: domainMessage(err)}
		}
		current = decimal.NewNullDecimal(cp)
	}
	purchased := core.DateTime{Time: now.UTC().Truncate(time.Second)}
	if f.PurchaseDate != "" {
		d, err := core.ParseDate(f.PurchaseDate)
		if err != nil {
			return core.Investment{}, &FormError{Field: "purchaseDate", Message: domainMessage(err)}
		}
		purchased = core.DateTime{Time: d.Time}
	}
	inv := core.Investment{
		Symbol:        f.Symbol,
		Name:          f.Name,
		Type:          core.InvestmentType(f.Type),
		Quantity:      qty,
		PurchasePrice: price,
		CurrentPrice:  current,
		PurchaseDate:  purchased,
		RiskLevel:     core.RiskLevel(f.RiskLevel),
		Sector:        f.Sector,
	}
	if err := inv.Validate(); err != nil {
		return core.Investment{}, &FormError{Message: domainMessage(err)}
	}
	inv.Revalue()
	return inv, nil
}

func bindCredentials(form url.Values) (core.Credentials, error) {
	creds := core.Credentials{
		Username: sanitizeInput(form.Get("username")),
		Password: form.Get("password"),
	}
	return creds, checkStruct(creds)
}

func bindRegistration(form url.Values) (core.Registration, error) {
	reg := core.Registration{
		Username:    sanitizeInput(form.Get("username")),
		Email:       sanitizeInput(form.Get("email")),
		Password:    form.Get("password"),
		FirstName:   sanitizeInput(form.Get("firstName")),
		LastName:    sanitizeInput(form.Get("lastName")),
		PhoneNumber: sanitizeInput(form.Get("phoneNumber")),
	}
	if err := checkStruct(reg); err != nil {
		return reg, err
	}
	if confirm := form.Get("confirmPassword"); confirm != "" && confirm != reg.Password {
		return reg, &FormError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return reg, nil
}

func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, up to limit bytes.
func NewRequestBodyParser(r *http.Request, limit int64) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, limit))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
