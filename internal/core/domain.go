package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend binds BigDecimal fields from JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

type (
	// Date is a calendar day as exchanged with the backend (yyyy-mm-dd).
	Date struct {
		time.Time
	}

	// DateTime is a backend LocalDateTime without zone information.
	DateTime struct {
		time.Time
	}

	// Session is the authenticated identity held for one browser.
	Session struct {
		Token     string
		UserID    int64
		Username  string
		Email     string
		FirstName string
		LastName  string
	}

	AuthResponse struct {
		AccessToken string `json:"accessToken"`
		TokenType   string `json:"tokenType,omitempty"`
		ID          int64  `json:"id"`
		Username    string `json:"username"`
		Email       string `json:"email"`
		FirstName   string `json:"firstName,omitempty"`
		LastName    string `json:"lastName,omitempty"`
	}

	TokenValidation struct {
		Valid bool          `json:"valid"`
		User  *AuthResponse `json:"user,omitempty"`
	}

	Credentials struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	Registration struct {
		Username    string `json:"username" validate:"required,min=3,max=20"`
		Email       string `json:"email" validate:"required,email,max=50"`
		Password    string `json:"password" validate:"required,min=6,max=40"`
		FirstName   string `json:"firstName,omitempty" validate:"max=50"`
		LastName    string `json:"lastName,omitempty" validate:"max=50"`
		PhoneNumber string `json:"phoneNumber,omitempty" validate:"max=20"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 255 characters)")
	ErrNotesTooLong        = errors.New("notes too long (max 500 characters)")
	ErrEmptyCategory       = errors.New("empty category")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrEmptyPaymentMethod  = errors.New("empty payment method")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidPeriod       = errors.New("invalid budget period")
	ErrInvalidDateRange    = errors.New("end date must not be before start date")
	ErrInvalidThreshold    = errors.New("alert threshold must be between 1 and 100")
	ErrEmptySymbol         = errors.New("empty symbol")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
	ErrInvalidInvestment   = errors.New("invalid investment type")
	ErrEmptyInvestmentName = errors.New("empty investment name")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a yyyy-mm-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Some endpoints send full timestamps where a day is expected.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateTimeLayout))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = DateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = DateTime{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, dateTimeLayout, "2006-01-02T15:04:05.999999999", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = DateTime{Time: t}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Session converts a signin response into the session it authenticates.
func (a AuthResponse) Session(token string) Session {
	if token == "" {
		token = a.AccessToken
	}
	return Session{
		Token:     token,
		UserID:    a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

// DisplayName prefers the first name and falls back to the username.
func (s Session) DisplayName() string {
	if strings.TrimSpace(s.FirstName) != "" {
		return s.FirstName
	}
	return s.Username
}

// Initials is used by the shell avatar.
func (s Session) Initials() string {
	name := []rune(s.DisplayName())
	if len(name) == 0 {
		return "?"
	}
	return strings.ToUpper(string(name[0]))
}
