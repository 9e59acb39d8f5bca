package http

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finflare/internal/core"
)

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// parseYearMonth extracts year and month from query parameters.
// Returns the current year/month as defaults if not provided or invalid.
func parseYearMonth(r *http.Request, now time.Time) (year, month int) {
	params := ParseMonthParams(r.URL.Query(), now)
	return params.Year, params.Month
}

// parsePathID reads the {id} wildcard.
func parsePathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

func formatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

func signedUSD(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + core.FormatUSD(d)
	}
	return core.FormatUSD(d)
}

// templateFuncs are available to every page and fragment.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"usd":       core.FormatUSD,
		"signedUSD": signedUSD,
		"pct":       formatPercent,
		"width": func(f float64) string {
			if f < 0 {
				f = 0
			}
			if f > 100 {
				f = 100
			}
			return strconv.FormatFloat(f, 'f', 1, 64)
		},
		"rating":   core.HealthRating,
		"month":    func(y, m int) string { return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format("January 2006") },
		"day":      func(d core.Date) string { return d.Format("Jan 2, 2006") },
		"isoDate":  func(d core.Date) string { return d.String() },
		"negative": func(d decimal.Decimal) bool { return d.IsNegative() },
		"price": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return "n/a"
			}
			return core.FormatUSD(d.Decimal)
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
		"same": func(a, b any) bool { return fmt.Sprint(a) == fmt.Sprint(b) },
		"nav":  func() []NavItem { return NavItems },
	}
}
