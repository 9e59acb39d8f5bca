// Package export publishes monthly reports to a Google spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/ports"
)

var _ ports.ReportExporter = (*SheetsExporter)(nil)

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("report export is not configured")

// Credentials selects the service account used to reach the Sheets API.
// JSON wins over File when both are set.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetsExporter appends report rows to one sheet of a spreadsheet.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
	now           func() time.Time
}

// New builds an exporter authenticated with a service account.
func New(ctx context.Context, spreadsheetID, sheet string, creds Credentials, logger *log.Logger) (*SheetsExporter, error) {
	b, err := creds.load()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(b),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheet, logger)
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheet string, logger *log.Logger) (*SheetsExporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheet == "" {
		sheet = "Reports"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(log.ComponentExport),
		now:           time.Now,
	}, nil
}

// ExportMonthlyReport appends one row per category followed by a total row
// and returns the updated range.
func (e *SheetsExporter) ExportMonthlyReport(ctx context.Context, owner string, report core.MonthlyReport) (string, error) {
	rows := reportRows(owner, report, e.now())
	rng := fmt.Sprintf("%s!A:F", e.sheet)
	vr := &gsheet.ValueRange{Values: rows}

	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append report to %s: %w", e.sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	e.logger.InfoContext(ctx, "Monthly report exported",
		log.FieldUser, owner,
		log.FieldMonth, report.Month,
		log.FieldSheetsRef, ref,
		"rows", len(rows))
	return ref, nil
}

func reportRows(owner string, report core.MonthlyReport, at time.Time) [][]any {
	stamp := at.UTC().Format(time.RFC3339)
	var rows [][]any
	for _, c := range report.Breakdown() {
		rows = append(rows, []any{
			report.Month, owner, c.Label, c.Amount.StringFixed(2), fmt.Sprintf("%.1f", c.Percent), stamp,
		})
	}
	rows = append(rows, []any{
		report.Month, owner, "Total", report.TotalExpenses.StringFixed(2), "100.0", stamp,
	})
	return rows
}

// Unavailable is the exporter used when no spreadsheet is configured.
type Unavailable struct{}

func (Unavailable) ExportMonthlyReport(context.Context, string, core.MonthlyReport) (string, error) {
	return "", ErrNotConfigured
}
