package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finflare/internal/core"
)

func sampleReport() core.MonthlyReport {
	return core.MonthlyReport{
		Month:         "2025-06",
		TotalExpenses: decimal.RequireFromString("150"),
		CategoryWiseExpenses: map[string]decimal.Decimal{
			"FOOD_DINING":    decimal.RequireFromString("100"),
			"TRANSPORTATION": decimal.RequireFromString("50"),
		},
	}
}

func TestReportRows(t *testing.T) {
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	rows := reportRows("alice", sampleReport(), at)

	require.Len(t, rows, 3)
	assert.Equal(t, []any{"2025-06", "alice", core.FoodDining.Label(), "100.00", "66.7", "2025-07-01T09:00:00Z"}, rows[0])
	assert.Equal(t, core.Transportation.Label(), rows[1][2])
	assert.Equal(t, []any{"2025-06", "alice", "Total", "150.00", "100.0", "2025-07-01T09:00:00Z"}, rows[2])
}

func TestReportRows_EmptyReport(t *testing.T) {
	rows := reportRows("alice", core.MonthlyReport{Month: "2025-06"}, time.Now())
	require.Len(t, rows, 1)
	assert.Equal(t, "0.00", rows[0][3])
}

func TestSheetsExporter_ExportMonthlyReport(t *testing.T) {
	var gotPath, gotInput string
	var body gsheet.ValueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInput = r.URL.Query().Get("valueInputOption")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updates":{"updatedRange":"Reports!A2:F4","updatedRows":3}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	exp, err := NewWithService(svc, "sheet-1", "Reports", nil)
	require.NoError(t, err)

	ref, err := exp.ExportMonthlyReport(context.Background(), "alice", sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "Reports!A2:F4", ref)
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-1/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Equal(t, "USER_ENTERED", gotInput)
	assert.Len(t, body.Values, 3)
}

func TestSheetsExporter_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	exp, err := NewWithService(svc, "sheet-1", "", nil)
	require.NoError(t, err)

	_, err = exp.ExportMonthlyReport(context.Background(), "alice", sampleReport())
	assert.ErrorContains(t, err, "append report to Reports")
}

func TestCredentials(t *testing.T) {
	_, err := Credentials{}.load()
	assert.Error(t, err)

	b, err := Credentials{JSON: `{"type":"service_account"}`, File: "/ignored"}.load()
	require.NoError(t, err)
	assert.Contains(t, string(b), "service_account")

	_, err = Credentials{File: "/does/not/exist.json"}.load()
	assert.ErrorContains(t, err, "read service account file")
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.ExportMonthlyReport(context.Background(), "alice", sampleReport())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewWithService_RequiresSpreadsheet(t *testing.T) {
	_, err := NewWithService(nil, " ", "Reports", nil)
	assert.Error(t, err)
}
