package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflare/internal/session"
)

func decodeTrigger(t *testing.T, w *httptest.ResponseRecorder) map[string]map[string]any {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "HX-Trigger header not set")
	var out map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusOK).
		Body([]byte("test")).
		Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", w.Body.String())
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerFormReset().
		TriggerExpensesChanged(4).
		TriggerSuccessNotification("Expense added").
		Write(w)

	triggers := decodeTrigger(t, w)
	assert.Contains(t, triggers, "form:reset")
	assert.EqualValues(t, 4, triggers["expenses:changed"]["count"])
	assert.Equal(t, map[string]any{"type": "success", "message": "Expense added", "duration": float64(3000)}, triggers["show-notification"])
}

func TestHTMXResponseBuilder_TriggerNoticesUsesLast(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerNotices([]session.Notice{
			{Type: session.NoticeSuccess, Message: "first"},
			{Type: session.NoticeError, Message: "second"},
		}).
		Write(w)

	note := decodeTrigger(t, w)["show-notification"]
	assert.Equal(t, "error", note["type"])
	assert.Equal(t, "second", note["message"])
	assert.EqualValues(t, 5000, note["duration"])
}

func TestHTMXResponseBuilder_NoNotices(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().TriggerNotices(nil).Write(w)
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_RedirectAndHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Redirect("/login").
		Header("X-Custom", "value").
		Status(http.StatusCreated).
		Write(w)

	assert.Equal(t, "/login", w.Header().Get("HX-Redirect"))
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Invalid input"), http.StatusBadRequest, `<div class="error" role="alert">Invalid input</div>`},
		{"unprocessable entity", UnprocessableEntityError("Validation failed"), http.StatusUnprocessableEntity, `<div class="error" role="alert">Validation failed</div>`},
		{"bad gateway", BadGatewayError("Backend down"), http.StatusBadGateway, `<div class="error" role="alert">Backend down</div>`},
		{"not found", NotFoundError("Resource not found"), http.StatusNotFound, `<div class="error" role="alert">Resource not found</div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, "error", decodeTrigger(t, w)["show-notification"]["type"])
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	BadRequestError("<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}
