package voicesession

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *Manager) {
	t.Helper()
	m := newTestManager(t, nil)
	return NewHandler(m, slog.Default()), m
}

func doRequest(t *testing.T, h func(echo.Context) error, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandler_CreateSession(t *testing.T) {
	h, m := newTestHandler(t)
	defer m.Close()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/v1/sessions",
		`{"kiosk_id":"lobby-1","language":"ta-IN"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SessionID == "" || resp.KioskID != "lobby-1" || resp.Language != "ta-IN" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if m.SessionCount() != 1 {
		t.Errorf("manager should hold the session, count %d", m.SessionCount())
	}
}

func TestHandler_CreateSessionValidation(t *testing.T) {
	h, m := newTestHandler(t)
	defer m.Close()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/v1/sessions", `{"language":"en-IN"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing kiosk_id should be rejected, got %d", rec.Code)
	}

	rec = doRequest(t, h.CreateSession, http.MethodPost, "/v1/sessions",
		`{"kiosk_id":"lobby-1","language":"fr-FR"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unsupported language should be rejected, got %d", rec.Code)
	}
}

func TestHandler_GetAndEndSession(t *testing.T) {
	h, m := newTestHandler(t)
	defer m.Close()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/v1/sessions",
		`{"kiosk_id":"lobby-1","language":"en-IN"}`)
	var created sessionResponse
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(t, h.GetSession, http.MethodGet, "/v1/sessions/"+created.SessionID, "",
		"id", created.SessionID)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, h.EndSession, http.MethodDelete, "/v1/sessions/"+created.SessionID, "",
		"id", created.SessionID)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if m.SessionCount() != 0 {
		t.Errorf("session should be removed, count %d", m.SessionCount())
	}

	rec = doRequest(t, h.GetSession, http.MethodGet, "/v1/sessions/"+created.SessionID, "",
		"id", created.SessionID)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after removal, got %d", rec.Code)
	}
}

func TestHandler_SelectSlot(t *testing.T) {
	h, m := newTestHandler(t)
	defer m.Close()

	rec := doRequest(t, h.CreateSession, http.MethodPost, "/v1/sessions",
		`{"kiosk_id":"lobby-1","language":"en-IN"}`)
	var created sessionResponse
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(t, h.SelectSlot, http.MethodPost, "/v1/sessions/x/select-slot",
		`{"slot_id":42,"slot_time":"09:00 - 09:30"}`, "id", created.SessionID)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.SelectSlot, http.MethodPost, "/v1/sessions/x/select-slot",
		`{}`, "id", created.SessionID)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing slot_id should be rejected, got %d", rec.Code)
	}

	rec = doRequest(t, h.SelectSlot, http.MethodPost, "/v1/sessions/x/select-slot",
		`{"slot_id":42}`, "id", "missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session should 404, got %d", rec.Code)
	}
}
