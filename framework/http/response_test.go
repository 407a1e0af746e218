package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/km-arc/go-modular/framework/errs"
	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/http/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── Send ──────────────────────────────────────────────────────────────────────

func TestResponse_Send_Variants(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		contentType string
		want        string
	}{
		{"nil", nil, "", ""},
		{"bytes", []byte{1, 2}, "application/octet-stream", "\x01\x02"},
		{"string", "pong", "text/plain; charset=utf-8", "pong"},
		{"struct", struct {
			ID int `json:"id"`
		}{1}, "application/json", "{\"id\":1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			if err := res.Send(http.StatusTeapot, tt.body); err != nil {
				t.Fatalf("Send: %v", err)
			}
			if rr.Code != http.StatusTeapot {
				t.Errorf("status: got %d want 418", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type: got %q want %q", ct, tt.contentType)
			}
			if rr.Body.String() != tt.want {
				t.Errorf("body: got %q want %q", rr.Body.String(), tt.want)
			}
		})
	}
}

func TestResponse_Send_EncodeFailureWritesNothing(t *testing.T) {
	res, rr := newResponse(t)

	if err := res.Send(http.StatusOK, make(chan int)); err == nil {
		t.Fatal("expected an encoding error")
	}
	if rr.Body.Len() != 0 || rr.Header().Get("Content-Type") != "" {
		t.Error("nothing should be written when encoding fails")
	}
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	m := decodeJSON(t, rr)
	if m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
}

func TestResponse_Success(t *testing.T) {
	res, rr := newResponse(t)
	res.Success(map[string]any{"id": float64(1)})

	m := decodeJSON(t, rr)
	data, ok := m["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %T", m["data"])
	}
	if data["id"] != float64(1) {
		t.Errorf("data.id: got %v want 1", data["id"])
	}
}

func TestResponse_Created(t *testing.T) {
	res, rr := newResponse(t)
	res.Created(map[string]any{"name": "Alice"})

	if rr.Code != http.StatusCreated {
		t.Errorf("status: got %d want 201", rr.Code)
	}
	if _, ok := decodeJSON(t, rr)["data"]; !ok {
		t.Error("expected 'data' key in response")
	}
}

func TestResponse_NoContent(t *testing.T) {
	res, rr := newResponse(t)
	res.NoContent()

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
}

// ── Error helpers ─────────────────────────────────────────────────────────────

func TestResponse_NotFound_DefaultMessage(t *testing.T) {
	res, rr := newResponse(t)
	res.NotFound()

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d want 404", rr.Code)
	}
	if m := decodeJSON(t, rr); m["message"] != "Not found." {
		t.Errorf("message: got %v", m["message"])
	}
}

func TestResponse_ServerError_CustomMessage(t *testing.T) {
	res, rr := newResponse(t)
	res.ServerError("db down")

	if m := decodeJSON(t, rr); m["message"] != "db down" {
		t.Errorf("message: got %v", m["message"])
	}
}

// ── RenderError ───────────────────────────────────────────────────────────────

func TestRenderError_Diagnostic(t *testing.T) {
	rr := httptest.NewRecorder()
	gohttp.RenderError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errs.Server("action X returned int"), false)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d want 500", rr.Code)
	}
	m := decodeJSON(t, rr)
	if m["message"] != "action X returned int" || m["kind"] != "server" {
		t.Errorf("body: got %v", m)
	}
}

func TestRenderError_ProductionHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	gohttp.RenderError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret dsn"), true)

	if m := decodeJSON(t, rr); m["message"] != "Server Error." {
		t.Errorf("message: got %v", m["message"])
	}
}

func TestRenderError_ValidationBagIs422(t *testing.T) {
	type input struct {
		Name string `json:"name" validate:"required"`
	}
	bag := validation.New().Struct(&input{})
	rr := httptest.NewRecorder()

	gohttp.RenderError(rr, httptest.NewRequest(http.MethodPost, "/", nil), errs.BadRequest(bag, "validation failed"), false)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d want 422", rr.Code)
	}
	m := decodeJSON(t, rr)
	fields, ok := m["errors"].(map[string]any)
	if !ok || fields["name"] == nil {
		t.Errorf("errors bag: got %v", m)
	}
}

func TestRenderError_BadRequestStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	gohttp.RenderError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errs.BadRequest(nil, "path parameter \"id\""), true)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d want 400", rr.Code)
	}
}
