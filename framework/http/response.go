package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/km-arc/go-modular/framework/http/validation"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response wraps http.ResponseWriter with JSON helpers. Actions may take it in
// place of http.ResponseWriter for the response role.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

// ── Body serialization ───────────────────────────────────────────────────────

// Send writes status and, when body is non-nil, the serialized body.
// []byte is sent as-is, strings as text, everything else as JSON. Only an
// encoding failure is returned, and it leaves the response untouched.
func (res *Response) Send(status int, body any) error {
	if body == nil {
		res.w.WriteHeader(status)
		return nil
	}

	var (
		payload     []byte
		contentType string
	)
	switch b := body.(type) {
	case []byte:
		payload, contentType = b, "application/octet-stream"
	case string:
		payload, contentType = []byte(b), "text/plain; charset=utf-8"
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode response body: %w", err)
		}
		payload, contentType = append(encoded, '\n'), "application/json"
	}

	if res.w.Header().Get("Content-Type") == "" {
		res.w.Header().Set("Content-Type", contentType)
	}
	res.w.WriteHeader(status)
	_, _ = res.w.Write(payload)
	return nil
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON sends a JSON response.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Created sends 201 JSON: {"data": v}
func (res *Response) Created(v any) {
	res.JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
//
//	res.Error(http.StatusNotFound, "Resource not found")
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.JSON(http.StatusNotFound, envelope{"message": first(message, "Not found.")})
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.JSON(http.StatusInternalServerError, envelope{"message": first(message, "Server Error.")})
}

// ValidationError sends 422 with the field error bag.
func (res *Response) ValidationError(errors *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errors)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
