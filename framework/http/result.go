package http

import "net/http"

// Result is the only return shape an action may produce besides nothing.
// Resolve writes the response and then hands control to next.
type Result interface {
	Resolve(w http.ResponseWriter, r *http.Request, next Next)
}

// ActionResult is a status code plus an optional body. Actions may return it
// by value or by pointer.
//
//	return gohttp.OK(user), nil
//	return gohttp.NewResult(http.StatusAccepted, nil), nil
type ActionResult struct {
	Status int
	Body   any
}

// NewResult returns a result with the given status and body.
func NewResult(status int, body any) *ActionResult {
	return &ActionResult{Status: status, Body: body}
}

// OK is a 200 result.
func OK(body any) *ActionResult { return NewResult(http.StatusOK, body) }

// Created is a 201 result.
func Created(body any) *ActionResult { return NewResult(http.StatusCreated, body) }

// NoContent is a 204 result without a body.
func NoContent() *ActionResult { return NewResult(http.StatusNoContent, nil) }

// Resolve sends only the status when Body is nil, otherwise status and body,
// then calls next(nil). A body that cannot be encoded is passed to next
// instead and nothing is written. A nil result writes nothing and delegates.
func (a *ActionResult) Resolve(w http.ResponseWriter, _ *http.Request, next Next) {
	if a == nil {
		next(nil)
		return
	}
	if err := NewResponse(w).Send(a.Status, a.Body); err != nil {
		next(err)
		return
	}
	next(nil)
}
