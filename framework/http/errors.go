package http

import (
	"errors"
	"net/http"

	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/http/validation"
)

// RenderError is the diagnostic renderer that errors handed to next end up
// in. Validation failures become 422 with the field bag. Everything else is
// mapped by errs.StatusOf; outside production the message and kind are
// included.
func RenderError(w http.ResponseWriter, _ *http.Request, err error, production bool) {
	res := NewResponse(w)

	var bag *validation.Errors
	if errors.As(err, &bag) {
		res.ValidationError(bag)
		return
	}

	status := errs.StatusOf(err)
	if production {
		if status == http.StatusInternalServerError {
			res.ServerError()
			return
		}
		res.Error(status, http.StatusText(status))
		return
	}

	body := envelope{"message": err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		body["kind"] = e.Kind
	}
	res.JSON(status, body)
}
