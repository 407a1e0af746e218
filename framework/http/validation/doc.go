// Package validation checks decoded request bodies against struct tags and
// collects failures into a field-keyed error bag.
//
// # Basic Usage
//
//	type CreateUser struct {
//	    Name  string `json:"name"  validate:"required,min=2,max=100"`
//	    Email string `json:"email" validate:"required,email"`
//	}
//
//	if bag := validation.New().Struct(&input); bag.Has() {
//	    // bag.Bag: {"email": ["The email must be a valid email address."]}
//	    // JSON:    {"errors": {"field": ["message1", "message2"]}}
//	}
//
// Fields are reported under their json name. Rules are the
// go-playground/validator tags; the common ones (required, email, url, uuid,
// min, max, len, oneof, alpha, alphanum, gt, gte, lt, lte, eqfield) get a
// readable message, every other tag reports "The x format is invalid.".
//
// The dispatch pipeline runs this on every body-bound action argument and
// turns a non-empty bag into a 422 response.
package validation
