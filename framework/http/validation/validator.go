package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors keyed by field.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return e != nil && len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Error joins the first message of every field, sorted by field name.
func (e *Errors) Error() string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e.First(f))
	}
	return strings.Join(msgs, " ")
}

// ── Validator ────────────────────────────────────────────────────────────────

// Validator checks structs against their `validate` tags. It is safe for
// concurrent use and caches struct metadata, so one instance is shared.
//
//	type CreateUser struct {
//	    Name  string `json:"name"  validate:"required,min=2,max=100"`
//	    Email string `json:"email" validate:"required,email"`
//	}
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that reports fields by their json name.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. It returns nil when s is valid or is not a struct.
func (val *Validator) Struct(s any) *Errors {
	if !isStruct(s) {
		return nil
	}
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		bag := &Errors{}
		bag.add("document", err.Error())
		return bag
	}

	bag := &Errors{}
	for _, fe := range fieldErrs {
		bag.add(fe.Field(), message(fe))
	}
	return bag
}

func isStruct(s any) bool {
	t := reflect.TypeOf(s)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}

// message renders one failed rule in the familiar "The x field ..." form.
func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "url", "http_url":
		return fmt.Sprintf("The %s must be a valid URL.", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("The %s must be a valid UUID.", field)
	case "min":
		if isString {
			return fmt.Sprintf("The %s must be at least %s characters.", field, param)
		}
		return fmt.Sprintf("The %s must be at least %s.", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("The %s may not be greater than %s characters.", field, param)
		}
		return fmt.Sprintf("The %s may not be greater than %s.", field, param)
	case "len":
		return fmt.Sprintf("The %s must be %s characters.", field, param)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "alpha":
		return fmt.Sprintf("The %s may only contain letters.", field)
	case "alphanum":
		return fmt.Sprintf("The %s may only contain letters and numbers.", field)
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, param)
	case "gte":
		return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
	case "lt":
		return fmt.Sprintf("The %s must be less than %s.", field, param)
	case "lte":
		return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
	case "eqfield":
		return fmt.Sprintf("The %s and %s must match.", field, strings.ToLower(param))
	}
	return fmt.Sprintf("The %s format is invalid.", field)
}
