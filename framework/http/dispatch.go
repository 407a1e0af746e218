package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/http/validation"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/metrics"
)

// Next is the continuation handed to every action. next(nil) delegates to
// whatever runs after the action; next(err) hands err to error rendering.
type Next func(err error)

// HandlerFunc is the transport-facing form of a bound action.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, next Next)

// Observer receives one outcome per dispatch. *metrics.Metrics implements it.
type Observer interface {
	ObserveDispatch(action, outcome string)
}

var (
	errorType     = reflect.TypeFor[error]()
	contextType   = reflect.TypeFor[context.Context]()
	stdReqType    = reflect.TypeFor[*http.Request]()
	reqType       = reflect.TypeFor[*Request]()
	writerType    = reflect.TypeFor[http.ResponseWriter]()
	resType       = reflect.TypeFor[*Response]()
	continuations = reflect.TypeFor[func(error)]()
)

// ── Action ───────────────────────────────────────────────────────────────────

// Action is a controller method checked against its parameter plan.
type Action struct {
	Name string

	fn   reflect.Value
	plan metadata.ParameterPlan
	in   []reflect.Type
}

// NewAction checks plan against fn's signature. Every binding must target an
// existing parameter of a type its role can fill, no index may be bound
// twice, and fn may return at most a value and a trailing error.
func NewAction(name string, fn reflect.Value, plan metadata.ParameterPlan) (*Action, error) {
	if fn.Kind() != reflect.Func {
		return nil, errs.Definition("action %s is %s, not a method", name, fn.Kind())
	}
	t := fn.Type()
	if t.IsVariadic() {
		return nil, errs.Definition("action %s must not be variadic", name)
	}
	if err := checkResults(name, t); err != nil {
		return nil, err
	}

	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}

	seen := make(map[int]bool, len(plan))
	for _, b := range plan {
		if b.Index < 0 || b.Index >= len(in) {
			return nil, errs.Definition("action %s binds %s to argument %d, but it takes %d", name, b.Role, b.Index, len(in))
		}
		if seen[b.Index] {
			return nil, errs.Definition("action %s binds argument %d twice", name, b.Index)
		}
		seen[b.Index] = true
		if err := checkBinding(name, b, in[b.Index]); err != nil {
			return nil, err
		}
	}
	return &Action{Name: name, fn: fn, plan: plan, in: in}, nil
}

func checkResults(name string, t reflect.Type) error {
	switch t.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if t.Out(1) != errorType {
			return errs.Definition("action %s: second result must be error, got %s", name, t.Out(1))
		}
		return nil
	}
	return errs.Definition("action %s returns %d values, at most 2 allowed", name, t.NumOut())
}

func checkBinding(name string, b metadata.Binding, t reflect.Type) error {
	ok := true
	switch b.Role {
	case metadata.RoleRequest:
		ok = t == stdReqType || t == reqType
	case metadata.RoleResponse:
		ok = t == writerType || t == resType
	case metadata.RoleNext:
		ok = t.Kind() == reflect.Func && continuations.ConvertibleTo(t)
	case metadata.RoleContext:
		ok = t == contextType
	case metadata.RoleParam, metadata.RoleQuery:
		if b.Name == "" {
			return errs.Definition("action %s: %s binding at %d has no name", name, b.Role, b.Index)
		}
		ok = scalar(t)
	case metadata.RoleBody:
	default:
		return errs.Definition("action %s: unknown role %q", name, b.Role)
	}
	if !ok {
		return errs.Definition("action %s: argument %d of type %s cannot hold the %s", name, b.Index, t, b.Role)
	}
	return nil
}

func scalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// arguments builds the positional arguments for one request. Positions no
// binding names get their zero value.
func (a *Action) arguments(w http.ResponseWriter, r *http.Request, next Next, v *validation.Validator) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(a.in))
	for i, t := range a.in {
		args[i] = reflect.Zero(t)
	}

	for _, b := range a.plan {
		t := a.in[b.Index]
		switch b.Role {
		case metadata.RoleRequest:
			if t == reqType {
				args[b.Index] = reflect.ValueOf(NewRequest(r))
			} else {
				args[b.Index] = reflect.ValueOf(r)
			}
		case metadata.RoleResponse:
			if t == resType {
				args[b.Index] = reflect.ValueOf(NewResponse(w))
			} else {
				args[b.Index] = reflect.ValueOf(&w).Elem()
			}
		case metadata.RoleNext:
			args[b.Index] = reflect.ValueOf(func(err error) { next(err) }).Convert(t)
		case metadata.RoleContext:
			args[b.Index] = reflect.ValueOf(r.Context())
		case metadata.RoleParam:
			val, err := parseScalar(chi.URLParam(r, b.Name), t)
			if err != nil {
				return nil, errs.BadRequest(err, "path parameter %q", b.Name)
			}
			args[b.Index] = val
		case metadata.RoleQuery:
			raw := r.URL.Query().Get(b.Name)
			if raw == "" {
				continue
			}
			val, err := parseScalar(raw, t)
			if err != nil {
				return nil, errs.BadRequest(err, "query parameter %q", b.Name)
			}
			args[b.Index] = val
		case metadata.RoleBody:
			val, err := decodeBody(r, t, v)
			if err != nil {
				return nil, err
			}
			args[b.Index] = val
		}
	}
	return args, nil
}

func parseScalar(raw string, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return v, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, t.Bits())
		if err != nil {
			return v, err
		}
		v.SetFloat(f)
	}
	return v, nil
}

// decodeBody binds the request body into a fresh value of t and validates
// it. Pointer parameters receive a pointer to the decoded value.
func decodeBody(r *http.Request, t reflect.Type, v *validation.Validator) (reflect.Value, error) {
	target := t
	if t.Kind() == reflect.Pointer {
		target = t.Elem()
	}
	ptr := reflect.New(target)
	if err := NewRequest(r).Bind(ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	if bag := v.Struct(ptr.Interface()); bag.Has() {
		return reflect.Value{}, errs.BadRequest(bag, "validation failed")
	}
	if t.Kind() == reflect.Pointer {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

// invoke calls the action, turning a panic into an error. An error value
// passed to panic is returned as-is.
func (a *Action) invoke(args []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = errs.Handler(fmt.Errorf("%v", rec), "action %s panicked", a.Name)
		}
	}()
	return a.fn.Call(args), nil
}

// interpret splits the call results into the returned value and error.
func interpret(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}

	last := out[len(out)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:len(out)-1]
		if len(out) == 0 {
			return nil, nil
		}
	}

	v := out[0]
	// an interface result may hold a typed nil
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil, nil
		}
	}
	return v.Interface(), nil
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

// Dispatcher runs bound actions under the result/error contract:
//
//   - no result: next(nil)
//   - a Result: write it, then next(nil)
//   - any other value: next with a server error
//   - an error or panic: a bare 500 in production, next(err) otherwise
type Dispatcher struct {
	production bool
	log        *logging.Logger
	observer   Observer
	validator  *validation.Validator
}

// NewDispatcher creates a dispatcher. observer may be nil.
func NewDispatcher(production bool, log *logging.Logger, observer Observer) *Dispatcher {
	if log == nil {
		log = logging.NewDefault("Dispatcher")
	}
	return &Dispatcher{
		production: production,
		log:        log,
		observer:   observer,
		validator:  validation.New(),
	}
}

// Handler returns the transport-facing handler for a.
func (d *Dispatcher) Handler(a *Action) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next Next) {
		outcome := d.dispatch(a, w, r, next)
		if d.observer != nil {
			d.observer.ObserveDispatch(a.Name, outcome)
		}
	}
}

func (d *Dispatcher) dispatch(a *Action, w http.ResponseWriter, r *http.Request, next Next) string {
	args, err := a.arguments(w, r, next, d.validator)
	if err != nil {
		return d.fail(a, w, r, next, err)
	}

	out, err := a.invoke(args)
	if err != nil {
		return d.fail(a, w, r, next, err)
	}

	result, err := interpret(out)
	if err != nil {
		return d.fail(a, w, r, next, err)
	}

	if value, ok := result.(ActionResult); ok {
		result = &value
	}
	switch res := result.(type) {
	case nil:
		next(nil)
		return metrics.OutcomeDelegated
	case Result:
		res.Resolve(w, r, next)
		return metrics.OutcomeResult
	default:
		d.log.WithField("action", a.Name).Warnf("action returned %T, not an action result", result)
		next(errs.Server("action %s returned %T, not an action result", a.Name, result))
		return metrics.OutcomeViolation
	}
}

func (d *Dispatcher) fail(a *Action, w http.ResponseWriter, r *http.Request, next Next, err error) string {
	if !d.production {
		next(err)
		return metrics.OutcomeError
	}

	entry := d.log.WithError(err).WithFields(logrus.Fields{
		"action":     a.Name,
		"path":       r.URL.Path,
		"request_id": NewRequest(r).ID(),
	})
	var e *errs.Error
	if errors.As(err, &e) {
		entry = entry.WithField("kind", e.Kind)
	}
	entry.Error("action failed")

	w.WriteHeader(http.StatusInternalServerError)
	return metrics.OutcomeError
}
