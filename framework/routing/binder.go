// Package routing turns controller declarations into routes on the HTTP
// transport.
package routing

import (
	"fmt"
	"reflect"
	"strings"

	gohttp "github.com/km-arc/go-modular/framework/http"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/urlpath"
)

// Route is one bound (method, path) pair.
type Route struct {
	Method     string
	Path       string
	Action     string
	Controller reflect.Type
	Plan       metadata.ParameterPlan
}

func (r Route) String() string {
	return fmt.Sprintf("%7s %s -> %s", r.Method, r.Path, r.Action)
}

// Binder registers the actions of resolved controllers with a Transport.
type Binder struct {
	defs       *metadata.Registry
	transport  Transport
	dispatcher *gohttp.Dispatcher
	log        *logging.Logger
	baseURL    string

	routes []Route
}

// NewBinder creates a binder. baseURL only decorates the debug log lines.
func NewBinder(defs *metadata.Registry, transport Transport, dispatcher *gohttp.Dispatcher, log *logging.Logger, baseURL string) *Binder {
	if log == nil {
		log = logging.NewDefault("Binder")
	}
	return &Binder{
		defs:       defs,
		transport:  transport,
		dispatcher: dispatcher,
		log:        log,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Bind routes every declared action of controller, declared as type t, under
// prefix + the controller's base path. Actions without a declaration or
// without a method of that name are skipped. Duplicate (method, path) pairs
// are not detected here; the transport keeps the first.
func (b *Binder) Bind(prefix string, t reflect.Type, controller any) ([]Route, error) {
	facts, err := metadata.Facts[metadata.ControllerFacts](b.defs, metadata.KindController, t, "")
	if err != nil {
		return nil, err
	}

	base := urlpath.Join(prefix, facts.BasePath)
	value := reflect.ValueOf(controller)
	ctlName := typeName(t)

	var bound []Route
	for _, name := range facts.Actions {
		action, err := metadata.Facts[metadata.ActionFacts](b.defs, metadata.KindAction, t, name)
		if err != nil {
			b.log.Debugf("skipping %s.%s: no action declaration", ctlName, name)
			continue
		}
		method := value.MethodByName(name)
		if !method.IsValid() {
			b.log.Debugf("skipping %s.%s: not a method", ctlName, name)
			continue
		}

		compiled, err := gohttp.NewAction(ctlName+"."+name, method, action.Params)
		if err != nil {
			return bound, err
		}

		route := Route{
			Method:     strings.ToUpper(action.Method),
			Path:       urlpath.Join(base, action.Path),
			Action:     compiled.Name,
			Controller: t,
			Plan:       action.Params,
		}
		b.transport.Route(route.Method, route.Path, b.dispatcher.Handler(compiled))
		b.log.Debugf("%7s %s%s -> %s", route.Method, b.baseURL, route.Path, route.Action)

		bound = append(bound, route)
	}

	b.routes = append(b.routes, bound...)
	return bound, nil
}

// Routes returns every route bound so far, in binding order.
func (b *Binder) Routes() []Route {
	return append([]Route(nil), b.routes...)
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
