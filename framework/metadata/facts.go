package metadata

import (
	"context"
	"net/http"
	"reflect"
	"slices"

	"github.com/km-arc/go-modular/framework/urlpath"
)

// ── Tokens & scopes ──────────────────────────────────────────────────────────

// Token names a registrable unit inside a container.
type Token string

// Scope is the lifecycle of a provider.
type Scope string

const (
	// Singleton instances are built once per owning container and reused.
	Singleton Scope = "singleton"
	// Transient instances are built on every resolution.
	Transient Scope = "transient"
	// Request-scoped instances are built fresh per resolution by the core.
	Request Scope = "request"
)

// Resolver resolves tokens into instances. *container.Container implements it.
type Resolver interface {
	Resolve(token Token) (any, error)
}

// Constructor builds an instance, pulling its dependencies from r.
type Constructor func(r Resolver) (any, error)

// TypeOf returns the identity used to key facts for T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// TokenOf returns the default token of a type: its package-qualified name.
//
//	metadata.TokenOf(metadata.TypeOf[*UserService]()) // "example.com/app.UserService"
func TokenOf(t reflect.Type) Token {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return Token(t.PkgPath() + "." + t.Name())
}

// ── Modules ──────────────────────────────────────────────────────────────────

// RegisterHook runs once, right after a module instance is first built.
type RegisterHook func(ctx context.Context, instance any) error

// ModuleRef points at a module, optionally overriding its token and attaching
// a registration hook.
type ModuleRef struct {
	Type       reflect.Type
	Token      Token
	OnRegister RegisterHook
}

// Ref returns a plain reference to module type T.
func Ref[T any]() ModuleRef {
	return ModuleRef{Type: TypeOf[T]()}
}

// WithHook returns a copy of ref carrying hook.
func (ref ModuleRef) WithHook(hook RegisterHook) ModuleRef {
	ref.OnRegister = hook
	return ref
}

// ModuleFacts declares a module.
type ModuleFacts struct {
	Token Token
	// BasePath prefixes every route bound inside this module's subtree.
	BasePath    string
	New         Constructor
	Modules     []ModuleRef
	Controllers []reflect.Type
	Providers   []reflect.Type
}

// DefineModule declares T as a module.
func DefineModule[T any](r *Registry, facts ModuleFacts) {
	r.Define(TypeOf[T](), "", KindModule, facts)
}

// ── Providers ────────────────────────────────────────────────────────────────

// ProviderFacts declares an injectable provider.
type ProviderFacts struct {
	Token Token
	Scope Scope
	New   Constructor
}

// DefineProvider declares T as a provider. Token defaults to TokenOf(T) and
// Scope to Singleton.
func DefineProvider[T any](r *Registry, facts ProviderFacts) {
	t := TypeOf[T]()
	if facts.Token == "" {
		facts.Token = TokenOf(t)
	}
	if facts.Scope == "" {
		facts.Scope = Singleton
	}
	r.Define(t, "", KindProvider, facts)
}

// ── Controllers & actions ────────────────────────────────────────────────────

// ControllerOptions is the input to DefineController.
type ControllerOptions struct {
	// Base is an inherited prefix shared by a family of controllers.
	Base string
	Path string
	New  Constructor
}

// ControllerFacts is the stored controller declaration.
type ControllerFacts struct {
	BasePath string
	Actions  []string
	New      Constructor
}

// DefineController declares T as a controller. The base path is composed
// here, once; action names already declared for T are preserved.
func DefineController[T any](r *Registry, opts ControllerOptions) {
	r.update(TypeOf[T](), "", func(cur Record, ok bool) Record {
		var actions []string
		if prev, isCtl := cur.Facts.(ControllerFacts); ok && isCtl {
			actions = prev.Actions
		}
		return Record{Kind: KindController, Facts: ControllerFacts{
			BasePath: urlpath.Join(opts.Base, opts.Path),
			Actions:  actions,
			New:      opts.New,
		}}
	})
}

// Role is the semantic role of a handler argument.
type Role string

const (
	RoleRequest  Role = "request"
	RoleResponse Role = "response"
	RoleNext     Role = "next"
	RoleBody     Role = "body"
	RoleParam    Role = "param"
	RoleQuery    Role = "query"
	RoleContext  Role = "context"
)

// Binding places the runtime value of Role at argument position Index.
// Name selects the path segment or query key for RoleParam and RoleQuery.
type Binding struct {
	Role  Role
	Name  string
	Index int
}

// ParameterPlan is the ordered list of argument bindings of one action.
type ParameterPlan []Binding

func Plan(bindings ...Binding) ParameterPlan { return bindings }

func Req(index int) Binding  { return Binding{Role: RoleRequest, Index: index} }
func Res(index int) Binding  { return Binding{Role: RoleResponse, Index: index} }
func Next(index int) Binding { return Binding{Role: RoleNext, Index: index} }
func Body(index int) Binding { return Binding{Role: RoleBody, Index: index} }
func Ctx(index int) Binding  { return Binding{Role: RoleContext, Index: index} }

func Param(name string, index int) Binding {
	return Binding{Role: RoleParam, Name: name, Index: index}
}

func Query(name string, index int) Binding {
	return Binding{Role: RoleQuery, Name: name, Index: index}
}

// ActionFacts declares one routed method of a controller.
type ActionFacts struct {
	Name   string
	Method string
	Path   string
	Params ParameterPlan
}

// DefineAction declares member of controller T as an action and appends it
// to the controller's ordered action list. Method defaults to GET.
func DefineAction[T any](r *Registry, member string, facts ActionFacts) {
	t := TypeOf[T]()
	facts.Name = member
	if facts.Method == "" {
		facts.Method = http.MethodGet
	}
	r.Define(t, member, KindAction, facts)

	r.update(t, "", func(cur Record, ok bool) Record {
		ctl, _ := cur.Facts.(ControllerFacts)
		if !slices.Contains(ctl.Actions, member) {
			ctl.Actions = append(slices.Clone(ctl.Actions), member)
		}
		if !ok {
			// Actions may be declared before the controller itself.
			return Record{Facts: ctl}
		}
		return Record{Kind: cur.Kind, Facts: ctl}
	})
}

// ── Entities ─────────────────────────────────────────────────────────────────

// EntityFacts maps a struct type onto a table.
type EntityFacts struct {
	Table   string
	Columns []string
}

// DefineEntity declares T as an entity stored in table.
func DefineEntity[T any](r *Registry, table string, columns ...string) {
	r.Define(TypeOf[T](), "", KindEntity, EntityFacts{Table: table, Columns: columns})
}
