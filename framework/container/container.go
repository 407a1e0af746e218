package container

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/metadata"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Factory builds a concrete value, resolving its dependencies through r.
type Factory = metadata.Constructor

// binding holds a registered factory and its lifecycle.
type binding struct {
	factory Factory
	scope   metadata.Scope

	// serializes singleton construction for this token
	mu sync.Mutex
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is a node in the provider tree.
//
// Resolution looks in the local singleton cache, then at local bindings, then
// walks up to the parent. It never looks down, so a token registered in one
// module's container is invisible to its parent and siblings.
type Container struct {
	mu sync.RWMutex

	parent *Container
	defs   *metadata.Registry

	// modules is shared by every container of one tree
	modules *ModuleSet

	// token → binding
	bindings map[metadata.Token]*binding

	// token → resolved singleton instance
	instances map[metadata.Token]any

	// alias → token (canonical key)
	aliases map[metadata.Token]metadata.Token

	// resolved callbacks: []func(token, instance)
	afterResolving []func(metadata.Token, any)
}

// New creates an empty root container reading declarations from defs.
func New(defs *metadata.Registry) *Container {
	return newContainer(nil, defs, NewModuleSet())
}

func newContainer(parent *Container, defs *metadata.Registry, modules *ModuleSet) *Container {
	return &Container{
		parent:    parent,
		defs:      defs,
		modules:   modules,
		bindings:  make(map[metadata.Token]*binding),
		instances: make(map[metadata.Token]any),
		aliases:   make(map[metadata.Token]metadata.Token),
	}
}

// CreateChildContainer returns a new container whose parent is c.
func (c *Container) CreateChildContainer() *Container {
	return newContainer(c, c.defs, c.modules)
}

func (c *Container) IsRoot() bool             { return c.parent == nil }
func (c *Container) Parent() *Container       { return c.parent }
func (c *Container) Defs() *metadata.Registry { return c.defs }
func (c *Container) Modules() *ModuleSet      { return c.modules }

// ── Registration ──────────────────────────────────────────────────────────────

// Register inserts a factory under token without instantiating it.
// Re-registering a token drops its cached singleton.
func (c *Container) Register(token metadata.Token, scope metadata.Scope, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(token)
	delete(c.instances, key)
	c.bindings[key] = &binding{factory: factory, scope: scope}
}

// Bind registers a transient factory.
//
//	c.Bind("UserRepository", func(r metadata.Resolver) (any, error) {
//	    db, err := container.Resolve[*sqlx.DB](r, "db")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &UserRepository{DB: db}, nil
//	})
func (c *Container) Bind(token metadata.Token, factory Factory) {
	c.Register(token, metadata.Transient, factory)
}

// Singleton registers a factory whose result is cached in c after the first
// resolution.
func (c *Container) Singleton(token metadata.Token, factory Factory) {
	c.Register(token, metadata.Singleton, factory)
}

// Instance registers a pre-built value as a singleton.
//
//	c.Instance(providers.ConfigToken, cfg)
func (c *Container) Instance(token metadata.Token, instance any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.canonical(token)
	delete(c.bindings, key)
	c.instances[key] = instance
}

// Alias registers an alternative name for a token.
func (c *Container) Alias(token, alias metadata.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", token))
	}
	c.aliases[alias] = c.canonical(token)
}

// RegisterProvider reads the Provider declaration of t and inserts it under
// its token and scope. Nothing is constructed yet.
func (c *Container) RegisterProvider(t reflect.Type) error {
	facts, err := metadata.Facts[metadata.ProviderFacts](c.defs, metadata.KindProvider, t, "")
	if err != nil {
		return err
	}
	factory := facts.New
	if factory == nil {
		factory = zeroFactory(t)
	}
	c.Register(facts.Token, facts.Scope, factory)
	return nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolve returns the instance registered under token in c or its nearest
// ancestor that has it.
func (c *Container) Resolve(token metadata.Token) (any, error) {
	return c.resolve(token, nil)
}

// Construct runs factory with dependencies resolved from c. The result is not
// registered; controllers are built this way.
func (c *Container) Construct(factory Factory) (any, error) {
	return factory(&resolution{owner: c})
}

// ConstructOf is Construct for a unit of type t; a nil factory yields a fresh
// zero value of t.
func (c *Container) ConstructOf(t reflect.Type, factory Factory) (any, error) {
	if factory == nil {
		factory = zeroFactory(t)
	}
	return c.Construct(factory)
}

func (c *Container) resolve(token metadata.Token, path []metadata.Token) (any, error) {
	c.mu.RLock()
	key := c.canonical(token)
	inst, cached := c.instances[key]
	b, bound := c.bindings[key]
	c.mu.RUnlock()

	if slices.Contains(path, key) {
		return nil, errs.Definition("circular dependency: %s", chain(append(path, key)))
	}
	if cached {
		return inst, nil
	}
	if bound {
		return c.build(key, b, path)
	}
	if c.parent != nil {
		return c.parent.resolve(token, path)
	}
	return nil, errs.Unregistered(string(token))
}

// build runs a local binding, caching singletons in c.
func (c *Container) build(key metadata.Token, b *binding, path []metadata.Token) (any, error) {
	if b.scope != metadata.Singleton {
		// Request scope has no request boundary inside the core, so it is
		// rebuilt per resolution like Transient.
		return c.runFactory(key, b.factory, path)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c.mu.RLock()
	inst, ok := c.instances[key]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	inst, err := c.runFactory(key, b.factory, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.instances[key] = inst
	c.mu.Unlock()
	return inst, nil
}

// runFactory executes a factory with dependencies resolved from c.
func (c *Container) runFactory(key metadata.Token, f Factory, path []metadata.Token) (any, error) {
	next := append(slices.Clone(path), key)
	instance, err := f(&resolution{owner: c, path: next})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	c.fireAfterResolving(key, instance)
	return instance, nil
}

// resolution is the Resolver handed to factories. It resolves from the
// container that owns the binding and carries the chain under construction.
type resolution struct {
	owner *Container
	path  []metadata.Token
}

func (r *resolution) Resolve(token metadata.Token) (any, error) {
	return r.owner.resolve(token, r.path)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound returns true if token is registered locally.
func (c *Container) Bound(token metadata.Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key := c.canonical(token)
	_, hasBinding := c.bindings[key]
	_, hasInstance := c.instances[key]
	return hasBinding || hasInstance
}

// Resolved returns true if token has a cached instance in c.
func (c *Container) Resolved(token metadata.Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[c.canonical(token)]
	return ok
}

// Bindings returns the locally registered tokens (for debugging).
func (c *Container) Bindings() []metadata.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]metadata.Token, 0, len(c.bindings)+len(c.instances))
	for k := range c.bindings {
		out = append(out, k)
	}
	for k := range c.instances {
		if _, already := c.bindings[k]; !already {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// canonical resolves an alias to its canonical key (must hold mu).
func (c *Container) canonical(token metadata.Token) metadata.Token {
	if target, ok := c.aliases[token]; ok {
		return target
	}
	return token
}

// ── Callbacks ─────────────────────────────────────────────────────────────────

// AfterResolving registers a callback fired after c constructs any instance.
// Child containers do not inherit it.
func (c *Container) AfterResolving(cb func(token metadata.Token, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

func (c *Container) fireAfterResolving(token metadata.Token, instance any) {
	c.mu.RLock()
	cbs := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range cbs {
		cb(token, instance)
	}
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

// zeroFactory builds a fresh zero value of t. Pointer types get a newly
// allocated element.
func zeroFactory(t reflect.Type) Factory {
	return func(metadata.Resolver) (any, error) {
		if t.Kind() == reflect.Pointer {
			return reflect.New(t.Elem()).Interface(), nil
		}
		return reflect.New(t).Elem().Interface(), nil
	}
}

func chain(path []metadata.Token) string {
	parts := make([]string, len(path))
	for i, t := range path {
		parts[i] = string(t)
	}
	return strings.Join(parts, " -> ")
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve resolves token from r and type-asserts the result. It works both on
// a *Container and on the Resolver a factory receives.
//
//	svc, err := container.Resolve[IUserService](r, app.UserServiceToken)
func Resolve[T any](r metadata.Resolver, token metadata.Token) (T, error) {
	var zero T
	instance, err := r.Resolve(token)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errs.Definition("[%s] resolved to %T, not %s", token, instance, reflect.TypeFor[T]())
	}
	return typed, nil
}

// ResolveType resolves T under its default token.
func ResolveType[T any](r metadata.Resolver) (T, error) {
	return Resolve[T](r, metadata.TokenOf(reflect.TypeFor[T]()))
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](r metadata.Resolver, token metadata.Token) T {
	typed, err := Resolve[T](r, token)
	if err != nil {
		panic(fmt.Sprintf("container: %v", err))
	}
	return typed
}
