// Package module walks a tree of module declarations and wires it into a
// container tree and a route table.
package module

import (
	"context"
	"fmt"
	"reflect"

	"github.com/km-arc/go-modular/framework/container"
	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/logging"
	"github.com/km-arc/go-modular/framework/metadata"
	"github.com/km-arc/go-modular/framework/routing"
	"github.com/km-arc/go-modular/framework/urlpath"
)

// RouteBinder receives every controller once it has been built.
// *routing.Binder implements it.
type RouteBinder interface {
	Bind(prefix string, t reflect.Type, controller any) ([]routing.Route, error)
}

// Builder is the module graph builder.
type Builder struct {
	defs   *metadata.Registry
	binder RouteBinder
	log    *logging.Logger
}

// NewBuilder creates a Builder. A nil log falls back to a default logger.
func NewBuilder(defs *metadata.Registry, binder RouteBinder, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.NewDefault("ModuleBuilder")
	}
	return &Builder{defs: defs, binder: binder, log: log}
}

// Build registers root in c and wires its whole subtree depth-first.
//
// For each module not yet registered anywhere in the tree: the module is
// built in its parent container, a child container is created, the declared
// providers are registered into it, the declared controllers are built from
// it and bound, then the submodules are processed in declaration order with
// the child as their parent. A module reached a second time is skipped, so
// its hook and routes happen exactly once.
func (b *Builder) Build(ctx context.Context, c *container.Container, root metadata.ModuleRef) error {
	return b.build(ctx, c, root, "/")
}

func (b *Builder) build(ctx context.Context, parent *container.Container, ref metadata.ModuleRef, prefix string) error {
	if ref.Type == nil {
		return errs.Definition("module reference without a type")
	}

	_, registered, err := parent.RegisterModule(ctx, ref)
	if err != nil {
		return err
	}
	if !registered {
		b.log.Debugf("module %s already registered, skipping", typeName(ref.Type))
		return nil
	}

	// RegisterModule already validated the declaration.
	facts, _ := metadata.Facts[metadata.ModuleFacts](b.defs, metadata.KindModule, ref.Type, "")
	prefix = urlpath.Join(prefix, facts.BasePath)
	child := parent.CreateChildContainer()

	for _, p := range facts.Providers {
		if err := child.RegisterProvider(p); err != nil {
			return fmt.Errorf("module %s: provider %s: %w", typeName(ref.Type), typeName(p), err)
		}
	}

	for _, ct := range facts.Controllers {
		if err := b.bindController(child, ct, prefix); err != nil {
			return fmt.Errorf("module %s: controller %s: %w", typeName(ref.Type), typeName(ct), err)
		}
	}

	b.log.Debugf("module %s registered", typeName(ref.Type))

	for _, sub := range facts.Modules {
		if err := b.build(ctx, child, sub, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) bindController(c *container.Container, t reflect.Type, prefix string) error {
	facts, err := metadata.Facts[metadata.ControllerFacts](b.defs, metadata.KindController, t, "")
	if err != nil {
		return err
	}
	controller, err := c.ConstructOf(t, facts.New)
	if err != nil {
		return err
	}
	_, err = b.binder.Bind(prefix, t, controller)
	return err
}

func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
