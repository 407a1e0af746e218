package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/km-arc/go-modular/framework/metadata"
)

// ModuleSet records the modules already built in one container tree.
// It is written during start-up and only read afterwards.
type ModuleSet struct {
	mu      sync.RWMutex
	modules map[metadata.Token]any
	order   []metadata.Token
}

// NewModuleSet creates an empty set.
func NewModuleSet() *ModuleSet {
	return &ModuleSet{modules: make(map[metadata.Token]any)}
}

// Has reports whether token was registered.
func (s *ModuleSet) Has(token metadata.Token) bool {
	_, ok := s.Get(token)
	return ok
}

// Get returns the module instance registered under token.
func (s *ModuleSet) Get(token metadata.Token) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.modules[token]
	return inst, ok
}

// Tokens returns the registered tokens in registration order.
func (s *ModuleSet) Tokens() []metadata.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]metadata.Token(nil), s.order...)
}

func (s *ModuleSet) add(token metadata.Token, instance any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[token] = instance
	s.order = append(s.order, token)
}

// ModuleToken returns the token a module is registered under: the reference
// override, then the declared token, then the type's default token.
func ModuleToken(ref metadata.ModuleRef, facts metadata.ModuleFacts) metadata.Token {
	switch {
	case ref.Token != "":
		return ref.Token
	case facts.Token != "":
		return facts.Token
	default:
		return metadata.TokenOf(ref.Type)
	}
}

// IsModuleRegistered reports whether the module behind ref was already built
// anywhere in this container tree.
func (c *Container) IsModuleRegistered(ref metadata.ModuleRef) bool {
	facts, err := metadata.Facts[metadata.ModuleFacts](c.defs, metadata.KindModule, ref.Type, "")
	if err != nil {
		return false
	}
	return c.modules.Has(ModuleToken(ref, facts))
}

// RegisterModule builds the module behind ref as a singleton of c, marks it
// registered tree-wide and runs ref.OnRegister with the new instance.
//
// A module already registered is a no-op: the existing instance is returned
// with registered=false and no hook runs.
func (c *Container) RegisterModule(ctx context.Context, ref metadata.ModuleRef) (instance any, registered bool, err error) {
	facts, err := metadata.Facts[metadata.ModuleFacts](c.defs, metadata.KindModule, ref.Type, "")
	if err != nil {
		return nil, false, err
	}

	token := ModuleToken(ref, facts)
	if inst, ok := c.modules.Get(token); ok {
		return inst, false, nil
	}

	factory := facts.New
	if factory == nil {
		factory = zeroFactory(ref.Type)
	}
	c.Singleton(token, factory)

	instance, err = c.Resolve(token)
	if err != nil {
		return nil, false, err
	}
	c.modules.add(token, instance)

	if ref.OnRegister != nil {
		if err := ref.OnRegister(ctx, instance); err != nil {
			return instance, true, fmt.Errorf("module %s: on register: %w", token, err)
		}
	}
	return instance, true, nil
}
