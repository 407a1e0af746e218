package metadata

import (
	"reflect"
	"sync"

	"github.com/km-arc/go-modular/framework/errs"
)

// Kind tags a record with the declaration that produced it.
type Kind string

const (
	KindModule     Kind = "module"
	KindProvider   Kind = "provider"
	KindController Kind = "controller"
	KindAction     Kind = "action"
	KindEntity     Kind = "entity"
)

// Key identifies a record: a target type plus an optional member name.
// Class-level records use an empty Member.
type Key struct {
	Target reflect.Type
	Member string
}

// Record is one set of structural facts.
type Record struct {
	Kind  Kind
	Facts any
}

// Registry stores structural facts about types without touching the types
// themselves. One Registry is owned by each application.
type Registry struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{records: make(map[Key]Record)}
}

// Define creates or overwrites the record for (target, member).
func (r *Registry) Define(target reflect.Type, member string, kind Kind, facts any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[Key{Target: target, Member: member}] = Record{Kind: kind, Facts: facts}
}

// Get returns the record for (target, member) if one exists.
func (r *Registry) Get(target reflect.Type, member string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[Key{Target: target, Member: member}]
	return rec, ok
}

// Typed returns the record only when it was declared with the given kind.
// A missing record or a different kind is a definition error.
func (r *Registry) Typed(kind Kind, target reflect.Type, member string) (Record, error) {
	rec, ok := r.Get(target, member)
	if !ok || rec.Kind != kind {
		return Record{}, errs.Definition("%s is not declared as %s", describe(target, member), kind)
	}
	return rec, nil
}

// update applies fn to the current record under the write lock.
func (r *Registry) update(target reflect.Type, member string, fn func(Record, bool) Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key{Target: target, Member: member}
	cur, ok := r.records[key]
	r.records[key] = fn(cur, ok)
}

// Facts returns the typed facts of a record of the given kind.
//
//	facts, err := metadata.Facts[metadata.ModuleFacts](defs, metadata.KindModule, t, "")
func Facts[T any](r *Registry, kind Kind, target reflect.Type, member string) (T, error) {
	var zero T
	rec, err := r.Typed(kind, target, member)
	if err != nil {
		return zero, err
	}
	facts, ok := rec.Facts.(T)
	if !ok {
		return zero, errs.Definition("%s %s facts have type %T", describe(target, member), kind, rec.Facts)
	}
	return facts, nil
}

func describe(target reflect.Type, member string) string {
	name := "<nil>"
	if target != nil {
		name = target.String()
	}
	if member == "" {
		return name
	}
	return name + "." + member
}
