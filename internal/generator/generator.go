// Package generator defines the contract DSL generators implement and the
// runner that merges their output into one tree per entity.
//
// A generator computes its applicable entities once, at construction, and
// afterwards only decorates entities from that set. All output goes through
// the tree of the Pass it is handed.
package generator

import (
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

// Generator contributes declarations for the entities it applies to.
type Generator interface {
	// Name identifies the generator for selection and diagnostics.
	Name() string

	// ApplicableEntities returns the set computed at construction, in
	// runtime enumeration order.
	ApplicableEntities() []introspect.Entity

	// Handles reports whether e is in the applicable set.
	Handles(e introspect.Entity) bool

	// Decorate adds e's declarations to p.Tree. It is only called for
	// entities for which Handles is true.
	Decorate(p *Pass, e introspect.Entity) error
}

// Predicate decides whether a generator applies to an entity.
type Predicate func(rt introspect.Runtime, e introspect.Entity) bool

// SubtypeOf matches strict subtypes of the named class.
func SubtypeOf(ancestor string) Predicate {
	return func(rt introspect.Runtime, e introspect.Entity) bool {
		return rt.IsSubtypeOf(e, ancestor)
	}
}

// Concrete matches non-abstract classes.
func Concrete() Predicate {
	return func(rt introspect.Runtime, e introspect.Entity) bool {
		return rt.KindOf(e) == ir.ClassKind && !rt.IsAbstract(e)
	}
}

// IncludesModule matches entities that have the named module mixed in.
func IncludesModule(module string) Predicate {
	return func(rt introspect.Runtime, e introspect.Entity) bool {
		return rt.Includes(e, module)
	}
}

// HasDSLValues matches entities with at least one recorded value under key.
func HasDSLValues(key string) Predicate {
	return func(rt introspect.Runtime, e introspect.Entity) bool {
		return len(rt.DSLValues(e, key)) > 0
	}
}

// All matches when every predicate matches. All() matches everything.
func All(preds ...Predicate) Predicate {
	return func(rt introspect.Runtime, e introspect.Entity) bool {
		for _, p := range preds {
			if !p(rt, e) {
				return false
			}
		}
		return true
	}
}

// Gather filters the runtime's loaded entities through pred.
func Gather(rt introspect.Runtime, pred Predicate) []introspect.Entity {
	var out []introspect.Entity
	for _, e := range rt.LoadedEntities() {
		if pred(rt, e) {
			out = append(out, e)
		}
	}
	return out
}

// Base implements Name, ApplicableEntities and Handles over a set fixed at
// construction. Generators embed it and add Decorate.
type Base struct {
	name       string
	applicable []introspect.Entity
	index      map[introspect.Entity]struct{}
}

// NewBase gathers the applicable set for a generator called name.
func NewBase(name string, rt introspect.Runtime, pred Predicate) Base {
	entities := Gather(rt, pred)
	index := make(map[introspect.Entity]struct{}, len(entities))
	for _, e := range entities {
		index[e] = struct{}{}
	}
	return Base{name: name, applicable: entities, index: index}
}

func (b Base) Name() string { return b.name }

func (b Base) ApplicableEntities() []introspect.Entity {
	out := make([]introspect.Entity, len(b.applicable))
	copy(out, b.applicable)
	return out
}

func (b Base) Handles(e introspect.Entity) bool {
	_, ok := b.index[e]
	return ok
}
