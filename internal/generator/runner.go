package generator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

// Runner drives generators over entities, one fresh tree per entity.
type Runner struct {
	Runtime    introspect.Runtime
	Generators []Generator // registration order
	Logger     *slog.Logger
	IDs        IDSource
}

// Stub is the merged output for one entity.
type Stub struct {
	Entity introspect.Entity
	Name   string
	PassID string
	Tree   *ir.Tree

	// Generators lists who decorated the tree, in registration order.
	Generators []string
}

// Result collects the stubs and failures of one Run, both in entity order.
type Result struct {
	Stubs    []*Stub
	Failures []*PassError
}

// Tree returns the tree produced for e, if any.
func (r *Result) Tree(e introspect.Entity) (*ir.Tree, bool) {
	for _, s := range r.Stubs {
		if s.Entity == e {
			return s.Tree, true
		}
	}
	return nil, false
}

// Err joins every failure, or returns nil.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) ids() IDSource {
	if r.IDs == nil {
		return UUIDv7Source{}
	}
	return r.IDs
}

// Run processes entities in order. Repeated entities are processed once.
// An entity no generator applies to produces no stub and no failure. A
// failing entity produces no stub; the remaining entities still run.
func (r *Runner) Run(entities []introspect.Entity) *Result {
	res := &Result{}
	seen := make(map[introspect.Entity]struct{}, len(entities))

	for _, e := range entities {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}

		stub, err := r.RunEntity(e)
		if err != nil {
			var pe *PassError
			if !errors.As(err, &pe) {
				pe = &PassError{Entity: fmt.Sprint(e), Err: err}
			}
			r.logger().Warn("pass failed",
				"entity", pe.Entity,
				"generator", pe.Generator,
				"pass", pe.PassID,
				"error", pe.Err)
			res.Failures = append(res.Failures, pe)
			continue
		}
		if stub != nil {
			res.Stubs = append(res.Stubs, stub)
		}
	}
	return res
}

// RunEntity runs every applicable generator over e in registration order.
// It returns a nil stub when none applies.
func (r *Runner) RunEntity(e introspect.Entity) (*Stub, error) {
	var applicable []Generator
	for _, g := range r.Generators {
		if g.Handles(e) {
			applicable = append(applicable, g)
		}
	}
	if len(applicable) == 0 {
		return nil, nil
	}

	pass := NewPass(r.ids().NewPassID(), r.Runtime, r.logger())
	name, err := pass.QualifiedName(e)
	if err != nil {
		return nil, &PassError{Entity: fmt.Sprint(e), PassID: pass.ID, Err: err}
	}
	// The name also names the stub file, so it must be well formed.
	if _, err := ir.ParseQualifiedName(name); err != nil {
		return nil, &PassError{Entity: name, PassID: pass.ID, Err: err}
	}
	pass.Logger = pass.Logger.With("entity", name)
	pass.Logger.Debug("pass started", "generators", len(applicable))

	stub := &Stub{Entity: e, Name: name, PassID: pass.ID, Tree: pass.Tree}
	for _, g := range applicable {
		if err := g.Decorate(pass, e); err != nil {
			// The partially decorated tree is discarded.
			return nil, &PassError{Entity: name, Generator: g.Name(), PassID: pass.ID, Err: err}
		}
		stub.Generators = append(stub.Generators, g.Name())
	}

	pass.Logger.Debug("pass finished", "namespaces", pass.Tree.Len())
	return stub, nil
}

// Decorate runs a single generator over e in a fresh pass. Unlike
// RunEntity, it rejects entities outside g's applicable set.
func (r *Runner) Decorate(g Generator, e introspect.Entity) (*ir.Tree, error) {
	pass := NewPass(r.ids().NewPassID(), r.Runtime, r.logger())
	name, err := pass.QualifiedName(e)
	if err != nil {
		name = fmt.Sprint(e)
	}
	if !g.Handles(e) {
		return nil, &ContractViolationError{Generator: g.Name(), Entity: name}
	}
	if err := g.Decorate(pass, e); err != nil {
		return nil, &PassError{Entity: name, Generator: g.Name(), PassID: pass.ID, Err: err}
	}
	return pass.Tree, nil
}

// Select keeps the generators whose names are listed, in registration
// order. An empty list keeps all of them.
func Select(generators []Generator, names []string) ([]Generator, error) {
	if len(names) == 0 {
		return generators, nil
	}

	byName := make(map[string]bool, len(generators))
	available := make([]string, 0, len(generators))
	for _, g := range generators {
		byName[g.Name()] = true
		available = append(available, g.Name())
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if !byName[n] {
			return nil, &UnknownGeneratorError{Name: n, Available: available}
		}
		want[n] = true
	}

	var out []Generator
	for _, g := range generators {
		if want[g.Name()] {
			out = append(out, g)
		}
	}
	return out, nil
}
