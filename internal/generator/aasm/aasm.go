// Package aasm declares the methods and constants the AASM state machine
// DSL defines on classes that include it.
//
// The runtime records the machine's state and event names as DSL values.
// Each state gets a predicate and a STATE_ constant. Each event gets its
// bang, non-bang, may_ and _without_validation! forms. The class also gets
// the aasm builder, typed through two private classes so that blocks passed
// to aasm and event are bound to the right receiver.
package aasm

import (
	"slices"
	"strings"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

const (
	// Name is the generator's selection name.
	Name = "aasm"

	// Module is the mixin that marks a state machine.
	Module = "AASM"

	// StatesKey and EventsKey are where the runtime records the machine's
	// state and event names.
	StatesKey = "aasm_states"
	EventsKey = "aasm_events"

	machineSuperclass = "AASM::Base"
	eventSuperclass   = "AASM::Core::Event"
)

// eventCallbacks are the callback registrars of an AASM event.
var eventCallbacks = []string{
	"after", "after_commit", "after_transaction", "before", "before_success",
	"before_transaction", "ensure", "error", "success",
}

// Generator is the aasm generator.
type Generator struct {
	generator.Base
}

// New gathers the classes that include AASM.
func New(rt introspect.Runtime) *Generator {
	isClass := func(rt introspect.Runtime, e introspect.Entity) bool {
		return rt.KindOf(e) == ir.ClassKind
	}
	return &Generator{Base: generator.NewBase(Name, rt, generator.All(isClass, generator.IncludesModule(Module)))}
}

// Decorate declares e's state machine interface.
func (g *Generator) Decorate(p *generator.Pass, e introspect.Entity) error {
	name, err := p.QualifiedName(e)
	if err != nil {
		return err
	}
	machine := name + "::PrivateAASMMachine"
	event := machine + "::PrivateAASMEvent"

	model, err := p.Tree.EnsureNamespace(name, ir.ClassKind, "")
	if err != nil {
		return err
	}

	states := sorted(p.Runtime.DSLValues(e, StatesKey))
	for _, s := range states {
		if err := model.AddConstant("STATE_"+strings.ToUpper(s), ir.Named("Symbol")); err != nil {
			return err
		}
		p.AddMethod(model, predicate(s+"?"))
	}

	events := sorted(p.Runtime.DSLValues(e, EventsKey))
	for _, ev := range events {
		p.AddMethod(model, predicate("may_"+ev+"?"))
		for _, m := range []string{ev, ev + "!", ev + "_without_validation!"} {
			p.AddMethod(model, ir.Method{
				Name:    m,
				Params:  []ir.Param{{Name: "opts", Kind: ir.ParamRest, Type: ir.Unknown{}}},
				Returns: ir.Unknown{},
			})
		}
	}

	p.AddMethod(model, ir.Method{
		Name: "aasm",
		Kind: ir.ClassMethod,
		Params: []ir.Param{
			{Name: "args", Kind: ir.ParamRest, Type: ir.Unknown{}},
			{Name: "block", Kind: ir.ParamBlock, Type: ir.NilableOf(boundProc(machine))},
		},
		Returns: ir.Named(machine),
	})

	mc, err := p.Tree.EnsureNamespace(machine, ir.ClassKind, machineSuperclass)
	if err != nil {
		return err
	}
	nilDefault := "nil"
	p.AddMethod(mc, ir.Method{
		Name: "event",
		Params: []ir.Param{
			{Name: "name", Kind: ir.ParamReq, Type: ir.Unknown{}},
			{Name: "options", Kind: ir.ParamOpt, Type: ir.Unknown{}, Default: &nilDefault},
			{Name: "block", Kind: ir.ParamBlock, Type: boundProc(event)},
		},
		Returns: ir.Unknown{},
	})

	ec, err := p.Tree.EnsureNamespace(event, ir.ClassKind, eventSuperclass)
	if err != nil {
		return err
	}
	for _, cb := range eventCallbacks {
		p.AddMethod(ec, ir.Method{
			Name:    cb,
			Params:  []ir.Param{{Name: "block", Kind: ir.ParamBlock, Type: boundProc(name)}},
			Returns: ir.Unknown{},
		})
	}

	p.Logger.Debug("state machine declared", "states", len(states), "events", len(events))
	return nil
}

func predicate(name string) ir.Method {
	return ir.Method{Name: name, Returns: ir.Named("T::Boolean")}
}

// boundProc is a void block evaluated with self bound to receiver.
func boundProc(receiver string) ir.TypeExpr {
	return ir.Named("T.proc.bind(" + receiver + ").void")
}

func sorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
