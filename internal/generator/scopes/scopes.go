// Package scopes declares the query methods ActiveRecord defines for each
// named scope.
package scopes

import (
	"slices"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/generator/relations"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

const (
	// Name is the generator's selection name.
	Name = "scopes"

	// DSLKey is where the runtime records declared scope names.
	DSLKey = "scopes"
)

// Generator is the scopes generator.
type Generator struct {
	generator.Base
}

// New gathers the concrete models that declare at least one scope.
func New(rt introspect.Runtime) *Generator {
	pred := generator.All(relations.Applies(), generator.HasDSLValues(DSLKey))
	return &Generator{Base: generator.NewBase(Name, rt, pred)}
}

// Decorate adds one method per declared scope to e's relation method
// modules and makes them reachable from the model.
func (g *Generator) Decorate(p *generator.Pass, e introspect.Entity) error {
	scopes := p.Runtime.DSLValues(e, DSLKey)
	if len(scopes) == 0 {
		return nil
	}
	slices.Sort(scopes)

	model, err := p.QualifiedName(e)
	if err != nil {
		return err
	}
	n := relations.NamesFor(model)

	relMod, assocMod, err := relations.EnsureMethodModules(p.Tree, n)
	if err != nil {
		return err
	}
	for _, s := range scopes {
		p.AddMethod(relMod, scopeMethod(s, n.Relation))
		p.AddMethod(assocMod, scopeMethod(s, n.AssociationRelation))
	}

	p.Logger.Debug("scopes declared", "model", model, "count", len(scopes))
	return relations.ExtendModel(p.Tree, n)
}

func scopeMethod(name, relation string) ir.Method {
	return ir.Method{
		Name: name,
		Params: []ir.Param{
			{Name: "args", Kind: ir.ParamRest, Type: ir.Unknown{}},
			{Name: "blk", Kind: ir.ParamBlock, Type: ir.Unknown{}},
		},
		Returns: ir.Named(relation),
	}
}
