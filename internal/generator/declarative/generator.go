package declarative

import (
	"fmt"
	"slices"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
)

// Generator declares a Definition's namespaces for each applicable entity.
type Generator struct {
	generator.Base
	def *Definition
}

var _ generator.Generator = (*Generator)(nil)

// New gathers the entities def applies to. def must have been validated.
func New(rt introspect.Runtime, def *Definition) *Generator {
	return &Generator{
		Base: generator.NewBase(def.Name, rt, def.AppliesTo.predicate()),
		def:  def,
	}
}

// Load reads, validates and constructs a generator from path.
func Load(rt introspect.Runtime, path string) (*Generator, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return New(rt, def), nil
}

func (a Applicability) predicate() generator.Predicate {
	var preds []generator.Predicate
	if a.SubtypeOf != "" {
		preds = append(preds, generator.SubtypeOf(a.SubtypeOf))
	}
	if a.Includes != "" {
		preds = append(preds, generator.IncludesModule(a.Includes))
	}
	if a.Concrete {
		preds = append(preds, generator.Concrete())
	}
	if a.HasDSL != "" {
		preds = append(preds, generator.HasDSLValues(a.HasDSL))
	}
	if len(a.Names) > 0 {
		names := slices.Clone(a.Names)
		preds = append(preds, func(rt introspect.Runtime, e introspect.Entity) bool {
			name, err := rt.QualifiedName(e)
			return err == nil && slices.Contains(names, name)
		})
	}
	return generator.All(preds...)
}

// Definition returns the definition the generator was built from.
func (g *Generator) Definition() *Definition {
	return g.def
}

func (g *Generator) Decorate(p *generator.Pass, e introspect.Entity) error {
	entity, err := p.QualifiedName(e)
	if err != nil {
		return err
	}
	x := expander{entity: entity}

	for _, nd := range g.def.Namespaces {
		if err := g.declare(p, e, x, nd); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) declare(p *generator.Pass, e introspect.Entity, x expander, nd NamespaceDef) error {
	kind, err := parseKind(nd.Kind)
	if err != nil {
		return err
	}
	ns, err := p.Tree.EnsureNamespace(x.expand(nd.Name), kind, x.expand(nd.Superclass))
	if err != nil {
		return err
	}

	for _, md := range nd.Mixins {
		mk, err := parseMixinKind(md.Kind)
		if err != nil {
			return err
		}
		if err := ns.AddMixin(mk, x.expand(md.Module)); err != nil {
			return err
		}
	}
	for _, cd := range nd.Constants {
		t, err := x.typ(cd.Type)
		if err != nil {
			return fmt.Errorf("constant %s: %w", cd.Name, err)
		}
		if err := ns.AddConstant(x.expand(cd.Name), t); err != nil {
			return err
		}
	}
	for _, td := range nd.TypeMembers {
		t, err := x.typ(td.Fixed)
		if err != nil {
			return fmt.Errorf("type member %s: %w", td.Name, err)
		}
		if err := ns.AddTypeMember(x.expand(td.Name), t); err != nil {
			return err
		}
	}

	for _, md := range nd.Methods {
		values := []string{""}
		if md.ForEach != "" {
			values = p.Runtime.DSLValues(e, md.ForEach)
		}
		for _, v := range values {
			m, err := expander{entity: x.entity, value: v}.method(md)
			if err != nil {
				return err
			}
			p.AddMethod(ns, m)
		}
	}
	return nil
}
