// Package relations generates the query interface ActiveRecord builds for
// every concrete model: the relation, association relation and collection
// proxy classes, and the two generated method modules they include.
package relations

import (
	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

// Name is the generator's selection name.
const Name = "relations"

const (
	baseClass                 = "ActiveRecord::Base"
	relationSuperclass        = "ActiveRecord::Relation"
	assocRelationSuperclass   = "ActiveRecord::AssociationRelation"
	collectionProxySuperclass = "ActiveRecord::Associations::CollectionProxy"
)

// Names are the constants generated for one model.
type Names struct {
	Model                      string
	RelationMethods            string
	AssociationRelationMethods string
	Relation                   string
	AssociationRelation        string
	CollectionProxy            string
}

// NamesFor derives the generated constant names for model.
func NamesFor(model string) Names {
	return Names{
		Model:                      model,
		RelationMethods:            model + "::GeneratedRelationMethods",
		AssociationRelationMethods: model + "::GeneratedAssociationRelationMethods",
		Relation:                   model + "::ActiveRecord_Relation",
		AssociationRelation:        model + "::ActiveRecord_AssociationRelation",
		CollectionProxy:            model + "::ActiveRecord_Associations_CollectionProxy",
	}
}

// Applies matches concrete subclasses of ActiveRecord::Base.
func Applies() generator.Predicate {
	return generator.All(generator.SubtypeOf(baseClass), generator.Concrete())
}

// Generator is the relations generator.
type Generator struct {
	generator.Base
}

// New gathers the concrete models loaded in rt.
func New(rt introspect.Runtime) *Generator {
	return &Generator{Base: generator.NewBase(Name, rt, Applies())}
}

// Decorate declares the relation classes and generated modules for e.
func (g *Generator) Decorate(p *generator.Pass, e introspect.Entity) error {
	model, err := p.QualifiedName(e)
	if err != nil {
		return err
	}
	n := NamesFor(model)

	if err := ExtendModel(p.Tree, n); err != nil {
		return err
	}
	relMod, assocMod, err := EnsureMethodModules(p.Tree, n)
	if err != nil {
		return err
	}

	if err := declareRelationClass(p.Tree, n.Relation, relationSuperclass, n.RelationMethods, model); err != nil {
		return err
	}
	if err := declareRelationClass(p.Tree, n.AssociationRelation, assocRelationSuperclass, n.AssociationRelationMethods, model); err != nil {
		return err
	}
	proxy, err := p.Tree.EnsureNamespace(n.CollectionProxy, ir.ClassKind, collectionProxySuperclass)
	if err != nil {
		return err
	}
	if err := proxy.AddMixin(ir.Include, n.AssociationRelationMethods); err != nil {
		return err
	}
	if err := proxy.AddTypeMember("Elem", ir.Named(model)); err != nil {
		return err
	}
	for _, m := range collectionProxyMethods(n) {
		p.AddMethod(proxy, m)
	}

	for _, spec := range queryMethods() {
		p.AddMethod(relMod, spec.method(n.Relation))
		p.AddMethod(assocMod, spec.method(n.AssociationRelation))
	}
	for _, m := range finderMethods(model) {
		p.AddMethod(relMod, m)
		p.AddMethod(assocMod, m)
	}

	p.Logger.Debug("relations declared", "model", model)
	return nil
}

// ExtendModel reopens the model class and extends its relation methods
// module. The model is reopened without a superclass so every generator
// touching it agrees on its metadata.
func ExtendModel(t *ir.Tree, n Names) error {
	ns, err := t.EnsureNamespace(n.Model, ir.ClassKind, "")
	if err != nil {
		return err
	}
	return ns.AddMixin(ir.Extend, n.RelationMethods)
}

// EnsureMethodModules opens both generated method modules.
func EnsureMethodModules(t *ir.Tree, n Names) (rel, assoc *ir.Namespace, err error) {
	rel, err = t.EnsureNamespace(n.RelationMethods, ir.ModuleKind, "")
	if err != nil {
		return nil, nil, err
	}
	assoc, err = t.EnsureNamespace(n.AssociationRelationMethods, ir.ModuleKind, "")
	if err != nil {
		return nil, nil, err
	}
	return rel, assoc, nil
}

func declareRelationClass(t *ir.Tree, name, superclass, methods, model string) error {
	ns, err := t.EnsureNamespace(name, ir.ClassKind, superclass)
	if err != nil {
		return err
	}
	if err := ns.AddMixin(ir.Include, methods); err != nil {
		return err
	}
	return ns.AddTypeMember("Elem", ir.Named(model))
}
