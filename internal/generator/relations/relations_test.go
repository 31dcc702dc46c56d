package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/testutil"
)

func runtime(t *testing.T) *introspect.Snapshot {
	return testutil.NewSnapshot().
		Rails().
		Class("Post", "ApplicationRecord").
		Class("Shop::Order", "ApplicationRecord").
		Class("Legacy", "ActiveRecord::Base", testutil.Abstract()).
		Class("Plain", "").
		Build(t)
}

func run(t *testing.T, rt *introspect.Snapshot, name string) *ir.Tree {
	t.Helper()
	r := &generator.Runner{
		Runtime:    rt,
		Generators: []generator.Generator{New(rt)},
		Logger:     testutil.DiscardLogger(),
		IDs:        testutil.NewFixedPassIDs(),
	}
	res := r.Run([]introspect.Entity{testutil.Lookup(t, rt, name)})
	require.NoError(t, res.Err())
	require.Len(t, res.Stubs, 1)
	return res.Stubs[0].Tree
}

func TestApplicableEntities(t *testing.T) {
	rt := runtime(t)
	g := New(rt)

	var names []string
	for _, e := range g.ApplicableEntities() {
		n, err := rt.QualifiedName(e)
		require.NoError(t, err)
		names = append(names, n)
	}
	assert.Equal(t, []string{"Post", "Shop::Order"}, names)
	assert.Equal(t, Name, g.Name())
	assert.False(t, g.Handles(testutil.Lookup(t, rt, "Legacy")))
	assert.False(t, g.Handles(testutil.Lookup(t, rt, "Plain")))
}

func TestDecorateGolden(t *testing.T) {
	rt := runtime(t)
	testutil.AssertGolden(t, "post", ir.Serialize(run(t, rt, "Post"), ir.SigilStrong))
}

func TestDecorateNamespaces(t *testing.T) {
	rt := runtime(t)
	tree := run(t, rt, "Shop::Order")

	var names []string
	for _, ns := range tree.Namespaces() {
		names = append(names, string(ns.Name()))
	}
	assert.Equal(t, []string{
		"Shop::Order",
		"Shop::Order::ActiveRecord_AssociationRelation",
		"Shop::Order::ActiveRecord_Associations_CollectionProxy",
		"Shop::Order::ActiveRecord_Relation",
		"Shop::Order::GeneratedAssociationRelationMethods",
		"Shop::Order::GeneratedRelationMethods",
	}, names)

	model, ok := tree.Lookup("Shop::Order")
	require.True(t, ok)
	assert.Equal(t, ir.QualifiedName(""), model.Superclass())

	rel, ok := tree.Lookup("Shop::Order::ActiveRecord_Relation")
	require.True(t, ok)
	assert.Equal(t, ir.QualifiedName("ActiveRecord::Relation"), rel.Superclass())
	assert.Equal(t, []ir.TypeMember{{Name: "Elem", Fixed: ir.Named("Shop::Order")}}, rel.TypeMembers())
}

func TestQueryMethodsReturnTheirRelation(t *testing.T) {
	rt := runtime(t)
	tree := run(t, rt, "Post")

	returnsOf := func(module, method string) string {
		ns, ok := tree.Lookup(module)
		require.True(t, ok)
		for _, m := range ns.Methods() {
			if m.Name == method {
				return ir.RenderType(m.Returns)
			}
		}
		t.Fatalf("%s#%s not declared", module, method)
		return ""
	}

	assert.Equal(t, "Post::ActiveRecord_Relation", returnsOf("Post::GeneratedRelationMethods", "where"))
	assert.Equal(t, "Post::ActiveRecord_AssociationRelation", returnsOf("Post::GeneratedAssociationRelationMethods", "where"))
	assert.Equal(t, "T.nilable(Post)", returnsOf("Post::GeneratedRelationMethods", "find_by"))
	assert.Equal(t, "Post", returnsOf("Post::GeneratedAssociationRelationMethods", "create!"))
	assert.Equal(t, "void", returnsOf("Post::ActiveRecord_Associations_CollectionProxy", "reset"))
}

func TestDecorateIsRepeatable(t *testing.T) {
	rt := runtime(t)
	a := ir.Serialize(run(t, rt, "Post"), ir.SigilStrong)
	b := ir.Serialize(run(t, rt, "Post"), ir.SigilStrong)
	assert.Equal(t, a, b)
}

func TestNamesFor(t *testing.T) {
	n := NamesFor("Blog::Post")
	assert.Equal(t, "Blog::Post::GeneratedRelationMethods", n.RelationMethods)
	assert.Equal(t, "Blog::Post::ActiveRecord_Associations_CollectionProxy", n.CollectionProxy)
}
