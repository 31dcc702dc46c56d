package declarative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/testutil"
)

func run(t *testing.T, rt introspect.Runtime, gens ...generator.Generator) *generator.Result {
	t.Helper()
	r := &generator.Runner{
		Runtime:    rt,
		Generators: gens,
		Logger:     testutil.DiscardLogger(),
		IDs:        testutil.NewFixedPassIDs(),
	}
	return r.Run(rt.LoadedEntities())
}

func TestEndToEndRelationQueries(t *testing.T) {
	rt := testutil.NewSnapshot().
		Class("Post", "").
		Class("Comment", "").
		Build(t)

	g, err := Load(rt, "testdata/relation_queries.yaml")
	require.NoError(t, err)
	assert.Equal(t, "relation_queries", g.Name())

	res := run(t, rt, g)
	require.NoError(t, res.Err())
	require.Len(t, res.Stubs, 1, "only Post is listed")
	assert.Equal(t, "Post", res.Stubs[0].Name)

	tree := res.Stubs[0].Tree
	mod, ok := tree.Lookup("Post::QueryMethods")
	require.True(t, ok)

	var names []string
	for _, m := range mod.Methods() {
		names = append(names, m.Name)
		assert.True(t, ir.TypeEqual(ir.GenericOf("Relation", ir.Named("Post")), m.Returns))
		for _, p := range m.Params {
			assert.Equal(t, ir.Unknown{}, p.Type)
		}
	}
	assert.Equal(t, []string{"create", "find", "where"}, names)

	testutil.AssertGolden(t, "post_relation_queries", ir.Serialize(tree, ir.SigilStrong))
}

func TestCUEDefinitionWithForEach(t *testing.T) {
	rt := testutil.NewSnapshot().
		Rails().
		Class("Post", "ApplicationRecord", testutil.Scopes("recent", "archived")).
		Class("Comment", "ApplicationRecord").
		Build(t)

	g, err := Load(rt, "testdata/scoped_finders.cue")
	require.NoError(t, err)
	assert.Len(t, g.ApplicableEntities(), 1)

	res := run(t, rt, g)
	require.NoError(t, res.Err())
	require.Len(t, res.Stubs, 1)

	expected := "# typed: strong\n" +
		"\n" +
		"module Post::ScopeMethods\n" +
		"  sig { returns(T.nilable(Post)) }\n" +
		"  def archived_first; end\n" +
		"\n" +
		"  sig { returns(T.nilable(Post)) }\n" +
		"  def recent_first; end\n" +
		"\n" +
		"  sig { returns(T::Array[Symbol]) }\n" +
		"  def self.scope_names; end\n" +
		"end\n"
	assert.Equal(t, expected, ir.Serialize(res.Stubs[0].Tree, ir.SigilStrong))
}

func TestDefinitionConstantsAndTypeMembers(t *testing.T) {
	def := &Definition{
		Name: "enums",
		Namespaces: []NamespaceDef{{
			Name:        "{{entity}}::Status",
			Kind:        "class",
			Superclass:  "T::Enum",
			Constants:   []ConstantDef{{Name: "DRAFT", Type: "{{entity}}::Status"}},
			TypeMembers: []TypeMemberDef{{Name: "Elem", Fixed: "{{entity}}"}},
		}},
	}
	require.NoError(t, def.Validate())

	rt := testutil.NewSnapshot().Class("Post", "").Build(t)
	res := run(t, rt, New(rt, def))
	require.NoError(t, res.Err())

	expected := "# typed: strong\n" +
		"\n" +
		"class Post::Status < T::Enum\n" +
		"  DRAFT = T.let(T.unsafe(nil), Post::Status)\n" +
		"  Elem = type_member(fixed: Post)\n" +
		"end\n"
	assert.Equal(t, expected, ir.Serialize(res.Stubs[0].Tree, ir.SigilStrong))
}

func TestDefinitionConflictsWithOtherGenerator(t *testing.T) {
	rt := testutil.NewSnapshot().Class("Post", "").Build(t)

	asClass := &Definition{Name: "a", Namespaces: []NamespaceDef{{Name: "{{entity}}::Helpers", Kind: "class"}}}
	asModule := &Definition{Name: "b", Namespaces: []NamespaceDef{{Name: "{{entity}}::Helpers", Kind: "module"}}}

	res := run(t, rt, New(rt, asClass), New(rt, asModule))
	assert.Empty(t, res.Stubs)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].Generator)
	assert.True(t, ir.IsNamespaceConflict(res.Failures[0]))
}

func TestValidateRejects(t *testing.T) {
	ns := func(mutate func(*NamespaceDef)) *Definition {
		nd := NamespaceDef{Name: "{{entity}}::M", Kind: "module"}
		mutate(&nd)
		return &Definition{Name: "d", Namespaces: []NamespaceDef{nd}}
	}
	def := func(s string) *string { return &s }

	tests := []struct {
		name  string
		def   *Definition
		field string
	}{
		{"missing name", &Definition{Namespaces: []NamespaceDef{{Name: "X", Kind: "module"}}}, "name"},
		{"no namespaces", &Definition{Name: "d"}, "namespaces"},
		{"malformed namespace", ns(func(n *NamespaceDef) { n.Name = "{{entity}}::" }), "namespaces[0].name"},
		{"unknown kind", ns(func(n *NamespaceDef) { n.Kind = "struct" }), "namespaces[0].kind"},
		{"module superclass", ns(func(n *NamespaceDef) { n.Superclass = "Base" }), "namespaces[0].superclass"},
		{"mixin kind", ns(func(n *NamespaceDef) { n.Mixins = []MixinDef{{Kind: "prepend", Module: "X"}} }), "namespaces[0].mixins[0].kind"},
		{"param kind", ns(func(n *NamespaceDef) {
			n.Methods = []MethodDef{{Name: "m", Params: []ParamDef{{Name: "a", Kind: "splat"}}}}
		}), "namespaces[0].methods[0]"},
		{"unbalanced type", ns(func(n *NamespaceDef) {
			n.Methods = []MethodDef{{Name: "m", Returns: "T::Array[{{entity}}"}}
		}), "namespaces[0].methods[0]"},
		{"default on rest", ns(func(n *NamespaceDef) {
			n.Methods = []MethodDef{{Name: "m", Params: []ParamDef{{Name: "a", Kind: "rest", Default: def("nil")}}}}
		}), "namespaces[0].methods[0]"},
		{"visibility", ns(func(n *NamespaceDef) {
			n.Methods = []MethodDef{{Name: "m", Visibility: "internal"}}
		}), "namespaces[0].methods[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			var de *DefinitionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestLoadDefinitionReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nnamespaces:\n  - {name: X, kind: struct}\n"), 0644))

	_, err := LoadDefinition(path)
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, path, de.Path)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadDefinitionRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nnamespace: []\n"), 0644))

	_, err := LoadDefinition(path)
	require.Error(t, err)
}

func TestExplicitDefaultsAndVisibility(t *testing.T) {
	def := &Definition{
		Name: "builders",
		Namespaces: []NamespaceDef{{
			Name: "{{entity}}",
			Kind: "class",
			Methods: []MethodDef{{
				Name:       "build_{{entity}}",
				Visibility: "private",
				Params: []ParamDef{
					{Name: "attributes", Kind: "opt", Type: "::Hash", Default: strptr("{}")},
					{Name: "strict", Kind: "key", Type: "T::Boolean", Default: strptr("false")},
				},
				Returns: "void",
			}},
		}},
	}
	require.NoError(t, def.Validate())

	rt := testutil.NewSnapshot().Class("Post", "").Build(t)
	res := run(t, rt, New(rt, def))
	require.NoError(t, res.Err())

	assert.Contains(t, ir.Serialize(res.Stubs[0].Tree, ir.SigilStrong),
		"  sig { params(attributes: ::Hash, strict: T::Boolean).void }\n"+
			"  private def build_Post(attributes = {}, strict: false); end\n")
}

func strptr(s string) *string { return &s }
