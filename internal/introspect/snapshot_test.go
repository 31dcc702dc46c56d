package introspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rbisynth/internal/ir"
)

func modelDoc() SnapshotDoc {
	return SnapshotDoc{
		Packages: []Package{{Name: "activerecord", Version: "7.1.0"}},
		Entities: []EntityDoc{
			{Name: "Post", Kind: "class", Superclass: "ApplicationRecord",
				DSL: map[string][]string{"scopes": {"published"}},
				Methods: []MethodDoc{
					{Name: "title", Signature: &Signature{ReturnType: "String"}},
					{Name: "build", Singleton: true, Parameters: []RawParameter{{Kind: "opt", Name: "attrs"}}},
					{Name: "author", Visibility: "private"},
				},
			},
			{Name: "ApplicationRecord", Kind: "class", Superclass: "ActiveRecord::Base", Abstract: true},
			{Name: "ActiveRecord::Base", Kind: "class", Package: "activerecord",
				Mixins: []MixinDoc{{Kind: "include", Module: "ActiveModel::API"}}},
			{Name: "ActiveModel::API", Kind: "module", Package: "activerecord",
				Mixins: []MixinDoc{{Kind: "include", Module: "ActiveModel::Validations"}}},
			{Name: "", Kind: "class"},
			{Name: "Comparable", Kind: "module", Constants: []ConstantInfo{{Name: "VERSION", Type: "String"}}},
		},
	}
}

func mustSnapshot(t *testing.T, doc SnapshotDoc) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(doc)
	require.NoError(t, err)
	return s
}

func mustLookup(t *testing.T, s *Snapshot, name string) Entity {
	t.Helper()
	e, ok := s.Lookup(name)
	require.True(t, ok, "entity %s not found", name)
	return e
}

func TestSnapshotLoadedEntitiesOrder(t *testing.T) {
	s := mustSnapshot(t, modelDoc())

	var names []string
	for _, e := range s.LoadedEntities() {
		name, err := s.QualifiedName(e)
		if err != nil {
			names = append(names, "<anon>")
			continue
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{
		"ActiveModel::API",
		"ActiveRecord::Base",
		"ApplicationRecord",
		"Comparable",
		"Post",
		"<anon>",
	}, names)
}

func TestSnapshotAnonymousEntity(t *testing.T) {
	s := mustSnapshot(t, modelDoc())
	all := s.LoadedEntities()
	anon := all[len(all)-1]

	_, err := s.QualifiedName(anon)
	var ae *AnonymousEntityError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Description, "anonymous")
}

func TestSnapshotForeignEntity(t *testing.T) {
	a := mustSnapshot(t, modelDoc())
	b := mustSnapshot(t, modelDoc())

	post := mustLookup(t, a, "Post")
	_, err := b.QualifiedName(post)
	var fe *ForeignEntityError
	assert.ErrorAs(t, err, &fe)
	assert.False(t, b.IsSubtypeOf(post, "ActiveRecord::Base"))
}

func TestSnapshotAncestry(t *testing.T) {
	s := mustSnapshot(t, modelDoc())
	post := mustLookup(t, s, "Post")
	base := mustLookup(t, s, "ActiveRecord::Base")

	assert.True(t, s.IsSubtypeOf(post, "ApplicationRecord"))
	assert.True(t, s.IsSubtypeOf(post, "ActiveRecord::Base"))
	assert.False(t, s.IsSubtypeOf(base, "ActiveRecord::Base"), "subtype is strict")
	assert.False(t, s.IsSubtypeOf(post, "Comparable"))

	// Through ActiveRecord::Base, then through ActiveModel::API.
	assert.True(t, s.Includes(post, "ActiveModel::API"))
	assert.True(t, s.Includes(post, "ActiveModel::Validations"))
	assert.False(t, s.Includes(post, "Enumerable"))

	sup, ok := s.SuperclassOf(post)
	assert.True(t, ok)
	assert.Equal(t, "ApplicationRecord", sup)

	_, ok = s.SuperclassOf(base)
	assert.False(t, ok)

	assert.True(t, s.IsAbstract(mustLookup(t, s, "ApplicationRecord")))
	assert.False(t, s.IsAbstract(post))
	assert.Equal(t, ir.ModuleKind, s.KindOf(mustLookup(t, s, "Comparable")))
	assert.Equal(t, ir.ClassKind, s.KindOf(post))
}

func TestSnapshotSuperclassCycleTerminates(t *testing.T) {
	s := mustSnapshot(t, SnapshotDoc{Entities: []EntityDoc{
		{Name: "A", Kind: "class", Superclass: "B"},
		{Name: "B", Kind: "class", Superclass: "A"},
	}})
	assert.False(t, s.IsSubtypeOf(mustLookup(t, s, "A"), "C"))
	assert.False(t, s.Includes(mustLookup(t, s, "A"), "C"))
}

func TestSnapshotMethods(t *testing.T) {
	s := mustSnapshot(t, modelDoc())
	post := mustLookup(t, s, "Post")

	instance := s.Methods(post, ir.InstanceMethod)
	require.Len(t, instance, 2)
	assert.Equal(t, "author", instance[0].Name)
	assert.Equal(t, ir.Private, instance[0].Visibility)
	assert.Equal(t, "title", instance[1].Name)

	sig, ok := s.PriorSignature(instance[1])
	require.True(t, ok)
	assert.Equal(t, "String", sig.ReturnType)

	_, ok = s.PriorSignature(instance[0])
	assert.False(t, ok)

	class := s.Methods(post, ir.ClassMethod)
	require.Len(t, class, 1)
	assert.Equal(t, ir.ClassMethod, class[0].Kind)
	assert.Equal(t, []RawParameter{{Kind: "opt", Name: "attrs"}}, s.RawParameters(class[0]))
}

func TestSnapshotDSLAndConstants(t *testing.T) {
	s := mustSnapshot(t, modelDoc())

	assert.Equal(t, []string{"published"}, s.DSLValues(mustLookup(t, s, "Post"), "scopes"))
	assert.Empty(t, s.DSLValues(mustLookup(t, s, "Post"), "enums"))
	assert.Equal(t, []ConstantInfo{{Name: "VERSION", Type: "String"}}, s.Constants(mustLookup(t, s, "Comparable")))
}

func TestSnapshotPackages(t *testing.T) {
	s := mustSnapshot(t, modelDoc())

	pkgs := s.Packages()
	require.Len(t, pkgs, 1)
	assert.Equal(t, "activerecord@7.1.0", pkgs[0].String())

	owned := s.EntitiesOwnedBy(pkgs[0])
	require.Len(t, owned, 2)
	first, _ := s.QualifiedName(owned[0])
	assert.Equal(t, "ActiveModel::API", first)

	assert.Empty(t, s.EntitiesOwnedBy(Package{}))
}

func TestNewSnapshotRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  SnapshotDoc
		msg  string
	}{
		{
			"duplicate entity",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "class"}, {Name: "A", Kind: "module"}}},
			"defined more than once",
		},
		{
			"unknown kind",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "struct"}}},
			"unknown kind",
		},
		{
			"module with superclass",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "module", Superclass: "B"}}},
			"cannot have superclass",
		},
		{
			"unknown mixin kind",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "class", Mixins: []MixinDoc{{Kind: "prepend", Module: "B"}}}}},
			"unknown mixin kind",
		},
		{
			"unknown visibility",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "class", Methods: []MethodDoc{{Name: "x", Visibility: "internal"}}}}},
			"unknown visibility",
		},
		{
			"duplicate method",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "class", Methods: []MethodDoc{{Name: "x"}, {Name: "x"}}}}},
			"method x defined more than once",
		},
		{
			"unknown package",
			SnapshotDoc{Entities: []EntityDoc{{Name: "A", Kind: "class", Package: "rails"}}},
			"unknown package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNewSnapshotAllowsSameNameDifferentKind(t *testing.T) {
	s := mustSnapshot(t, SnapshotDoc{Entities: []EntityDoc{
		{Name: "A", Kind: "class", Methods: []MethodDoc{{Name: "x"}, {Name: "x", Singleton: true}}},
	}})
	a := mustLookup(t, s, "A")
	assert.Len(t, s.Methods(a, ir.InstanceMethod), 1)
	assert.Len(t, s.Methods(a, ir.ClassMethod), 1)
}

func TestLoadSnapshotYAML(t *testing.T) {
	content := `
packages:
  - name: bad
    version: 0.1.0
entities:
  - name: Bad
    kind: module
    package: bad
    constants:
      - name: PI
        type: Float
    methods:
      - name: bar
        singleton: true
        parameters:
          - {kind: opt, name: a}
          - {kind: key, name: b}
          - {kind: keyrest, name: opts}
        signature:
          arg_types: [{name: a, type: Integer}]
          kwarg_types: [{name: b, type: Integer}]
          keyrest_type: T.untyped
          return_type: "<VOID>"
`
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadSnapshot(path)
	require.NoError(t, err)

	bad := mustLookup(t, s, "Bad")
	methods := s.Methods(bad, ir.ClassMethod)
	require.Len(t, methods, 1)

	sig, ok := s.PriorSignature(methods[0])
	require.True(t, ok)
	assert.Equal(t, ir.SentinelVoid, sig.ReturnType)
	require.NotNil(t, sig.KeyRestType)
	assert.Equal(t, "T.untyped", *sig.KeyRestType)
	assert.Len(t, s.RawParameters(methods[0]), 3)
}

func TestLoadSnapshotInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entities": [{"name": "A", "kind": "struct"}]}`), 0644))

	_, err := LoadSnapshot(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot.json")
}

func TestNameCacheMemoizes(t *testing.T) {
	s := mustSnapshot(t, modelDoc())
	counting := &countingNamer{inner: s}
	cache := NewNameCache(counting)

	post := mustLookup(t, s, "Post")
	for i := 0; i < 3; i++ {
		name, err := cache.QualifiedName(post)
		require.NoError(t, err)
		assert.Equal(t, "Post", name)
	}
	assert.Equal(t, 1, counting.calls)
	assert.Equal(t, 1, cache.Len())

	all := s.LoadedEntities()
	anon := all[len(all)-1]
	_, err1 := cache.QualifiedName(anon)
	_, err2 := cache.QualifiedName(anon)
	assert.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 2, counting.calls)
}

func TestNameCachesAreIndependent(t *testing.T) {
	s := mustSnapshot(t, modelDoc())
	a := NewNameCache(s)
	b := NewNameCache(s)

	_, err := a.QualifiedName(mustLookup(t, s, "Post"))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

type countingNamer struct {
	inner Namer
	calls int
}

func (c *countingNamer) QualifiedName(e Entity) (string, error) {
	c.calls++
	return c.inner.QualifiedName(e)
}
