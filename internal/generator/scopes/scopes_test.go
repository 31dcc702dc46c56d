package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rbisynth/internal/generator"
	"github.com/roach88/rbisynth/internal/generator/relations"
	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/testutil"
)

func runner(rt introspect.Runtime, gens ...generator.Generator) *generator.Runner {
	return &generator.Runner{
		Runtime:    rt,
		Generators: gens,
		Logger:     testutil.DiscardLogger(),
		IDs:        testutil.NewFixedPassIDs(),
	}
}

func TestApplicableEntitiesRequireScopes(t *testing.T) {
	rt := testutil.NewSnapshot().
		Rails().
		Class("Post", "ApplicationRecord", testutil.Scopes("public_kind")).
		Class("Comment", "ApplicationRecord").
		Build(t)

	g := New(rt)
	assert.True(t, g.Handles(testutil.Lookup(t, rt, "Post")))
	assert.False(t, g.Handles(testutil.Lookup(t, rt, "Comment")))
	assert.Len(t, g.ApplicableEntities(), 1)
}

func TestDecorateGolden(t *testing.T) {
	// Declared out of order; output is sorted.
	rt := testutil.NewSnapshot().
		Rails().
		Class("Post", "ApplicationRecord", testutil.Scopes("public_kind", "private_kind")).
		Build(t)

	res := runner(rt, New(rt)).Run(rt.LoadedEntities())
	require.NoError(t, res.Err())
	require.Len(t, res.Stubs, 1)

	testutil.AssertGolden(t, "post_scopes", ir.Serialize(res.Stubs[0].Tree, ir.SigilStrong))
}

func TestMergesWithRelations(t *testing.T) {
	rt := testutil.NewSnapshot().
		Rails().
		Class("Post", "ApplicationRecord", testutil.Scopes("published")).
		Build(t)

	forward := runner(rt, relations.New(rt), New(rt)).Run(rt.LoadedEntities())
	backward := runner(rt, New(rt), relations.New(rt)).Run(rt.LoadedEntities())
	require.NoError(t, forward.Err())
	require.NoError(t, backward.Err())
	require.Len(t, forward.Stubs, 1)

	text := ir.Serialize(forward.Stubs[0].Tree, ir.SigilStrong)
	assert.Equal(t, text, ir.Serialize(backward.Stubs[0].Tree, ir.SigilStrong))
	assert.Equal(t, []string{relations.Name, Name}, forward.Stubs[0].Generators)

	testutil.AssertGolden(t, "post_with_relations", text)
}
