package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

// fakeReflector serves one method's parameters and signature.
type fakeReflector struct {
	params []introspect.RawParameter
	sig    *introspect.Signature
}

func (f fakeReflector) RawParameters(introspect.Method) []introspect.RawParameter {
	return f.params
}

func (f fakeReflector) PriorSignature(introspect.Method) (*introspect.Signature, bool) {
	return f.sig, f.sig != nil
}

func strptr(s string) *string { return &s }

func raw(pairs ...string) []introspect.RawParameter {
	var out []introspect.RawParameter
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, introspect.RawParameter{Kind: pairs[i], Name: pairs[i+1]})
	}
	return out
}

func typesOf(m ir.Method) []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = ir.RenderType(p.Type)
	}
	return out
}

func TestExtractWithoutSignature(t *testing.T) {
	r := fakeReflector{params: raw("req", "a", "opt", "b", "rest", "c", "keyreq", "d", "key", "e", "keyrest", "f", "block", "g")}
	m := introspect.Method{Name: "foo"}

	got, err := Extract(r, m)
	require.NoError(t, err)

	assert.Equal(t, "foo", got.Name)
	assert.Equal(t, ir.Unknown{}, got.Returns)
	require.Len(t, got.Params, 7)
	for _, p := range got.Params {
		assert.Equal(t, ir.Unknown{}, p.Type, p.Name)
		assert.Nil(t, p.Default, "defaults render as %s", ir.UnknownDefault)
	}
	assert.Equal(t, []ir.ParamKind{
		ir.ParamReq, ir.ParamOpt, ir.ParamRest, ir.ParamKeyReq, ir.ParamKey, ir.ParamKeyRest, ir.ParamBlock,
	}, []ir.ParamKind{
		got.Params[0].Kind, got.Params[1].Kind, got.Params[2].Kind, got.Params[3].Kind,
		got.Params[4].Kind, got.Params[5].Kind, got.Params[6].Kind,
	})
}

func TestExtractKeepsMethodIdentity(t *testing.T) {
	m := introspect.Method{Name: "build", Kind: ir.ClassMethod, Visibility: ir.Protected}
	got, err := Extract(fakeReflector{}, m)
	require.NoError(t, err)
	assert.Equal(t, ir.MethodKey{Name: "build", Kind: ir.ClassMethod, Visibility: ir.Protected}, got.Key())
	assert.Empty(t, got.Params)
}

func TestExtractWithSignature(t *testing.T) {
	r := fakeReflector{
		params: raw("req", "id", "opt", "scope", "rest", "rest", "keyreq", "strict", "key", "limit", "keyrest", "opts", "block", "blk"),
		sig: &introspect.Signature{
			ArgTypes: []introspect.TypedParam{
				{Name: "id", Type: "Integer"},
				{Name: "scope", Type: "T.nilable(Symbol)"},
			},
			KwargTypes: []introspect.TypedParam{
				// Keywords bind by name, not position.
				{Name: "limit", Type: "Integer"},
				{Name: "strict", Type: "T::Boolean"},
			},
			RestType:    strptr("String"),
			KeyRestType: strptr("T.untyped"),
			BlockType:   strptr("T.proc.params(post: Post).returns(<VOID>)"),
			ReturnType:  "T::Array[Post]",
		},
	}

	got, err := Extract(r, introspect.Method{Name: "lookup"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Integer",
		"T.nilable(Symbol)",
		"String",
		"T::Boolean",
		"Integer",
		"T.untyped",
		"T.proc.params(post: Post).void",
	}, typesOf(got))
	assert.Equal(t, "T::Array[Post]", ir.RenderType(got.Returns))
}

func TestExtractSentinelReturns(t *testing.T) {
	tests := []struct {
		returns  string
		expected ir.TypeExpr
	}{
		{ir.SentinelVoid, ir.Void{}},
		{ir.SentinelNotTyped, ir.Unknown{}},
		{"T.untyped", ir.Unknown{}},
		{"Post", ir.Named("Post")},
	}

	for _, tt := range tests {
		t.Run(tt.returns, func(t *testing.T) {
			r := fakeReflector{sig: &introspect.Signature{ReturnType: tt.returns}}
			got, err := Extract(r, introspect.Method{Name: "x"})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Returns)
		})
	}
}

func TestExtractMismatchFallsBackToUnknownParams(t *testing.T) {
	tests := []struct {
		name   string
		params []introspect.RawParameter
		sig    introspect.Signature
	}{
		{
			"positional count",
			raw("req", "a", "req", "b"),
			introspect.Signature{ArgTypes: []introspect.TypedParam{{Name: "a", Type: "Integer"}}},
		},
		{
			"extra positional type",
			raw("req", "a"),
			introspect.Signature{ArgTypes: []introspect.TypedParam{{Name: "a", Type: "Integer"}, {Name: "b", Type: "Integer"}}},
		},
		{
			"keyword name",
			raw("keyreq", "a"),
			introspect.Signature{KwargTypes: []introspect.TypedParam{{Name: "b", Type: "Integer"}}},
		},
		{
			"extra keyword type",
			raw("key", "a"),
			introspect.Signature{KwargTypes: []introspect.TypedParam{{Name: "a", Type: "Integer"}, {Name: "b", Type: "Integer"}}},
		},
		{
			"missing rest slot",
			raw("rest", "args"),
			introspect.Signature{},
		},
		{
			"unexpected block slot",
			raw("req", "a"),
			introspect.Signature{ArgTypes: []introspect.TypedParam{{Name: "a", Type: "Integer"}}, BlockType: strptr("T.untyped")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.sig
			sig.ReturnType = "String"
			got, err := Extract(fakeReflector{params: tt.params, sig: &sig}, introspect.Method{Name: "m"})
			require.NoError(t, err)

			for _, p := range got.Params {
				assert.Equal(t, ir.Unknown{}, p.Type, p.Name)
			}
			// The return type is still honoured.
			assert.Equal(t, ir.Named("String"), got.Returns)
		})
	}
}

func TestExtractBindsPositionalsByOrder(t *testing.T) {
	r := fakeReflector{
		params: raw("req", "", "opt", "b"),
		sig: &introspect.Signature{
			ArgTypes: []introspect.TypedParam{
				{Name: "a", Type: "Integer"},
				{Name: "b", Type: "String"},
			},
			ReturnType: "T::Boolean",
		},
	}

	got, err := Extract(r, introspect.Method{Name: "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Integer", "String"}, typesOf(got))
	assert.Equal(t, "_arg0", got.Params[0].Name)
}

func TestExtractVoidParameterIsUnknown(t *testing.T) {
	r := fakeReflector{
		params: raw("req", "x", "block", "blk"),
		sig: &introspect.Signature{
			ArgTypes:   []introspect.TypedParam{{Name: "x", Type: ir.SentinelVoid}},
			BlockType:  strptr(ir.SentinelVoid),
			ReturnType: ir.SentinelVoid,
		},
	}

	got, err := Extract(r, introspect.Method{Name: "m"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T.untyped", "T.untyped"}, typesOf(got))
	assert.Equal(t, ir.Void{}, got.Returns)
}

func TestExtractSynthesizesNames(t *testing.T) {
	r := fakeReflector{params: raw("req", "", "rest", "*", "keyrest", "**", "block", "&", "req", "ok")}

	got, err := Extract(r, introspect.Method{Name: "m"})
	require.NoError(t, err)

	var names []string
	for _, p := range got.Params {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"_arg0", "_arg1", "_arg2", "_arg3", "ok"}, names)
}

func TestExtractUnsupportedParameterKind(t *testing.T) {
	r := fakeReflector{params: raw("req", "a", "nokey", "")}

	_, err := Extract(r, introspect.Method{Name: "weird"})
	require.Error(t, err)
	assert.True(t, IsUnsupportedParameterKind(err))

	var ue *UnsupportedParameterKindError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "weird", ue.Method)
	assert.Equal(t, "nokey", ue.Kind)
}

func TestExtractUnparseableTypeIsUnknown(t *testing.T) {
	r := fakeReflector{
		params: raw("req", "a"),
		sig: &introspect.Signature{
			ArgTypes:   []introspect.TypedParam{{Name: "a", Type: "T.nilable(Integer"}},
			ReturnType: "T::Hash[Symbol",
		},
	}

	got, err := Extract(r, introspect.Method{Name: "m"})
	require.NoError(t, err)
	assert.Equal(t, ir.Unknown{}, got.Params[0].Type)
	assert.Equal(t, ir.Unknown{}, got.Returns)
}

func TestExtractRendersFallbackDefinition(t *testing.T) {
	r := fakeReflector{params: raw("req", "a", "opt", "b", "rest", "c", "keyreq", "d", "key", "e", "keyrest", "f", "block", "g")}
	m, err := Extract(r, introspect.Method{Name: "foo"})
	require.NoError(t, err)

	tree := ir.NewTree()
	ns, err := tree.EnsureNamespace("Foo", ir.ClassKind, "")
	require.NoError(t, err)
	ns.AddMethod(m)

	assert.Contains(t, ir.Serialize(tree, ir.SigilStrong),
		"  def foo(a, b = T.unsafe(nil), *c, d:, e: T.unsafe(nil), **f, &g); end\n")
}

func TestVoidBlockReturns(t *testing.T) {
	assert.Equal(t, "T.proc.void", voidBlockReturns("T.proc.returns(<VOID>)"))
	assert.Equal(t, "T.nilable(T.proc.params(x: Integer).void)", voidBlockReturns("T.nilable(T.proc.params(x: Integer).returns(<VOID>))"))
	assert.Equal(t, "T.proc.returns(Integer)", voidBlockReturns("T.proc.returns(Integer)"))
}
