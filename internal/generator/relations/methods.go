package relations

import (
	"fmt"

	"github.com/roach88/rbisynth/internal/ir"
)

// Parameter constructors. Types are parsed from text; text that does not
// parse is kept verbatim.

func typ(text string) ir.TypeExpr {
	t, err := ir.ParseType(text)
	if err != nil {
		return ir.Named(text)
	}
	return t
}

func req(name, t string) ir.Param  { return ir.Param{Name: name, Kind: ir.ParamReq, Type: typ(t)} }
func rest(name, t string) ir.Param { return ir.Param{Name: name, Kind: ir.ParamRest, Type: typ(t)} }
func block(name, t string) ir.Param {
	return ir.Param{Name: name, Kind: ir.ParamBlock, Type: typ(t)}
}

func opt(name, t, def string) ir.Param {
	return ir.Param{Name: name, Kind: ir.ParamOpt, Type: typ(t), Default: &def}
}

func method(name string, returns string, params ...ir.Param) ir.Method {
	var r ir.TypeExpr = ir.Void{}
	if returns != "" {
		r = typ(returns)
	}
	return ir.Method{Name: name, Params: params, Returns: r}
}

// queryMethodNames take (*args, &blk) and return the relation they were
// called on.
var queryMethodNames = []string{
	"select", "reselect", "order", "reorder", "group", "limit", "offset", "joins",
	"left_joins", "left_outer_joins", "where", "rewhere", "preload", "extract_associated",
	"eager_load", "includes", "from", "lock", "readonly", "or", "having", "create_with",
	"distinct", "references", "none", "unscope", "optimizer_hints", "merge", "except", "only",
}

// querySpec is a query method whose return type depends on the module it is
// declared in.
type querySpec struct {
	name   string
	params []ir.Param
}

func (q querySpec) method(relation string) ir.Method {
	return ir.Method{Name: q.name, Params: q.params, Returns: ir.Named(relation)}
}

func queryMethods() []querySpec {
	specs := []querySpec{
		{name: "all"},
		{name: "not", params: []ir.Param{req("opts", "T.untyped"), rest("rest", "T.untyped")}},
	}
	for _, name := range queryMethodNames {
		specs = append(specs, querySpec{
			name:   name,
			params: []ir.Param{rest("args", "T.untyped"), block("blk", "T.untyped")},
		})
	}
	return specs
}

// finderMethods are the finder and builder methods shared by both method
// modules.
func finderMethods(model string) []ir.Method {
	nilable := fmt.Sprintf("T.nilable(%s)", model)
	objectBlock := fmt.Sprintf("T.nilable(T.proc.params(object: %s).void)", model)

	methods := []ir.Method{
		method("exists?", "T::Boolean", opt("conditions", "T.untyped", ":none")),
		method("find", model, rest("args", "T.untyped")),
		method("find_by", nilable, rest("args", "T.untyped")),
		method("find_by!", model, rest("args", "T.untyped")),
		method("first", "T.untyped", opt("limit", "T.untyped", "nil")),
		method("last", "T.untyped", opt("limit", "T.untyped", "nil")),
		method("take", "T.untyped", opt("limit", "T.untyped", "nil")),
	}

	for _, name := range []string{"first!", "last!", "take!"} {
		methods = append(methods, method(name, nilable))
	}
	for _, name := range []string{"second", "third", "fourth", "fifth", "second_to_last", "third_to_last"} {
		methods = append(methods, method(name, model), method(name+"!", nilable))
	}

	for _, name := range []string{"find_or_initialize_by", "find_or_create_by", "find_or_create_by!"} {
		methods = append(methods, method(name, model, req("attributes", "T.untyped"), block("block", objectBlock)))
	}
	for _, name := range []string{"create", "create!", "new", "build", "first_or_create", "first_or_create!", "first_or_initialize"} {
		methods = append(methods, method(name, model, opt("attributes", "::Hash", "{}"), block("block", objectBlock)))
	}
	return methods
}

// collectionProxyMethods are declared directly on the collection proxy
// class.
func collectionProxyMethods(n Names) []ir.Method {
	records := fmt.Sprintf("T.any(%s, T::Array[%s], T::Array[%s])", n.Model, n.Model, n.CollectionProxy)
	array := fmt.Sprintf("T::Array[%s]", n.Model)

	return []ir.Method{
		method("<<", n.CollectionProxy, rest("records", records)),
		method("==", "T::Boolean", req("other", "T.untyped")),
		method("any?", "T::Boolean"),
		method("append", n.CollectionProxy, rest("records", records)),
		method("calculate", "T.untyped", req("operation", "T.untyped"), req("column_name", "T.untyped")),
		method("clear", n.CollectionProxy),
		method("concat", n.CollectionProxy, rest("records", records)),
		method("delete", array, rest("records", records)),
		method("delete_all", "Integer", opt("dependent", "T.untyped", "nil")),
		method("destroy", array, rest("records", records)),
		method("destroy_all", array),
		method("distinct", n.CollectionProxy, req("value", "T::Boolean")),
		method("empty?", "T::Boolean"),
		method("include?", "T::Boolean", req("record", n.Model)),
		method("length", "Integer"),
		method("load_target", ""),
		method("loaded?", "T::Boolean"),
		method("many?", "T::Boolean"),
		method("pluck", "T.untyped", rest("column_names", "T.untyped")),
		method("proxy_association", "T.untyped"),
		method("push", n.CollectionProxy, rest("records", records)),
		method("reload", ""),
		method("replace", "", req("other_array", records)),
		method("reset", ""),
		method("scope", n.AssociationRelation),
		method("select", n.CollectionProxy,
			rest("fields", "T.any(Symbol, String)"),
			block("blk", fmt.Sprintf("T.proc.params(object: %s).returns(T.untyped)", n.Model))),
		method("size", "Integer"),
		method("target", "T.untyped"),
	}
}
