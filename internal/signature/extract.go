// Package signature turns a runtime method handle into an ir.Method.
//
// When the method carries a prior explicit signature, its parameter and
// return types are honoured. Otherwise every parameter and the return type
// fall back to T.untyped.
package signature

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/rbisynth/internal/introspect"
	"github.com/roach88/rbisynth/internal/ir"
)

// UnsupportedParameterKindError is returned when the runtime reports a
// passing kind outside req/opt/rest/keyreq/key/keyrest/block.
type UnsupportedParameterKindError struct {
	Method string
	Kind   string
}

func (e *UnsupportedParameterKindError) Error() string {
	return fmt.Sprintf("method %s: unsupported parameter kind %q", e.Method, e.Kind)
}

// IsUnsupportedParameterKind reports whether err is or wraps an
// *UnsupportedParameterKindError.
func IsUnsupportedParameterKind(err error) bool {
	var ue *UnsupportedParameterKindError
	return errors.As(err, &ue)
}

// Extractor reads parameters and prior signatures through a
// MethodReflector.
type Extractor struct {
	Reflector introspect.MethodReflector

	// Logger receives debug records for type text that could not be parsed.
	// Nil discards them.
	Logger *slog.Logger
}

// Extract is shorthand for Extractor{Reflector: r}.Extract(m).
func Extract(r introspect.MethodReflector, m introspect.Method) (ir.Method, error) {
	return Extractor{Reflector: r}.Extract(m)
}

// Extract builds the declaration for m.
func (x Extractor) Extract(m introspect.Method) (ir.Method, error) {
	out := ir.Method{
		Name:       m.Name,
		Kind:       m.Kind,
		Visibility: m.Visibility,
		Returns:    ir.Unknown{},
	}

	raw := x.Reflector.RawParameters(m)
	out.Params = make([]ir.Param, 0, len(raw))
	for i, rp := range raw {
		kind, ok := ir.ParseParamKind(rp.Kind)
		if !ok {
			return ir.Method{}, &UnsupportedParameterKindError{Method: m.Name, Kind: rp.Kind}
		}
		out.Params = append(out.Params, ir.Param{
			Name: paramName(rp.Name, i),
			Kind: kind,
			Type: ir.Unknown{},
		})
	}

	sig, ok := x.Reflector.PriorSignature(m)
	if !ok || sig == nil {
		return out, nil
	}

	out.Returns = x.parse(m, sig.ReturnType)

	types, ok := matchSignature(out.Params, sig)
	if !ok {
		x.logger().Debug("prior signature does not match parameters",
			"method", m.Name,
			"params", len(out.Params))
		return out, nil
	}
	for i := range out.Params {
		if types[i] != nil {
			out.Params[i].Type = x.parseParam(m, *types[i])
		}
	}
	return out, nil
}

func (x Extractor) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return x.Logger
}

// parse reads type text, falling back to Unknown.
func (x Extractor) parse(m introspect.Method, text string) ir.TypeExpr {
	t, err := ir.ParseType(voidBlockReturns(text))
	if err != nil {
		x.logger().Debug("unparseable type text",
			"method", m.Name,
			"type", text,
			"error", err)
		return ir.Unknown{}
	}
	return t
}

// parseParam is parse for parameter types. void is only meaningful as a
// return, so it degrades to Unknown.
func (x Extractor) parseParam(m introspect.Method, text string) ir.TypeExpr {
	t := x.parse(m, text)
	if _, ok := t.(ir.Void); ok {
		return ir.Unknown{}
	}
	return t
}

// voidBlockReturns rewrites the void sentinel inside proc types, e.g.
// T.proc.params(x: Integer).returns(<VOID>) becomes T.proc.params(x: Integer).void.
func voidBlockReturns(text string) string {
	const sentinel = "returns(" + ir.SentinelVoid + ")"
	if !strings.Contains(text, sentinel) || strings.TrimSpace(text) == sentinel {
		return text
	}
	return strings.ReplaceAll(text, sentinel, "void")
}

// paramName keeps usable runtime names and synthesizes _argN otherwise.
func paramName(name string, index int) string {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "*&") {
		return fmt.Sprintf("_arg%d", index)
	}
	return name
}

// matchSignature pairs each parameter with its type text from sig.
// Positional parameters bind by order whatever their names, keywords by
// name, and rest, keyrest and block by slot. Any disagreement in count,
// keyword name or slot reports false.
func matchSignature(params []ir.Param, sig *introspect.Signature) ([]*string, bool) {
	types := make([]*string, len(params))

	kwargs := make(map[string]string, len(sig.KwargTypes))
	for _, kw := range sig.KwargTypes {
		kwargs[kw.Name] = kw.Type
	}

	positional, keywords := 0, 0
	var rest, keyRest, block bool
	for i, p := range params {
		switch {
		case p.Kind.IsPositional():
			if positional >= len(sig.ArgTypes) {
				return nil, false
			}
			types[i] = &sig.ArgTypes[positional].Type
			positional++
		case p.Kind.IsKeyword():
			t, ok := kwargs[p.Name]
			if !ok {
				return nil, false
			}
			types[i] = &t
			keywords++
		case p.Kind == ir.ParamRest:
			if rest || sig.RestType == nil {
				return nil, false
			}
			types[i], rest = sig.RestType, true
		case p.Kind == ir.ParamKeyRest:
			if keyRest || sig.KeyRestType == nil {
				return nil, false
			}
			types[i], keyRest = sig.KeyRestType, true
		case p.Kind == ir.ParamBlock:
			if block || sig.BlockType == nil {
				return nil, false
			}
			types[i], block = sig.BlockType, true
		}
	}

	if positional != len(sig.ArgTypes) || keywords != len(sig.KwargTypes) {
		return nil, false
	}
	if (sig.RestType != nil) != rest || (sig.KeyRestType != nil) != keyRest || (sig.BlockType != nil) != block {
		return nil, false
	}
	return types, true
}
