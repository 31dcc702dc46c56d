package ir

import (
	"slices"
	"strings"
)

// TypeExpr is a sealed interface representing the type expressions a stub
// can carry. Only Unknown, Void, Named, Nilable, Union and Generic implement
// it. A nil TypeExpr is treated as Unknown everywhere.
type TypeExpr interface {
	typeExpr() // Sealed - only these types implement it
}

// Unknown is the dynamic placeholder emitted when no type is known.
type Unknown struct{}

func (Unknown) typeExpr() {}

// Void marks a method that returns no value.
type Void struct{}

func (Void) typeExpr() {}

// Named is a type referenced by its rendered name, e.g. "String" or
// "T.proc.params(object: Post).void".
type Named string

func (Named) typeExpr() {}

// Nilable wraps a type that may also be nil.
type Nilable struct {
	Inner TypeExpr
}

func (Nilable) typeExpr() {}

// Union is any one of its members.
type Union struct {
	Members []TypeExpr
}

func (Union) typeExpr() {}

// Generic applies type arguments to a named base, e.g. T::Array[Post].
type Generic struct {
	Base Named
	Args []TypeExpr
}

func (Generic) typeExpr() {}

// NilableOf wraps t in Nilable. Wrapping an already nilable type or Unknown
// returns it unchanged.
func NilableOf(t TypeExpr) TypeExpr {
	switch t.(type) {
	case Nilable, Unknown, nil:
		return orUnknown(t)
	}
	return Nilable{Inner: t}
}

// AnyOf builds a Union. A single member is returned as itself.
func AnyOf(members ...TypeExpr) TypeExpr {
	if len(members) == 1 {
		return orUnknown(members[0])
	}
	return Union{Members: members}
}

// GenericOf builds a Generic over base.
func GenericOf(base string, args ...TypeExpr) TypeExpr {
	return Generic{Base: Named(base), Args: args}
}

// RenderType produces the stub-file text for t.
func RenderType(t TypeExpr) string {
	var b strings.Builder
	renderType(&b, t)
	return b.String()
}

func renderType(b *strings.Builder, t TypeExpr) {
	switch v := t.(type) {
	case nil, Unknown:
		b.WriteString("T.untyped")
	case Void:
		b.WriteString("void")
	case Named:
		b.WriteString(string(v))
	case Nilable:
		b.WriteString("T.nilable(")
		renderType(b, v.Inner)
		b.WriteByte(')')
	case Union:
		b.WriteString("T.any(")
		renderList(b, v.Members)
		b.WriteByte(')')
	case Generic:
		b.WriteString(string(v.Base))
		b.WriteByte('[')
		renderList(b, v.Args)
		b.WriteByte(']')
	}
}

func renderList(b *strings.Builder, ts []TypeExpr) {
	for i, t := range ts {
		if i > 0 {
			b.WriteString(", ")
		}
		renderType(b, t)
	}
}

// TypeEqual reports whether a and b are structurally equal once union
// members are flattened and put in canonical order.
func TypeEqual(a, b TypeExpr) bool {
	return RenderType(Normalize(a)) == RenderType(Normalize(b))
}

// Normalize returns the canonical form of t: nil becomes Unknown, nested
// unions are flattened and union members are sorted by rendering.
// Rendering order of the original value is left untouched.
func Normalize(t TypeExpr) TypeExpr {
	switch v := t.(type) {
	case nil:
		return Unknown{}
	case Nilable:
		return Nilable{Inner: Normalize(v.Inner)}
	case Generic:
		args := make([]TypeExpr, len(v.Args))
		for i, a := range v.Args {
			args[i] = Normalize(a)
		}
		return Generic{Base: v.Base, Args: args}
	case Union:
		var flat []TypeExpr
		for _, m := range v.Members {
			nm := Normalize(m)
			if inner, ok := nm.(Union); ok {
				flat = append(flat, inner.Members...)
				continue
			}
			flat = append(flat, nm)
		}
		slices.SortStableFunc(flat, func(x, y TypeExpr) int {
			return strings.Compare(RenderType(x), RenderType(y))
		})
		return Union{Members: flat}
	default:
		return t
	}
}

func orUnknown(t TypeExpr) TypeExpr {
	if t == nil {
		return Unknown{}
	}
	return t
}
