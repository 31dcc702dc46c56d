package ir

import (
	"fmt"
	"strings"
)

// Sigil is the strictness level written in a stub file header.
type Sigil string

const (
	SigilIgnore Sigil = "ignore"
	SigilFalse  Sigil = "false"
	SigilTrue   Sigil = "true"
	SigilStrict Sigil = "strict"
	SigilStrong Sigil = "strong"
)

// ValidSigils lists the accepted strictness levels, loosest first.
var ValidSigils = []Sigil{SigilIgnore, SigilFalse, SigilTrue, SigilStrict, SigilStrong}

// ParseSigil validates a strictness level.
func ParseSigil(s string) (Sigil, error) {
	for _, v := range ValidSigils {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid sigil %q: must be one of %v", s, ValidSigils)
}

// Header returns the first line of a stub file, including its newline.
func Header(sigil Sigil) string {
	return "# typed: " + string(sigil) + "\n"
}

const indent = "  "

// Serialize renders t as stub text. This is the ONLY rendering used for
// files and for verification: the output depends only on the tree's
// contents, never on insertion order.
//
// Layout rules:
//  1. Header line, then one blank line before each namespace
//  2. Namespaces sorted by qualified name, rendered flat with the full name
//  3. Inside a namespace: constants and type members, then mixins, then methods
//  4. Sections and individual methods separated by one blank line
//
// An empty tree renders as the header alone.
func Serialize(t *Tree, sigil Sigil) string {
	var b strings.Builder
	b.WriteString(Header(sigil))

	for _, ns := range t.Namespaces() {
		b.WriteByte('\n')
		writeNamespace(&b, ns)
	}

	return b.String()
}

func writeNamespace(b *strings.Builder, ns *Namespace) {
	b.WriteString(ns.kind.String())
	b.WriteByte(' ')
	b.WriteString(string(ns.name))
	if ns.superclass != "" {
		b.WriteString(" < ")
		b.WriteString(string(ns.superclass))
	}

	if ns.IsEmpty() {
		b.WriteString("; end\n")
		return
	}
	b.WriteByte('\n')

	var sections []string
	if consts := constantLines(ns); len(consts) > 0 {
		sections = append(sections, strings.Join(consts, "\n"))
	}
	if mixins := ns.Mixins(); len(mixins) > 0 {
		lines := make([]string, len(mixins))
		for i, m := range mixins {
			lines[i] = indent + m.Kind.String() + " " + string(m.Module)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	for _, m := range ns.Methods() {
		sections = append(sections, indent+renderSig(m)+"\n"+indent+renderDef(m))
	}

	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\nend\n")
}

// constantLines merges constants and type members in name order.
func constantLines(ns *Namespace) []string {
	type line struct{ name, text string }
	var lines []line
	for _, c := range ns.Constants() {
		lines = append(lines, line{c.Name, fmt.Sprintf("%s%s = T.let(%s, %s)", indent, c.Name, UnknownDefault, RenderType(c.Type))})
	}
	for _, tm := range ns.TypeMembers() {
		lines = append(lines, line{tm.Name, fmt.Sprintf("%s%s = type_member(fixed: %s)", indent, tm.Name, RenderType(tm.Fixed))})
	}

	// Both inputs are sorted; merge keeps the combined output sorted.
	out := make([]string, 0, len(lines))
	nc := len(ns.constants)
	i, j := 0, nc
	for i < nc || j < len(lines) {
		if j >= len(lines) || (i < nc && lines[i].name <= lines[j].name) {
			out = append(out, lines[i].text)
			i++
			continue
		}
		out = append(out, lines[j].text)
		j++
	}
	return out
}

func renderSig(m Method) string {
	var b strings.Builder
	b.WriteString("sig { ")
	if len(m.Params) > 0 {
		b.WriteString("params(")
		for i, p := range m.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(RenderType(p.Type))
		}
		b.WriteString(").")
	}
	if _, ok := m.Returns.(Void); ok {
		b.WriteString("void")
	} else {
		b.WriteString("returns(")
		b.WriteString(RenderType(m.Returns))
		b.WriteByte(')')
	}
	b.WriteString(" }")
	return b.String()
}

func renderDef(m Method) string {
	var b strings.Builder
	if m.Visibility != Public {
		b.WriteString(m.Visibility.String())
		b.WriteByte(' ')
	}
	b.WriteString("def ")
	if m.Kind == ClassMethod {
		b.WriteString("self.")
	}
	b.WriteString(m.Name)
	if len(m.Params) > 0 {
		b.WriteByte('(')
		for i, p := range m.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(renderParam(p))
		}
		b.WriteByte(')')
	}
	b.WriteString("; end")
	return b.String()
}

func renderParam(p Param) string {
	def := UnknownDefault
	if p.Default != nil {
		def = *p.Default
	}
	switch p.Kind {
	case ParamOpt:
		return p.Name + " = " + def
	case ParamRest:
		return "*" + p.Name
	case ParamKeyReq:
		return p.Name + ":"
	case ParamKey:
		return p.Name + ": " + def
	case ParamKeyRest:
		return "**" + p.Name
	case ParamBlock:
		return "&" + p.Name
	default:
		return p.Name
	}
}
