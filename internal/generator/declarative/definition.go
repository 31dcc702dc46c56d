// Package declarative builds generators from definition documents.
//
// A definition names the entities it applies to and lists the namespaces
// and methods to declare for each of them. Any string may reference the
// entity's qualified name as {{entity}}; methods expanded with for_each also
// see the current DSL value as {{value}}.
//
//	name: relation_queries
//	applies_to:
//	  subtype_of: ActiveRecord::Base
//	  concrete: true
//	namespaces:
//	  - name: "{{entity}}::QueryMethods"
//	    kind: module
//	    methods:
//	      - name: where
//	        params: [{name: args, kind: rest}]
//	        returns: "Relation[{{entity}}]"
package declarative

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/loader"
)

const (
	entityPlaceholder = "{{entity}}"
	valuePlaceholder  = "{{value}}"
)

// Definition is the decoded form of one definition document.
type Definition struct {
	Name       string         `yaml:"name" json:"name"`
	AppliesTo  Applicability  `yaml:"applies_to" json:"applies_to"`
	Namespaces []NamespaceDef `yaml:"namespaces" json:"namespaces"`
}

// Applicability is the conjunction of its set fields. An empty value
// matches every loaded entity.
type Applicability struct {
	SubtypeOf string   `yaml:"subtype_of,omitempty" json:"subtype_of,omitempty"`
	Includes  string   `yaml:"includes,omitempty" json:"includes,omitempty"`
	Concrete  bool     `yaml:"concrete,omitempty" json:"concrete,omitempty"`
	HasDSL    string   `yaml:"has_dsl,omitempty" json:"has_dsl,omitempty"`
	Names     []string `yaml:"names,omitempty" json:"names,omitempty"`
}

type NamespaceDef struct {
	Name        string          `yaml:"name" json:"name"`
	Kind        string          `yaml:"kind" json:"kind"`
	Superclass  string          `yaml:"superclass,omitempty" json:"superclass,omitempty"`
	Mixins      []MixinDef      `yaml:"mixins,omitempty" json:"mixins,omitempty"`
	Constants   []ConstantDef   `yaml:"constants,omitempty" json:"constants,omitempty"`
	TypeMembers []TypeMemberDef `yaml:"type_members,omitempty" json:"type_members,omitempty"`
	Methods     []MethodDef     `yaml:"methods,omitempty" json:"methods,omitempty"`
}

type MixinDef struct {
	Kind   string `yaml:"kind" json:"kind"`
	Module string `yaml:"module" json:"module"`
}

type ConstantDef struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

type TypeMemberDef struct {
	Name  string `yaml:"name" json:"name"`
	Fixed string `yaml:"fixed" json:"fixed"`
}

// MethodDef declares one method, or one per DSL value when ForEach is set.
type MethodDef struct {
	Name        string     `yaml:"name" json:"name"`
	ClassMethod bool       `yaml:"class_method,omitempty" json:"class_method,omitempty"`
	Visibility  string     `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	ForEach     string     `yaml:"for_each,omitempty" json:"for_each,omitempty"`
	Params      []ParamDef `yaml:"params,omitempty" json:"params,omitempty"`

	// Returns is type text; empty means T.untyped.
	Returns string `yaml:"returns,omitempty" json:"returns,omitempty"`
}

// ParamDef declares a parameter. Kind defaults to req and Type to
// T.untyped.
type ParamDef struct {
	Name    string  `yaml:"name" json:"name"`
	Kind    string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Type    string  `yaml:"type,omitempty" json:"type,omitempty"`
	Default *string `yaml:"default,omitempty" json:"default,omitempty"`
}

// DefinitionError reports an invalid definition.
type DefinitionError struct {
	Path   string
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Reason)
}

// LoadDefinition decodes and validates a .yaml, .yml, .json or .cue
// definition.
func LoadDefinition(path string) (*Definition, error) {
	var def Definition
	if err := loader.DecodeFile(path, &def); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		var de *DefinitionError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition against a placeholder entity so that
// authoring errors surface before any pass runs.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return &DefinitionError{Field: "name", Reason: "required"}
	}
	if len(d.Namespaces) == 0 {
		return &DefinitionError{Field: "namespaces", Reason: "at least one namespace is required"}
	}

	x := expander{entity: "Entity", value: "value"}
	for i, ns := range d.Namespaces {
		field := fmt.Sprintf("namespaces[%d]", i)
		if _, err := ir.ParseQualifiedName(x.expand(ns.Name)); err != nil {
			return &DefinitionError{Field: field + ".name", Reason: err.Error()}
		}
		kind, err := parseKind(ns.Kind)
		if err != nil {
			return &DefinitionError{Field: field + ".kind", Reason: err.Error()}
		}
		if kind == ir.ModuleKind && ns.Superclass != "" {
			return &DefinitionError{Field: field + ".superclass", Reason: "modules cannot have a superclass"}
		}
		for j, m := range ns.Mixins {
			if _, err := parseMixinKind(m.Kind); err != nil {
				return &DefinitionError{Field: fmt.Sprintf("%s.mixins[%d].kind", field, j), Reason: err.Error()}
			}
		}
		for j, m := range ns.Methods {
			if _, err := x.method(m); err != nil {
				return &DefinitionError{Field: fmt.Sprintf("%s.methods[%d]", field, j), Reason: err.Error()}
			}
		}
	}
	return nil
}

func parseKind(s string) (ir.NamespaceKind, error) {
	switch s {
	case "class":
		return ir.ClassKind, nil
	case "module":
		return ir.ModuleKind, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want class or module)", s)
	}
}

func parseMixinKind(s string) (ir.MixinKind, error) {
	switch s {
	case "include":
		return ir.Include, nil
	case "extend":
		return ir.Extend, nil
	default:
		return 0, fmt.Errorf("unknown mixin kind %q (want include or extend)", s)
	}
}

func parseVisibility(s string) (ir.Visibility, error) {
	switch s {
	case "", "public":
		return ir.Public, nil
	case "protected":
		return ir.Protected, nil
	case "private":
		return ir.Private, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}

// expander substitutes placeholders and builds IR values from definitions.
type expander struct {
	entity string
	value  string
}

func (x expander) expand(s string) string {
	return strings.NewReplacer(entityPlaceholder, x.entity, valuePlaceholder, x.value).Replace(s)
}

func (x expander) typ(text string) (ir.TypeExpr, error) {
	if strings.TrimSpace(text) == "" {
		return ir.Unknown{}, nil
	}
	return ir.ParseType(x.expand(text))
}

func (x expander) method(md MethodDef) (ir.Method, error) {
	name := x.expand(md.Name)
	if strings.TrimSpace(name) == "" {
		return ir.Method{}, fmt.Errorf("method name is required")
	}
	vis, err := parseVisibility(md.Visibility)
	if err != nil {
		return ir.Method{}, err
	}
	returns, err := x.typ(md.Returns)
	if err != nil {
		return ir.Method{}, fmt.Errorf("method %s: returns: %w", name, err)
	}

	m := ir.Method{Name: name, Visibility: vis, Returns: returns}
	if md.ClassMethod {
		m.Kind = ir.ClassMethod
	}

	for _, pd := range md.Params {
		p := ir.Param{Name: pd.Name, Kind: ir.ParamReq}
		if strings.TrimSpace(p.Name) == "" {
			return ir.Method{}, fmt.Errorf("method %s: parameter name is required", name)
		}
		if pd.Kind != "" {
			kind, ok := ir.ParseParamKind(pd.Kind)
			if !ok {
				return ir.Method{}, fmt.Errorf("method %s: parameter %s: unknown kind %q", name, pd.Name, pd.Kind)
			}
			p.Kind = kind
		}
		if p.Type, err = x.typ(pd.Type); err != nil {
			return ir.Method{}, fmt.Errorf("method %s: parameter %s: %w", name, pd.Name, err)
		}
		if pd.Default != nil {
			if !p.Kind.HasDefault() {
				return ir.Method{}, fmt.Errorf("method %s: parameter %s: %s parameters take no default", name, pd.Name, p.Kind)
			}
			def := x.expand(*pd.Default)
			p.Default = &def
		}
		m.Params = append(m.Params, p)
	}
	return m, nil
}
