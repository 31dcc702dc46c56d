package ir

import (
	"fmt"
	"slices"
	"strings"
)

// NamespaceKind distinguishes modules from classes.
type NamespaceKind int

const (
	ModuleKind NamespaceKind = iota
	ClassKind
)

func (k NamespaceKind) String() string {
	if k == ClassKind {
		return "class"
	}
	return "module"
}

// MethodKind distinguishes instance methods from class (singleton) methods.
type MethodKind int

const (
	InstanceMethod MethodKind = iota
	ClassMethod
)

func (k MethodKind) String() string {
	if k == ClassMethod {
		return "class"
	}
	return "instance"
}

// Visibility of a method. Declaration order is the serialized order.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// ParamKind is how an argument is passed.
type ParamKind int

const (
	ParamReq     ParamKind = iota // a
	ParamOpt                      // a = default
	ParamRest                     // *a
	ParamKeyReq                   // a:
	ParamKey                      // a: default
	ParamKeyRest                  // **a
	ParamBlock                    // &a
)

var paramKindNames = map[ParamKind]string{
	ParamReq:     "req",
	ParamOpt:     "opt",
	ParamRest:    "rest",
	ParamKeyReq:  "keyreq",
	ParamKey:     "key",
	ParamKeyRest: "keyrest",
	ParamBlock:   "block",
}

func (k ParamKind) String() string {
	if s, ok := paramKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseParamKind maps the introspection facility's passing-kind label
// ("req", "opt", "rest", "keyreq", "key", "keyrest", "block") to a ParamKind.
func ParseParamKind(s string) (ParamKind, bool) {
	for k, name := range paramKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsPositional reports whether k is bound by position.
func (k ParamKind) IsPositional() bool {
	return k == ParamReq || k == ParamOpt
}

// IsKeyword reports whether k is bound by name.
func (k ParamKind) IsKeyword() bool {
	return k == ParamKeyReq || k == ParamKey
}

// HasDefault reports whether k is an optional kind that renders a default.
func (k ParamKind) HasDefault() bool {
	return k == ParamOpt || k == ParamKey
}

// UnknownDefault is the default literal used when the real default value is
// not known.
const UnknownDefault = "T.unsafe(nil)"

// Param is one method parameter.
type Param struct {
	Name string
	Kind ParamKind
	Type TypeExpr

	// Default is the literal rendered for optional kinds. Nil means
	// UnknownDefault.
	Default *string
}

// Method is a method declaration.
type Method struct {
	Name       string
	Kind       MethodKind
	Visibility Visibility
	Params     []Param
	Returns    TypeExpr
}

// MethodKey identifies a method within a namespace.
type MethodKey struct {
	Name       string
	Kind       MethodKind
	Visibility Visibility
}

// Key returns the identity of m within its namespace.
func (m Method) Key() MethodKey {
	return MethodKey{Name: m.Name, Kind: m.Kind, Visibility: m.Visibility}
}

// Constant is a constant assignment whose value is not reproduced.
type Constant struct {
	Name string
	Type TypeExpr
}

// TypeMember is a fixed generic type member, e.g. Elem = type_member(fixed: Post).
type TypeMember struct {
	Name  string
	Fixed TypeExpr
}

// MixinKind is how a module is mixed into a namespace.
type MixinKind int

const (
	Include MixinKind = iota
	Extend
)

func (k MixinKind) String() string {
	if k == Extend {
		return "extend"
	}
	return "include"
}

// Mixin records that the owning namespace includes or extends Module.
type Mixin struct {
	Kind   MixinKind
	Module QualifiedName
}

// Namespace is a module or class node. Its name, kind and superclass are
// fixed at creation.
type Namespace struct {
	name       QualifiedName
	kind       NamespaceKind
	superclass QualifiedName

	constants   []Constant
	typeMembers []TypeMember
	constNames  map[string]struct{}

	mixins   []Mixin
	mixinSet map[Mixin]struct{}

	methods   []Method
	methodSet map[MethodKey]struct{}
}

func newNamespace(name QualifiedName, kind NamespaceKind, superclass QualifiedName) *Namespace {
	return &Namespace{
		name:       name,
		kind:       kind,
		superclass: superclass,
		constNames: make(map[string]struct{}),
		mixinSet:   make(map[Mixin]struct{}),
		methodSet:  make(map[MethodKey]struct{}),
	}
}

// Name returns the qualified name of the namespace.
func (n *Namespace) Name() QualifiedName { return n.name }

// Kind returns whether the namespace is a module or a class.
func (n *Namespace) Kind() NamespaceKind { return n.kind }

// Superclass returns the declared superclass, or "" when none.
func (n *Namespace) Superclass() QualifiedName { return n.superclass }

// AddMethod adds m unless a method with the same key is already present.
// Returns false when m was skipped as a re-declaration.
func (n *Namespace) AddMethod(m Method) bool {
	key := m.Key()
	if _, exists := n.methodSet[key]; exists {
		return false
	}
	if m.Returns == nil {
		m.Returns = Unknown{}
	}
	m.Params = slices.Clone(m.Params)
	n.methodSet[key] = struct{}{}
	n.methods = append(n.methods, m)
	return true
}

// HasMethod reports whether a method with key is declared.
func (n *Namespace) HasMethod(key MethodKey) bool {
	_, ok := n.methodSet[key]
	return ok
}

// AddMixin records that the namespace includes or extends module.
// Re-adding the same mixin is a no-op.
func (n *Namespace) AddMixin(kind MixinKind, module string) error {
	q, err := ParseQualifiedName(module)
	if err != nil {
		return err
	}
	m := Mixin{Kind: kind, Module: q}
	if _, exists := n.mixinSet[m]; exists {
		return nil
	}
	n.mixinSet[m] = struct{}{}
	n.mixins = append(n.mixins, m)
	return nil
}

// AddConstant declares a constant. The first declaration of a name wins.
func (n *Namespace) AddConstant(name string, typ TypeExpr) error {
	if err := checkConstantName(name); err != nil {
		return err
	}
	if _, exists := n.constNames[name]; exists {
		return nil
	}
	n.constNames[name] = struct{}{}
	n.constants = append(n.constants, Constant{Name: name, Type: orUnknown(typ)})
	return nil
}

// AddTypeMember declares a fixed type member. Type members share the
// constant name space.
func (n *Namespace) AddTypeMember(name string, fixed TypeExpr) error {
	if err := checkConstantName(name); err != nil {
		return err
	}
	if _, exists := n.constNames[name]; exists {
		return nil
	}
	n.constNames[name] = struct{}{}
	n.typeMembers = append(n.typeMembers, TypeMember{Name: name, Fixed: orUnknown(fixed)})
	return nil
}

func checkConstantName(name string) error {
	if name == "" {
		return &MalformedNameError{Name: name, Reason: "constant name is empty"}
	}
	if strings.Contains(name, NamespaceSeparator) || strings.ContainsAny(name, " \t\n") {
		return &MalformedNameError{Name: name, Reason: "constant name must be a single segment"}
	}
	return nil
}

// Methods returns the declared methods in canonical order.
func (n *Namespace) Methods() []Method {
	out := slices.Clone(n.methods)
	slices.SortFunc(out, compareMethods)
	return out
}

// Constants returns the declared constants sorted by name.
func (n *Namespace) Constants() []Constant {
	out := slices.Clone(n.constants)
	slices.SortFunc(out, func(a, b Constant) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// TypeMembers returns the declared type members sorted by name.
func (n *Namespace) TypeMembers() []TypeMember {
	out := slices.Clone(n.typeMembers)
	slices.SortFunc(out, func(a, b TypeMember) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Mixins returns the mixins, includes before extends, then by module name.
func (n *Namespace) Mixins() []Mixin {
	out := slices.Clone(n.mixins)
	slices.SortFunc(out, func(a, b Mixin) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(string(a.Module), string(b.Module))
	})
	return out
}

// IsEmpty reports whether the namespace has no body.
func (n *Namespace) IsEmpty() bool {
	return len(n.constants) == 0 && len(n.typeMembers) == 0 && len(n.mixins) == 0 && len(n.methods) == 0
}

// compareMethods orders by name, class methods before instance methods,
// then public < protected < private.
func compareMethods(a, b Method) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		if a.Kind == ClassMethod {
			return -1
		}
		return 1
	}
	return int(a.Visibility) - int(b.Visibility)
}

// Tree is the root of one generation pass.
type Tree struct {
	namespaces []*Namespace
	index      map[QualifiedName]*Namespace
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{index: make(map[QualifiedName]*Namespace)}
}

// EnsureNamespace returns the namespace called name, creating it when absent.
// superclass may be empty. Reopening an existing namespace with a different
// kind or superclass is a *NamespaceConflictError.
func (t *Tree) EnsureNamespace(name string, kind NamespaceKind, superclass string) (*Namespace, error) {
	q, err := ParseQualifiedName(name)
	if err != nil {
		return nil, err
	}

	var super QualifiedName
	if superclass != "" {
		if kind != ClassKind {
			return nil, fmt.Errorf("module %s cannot declare superclass %s", q, superclass)
		}
		super, err = ParseQualifiedName(superclass)
		if err != nil {
			return nil, err
		}
	}

	if existing, ok := t.index[q]; ok {
		if existing.kind != kind || existing.superclass != super {
			return nil, &NamespaceConflictError{
				Name:                q,
				ExistingKind:        existing.kind,
				RequestedKind:       kind,
				ExistingSuperclass:  existing.superclass,
				RequestedSuperclass: super,
			}
		}
		return existing, nil
	}

	ns := newNamespace(q, kind, super)
	t.index[q] = ns
	t.namespaces = append(t.namespaces, ns)
	return ns, nil
}

// Lookup returns the namespace called name, if present.
func (t *Tree) Lookup(name string) (*Namespace, bool) {
	q, err := ParseQualifiedName(name)
	if err != nil {
		return nil, false
	}
	ns, ok := t.index[q]
	return ns, ok
}

// Namespaces returns every namespace sorted by qualified name.
func (t *Tree) Namespaces() []*Namespace {
	out := slices.Clone(t.namespaces)
	slices.SortFunc(out, func(a, b *Namespace) int {
		return strings.Compare(string(a.name), string(b.name))
	})
	return out
}

// Empty reports whether the tree has no declarations at all.
func (t *Tree) Empty() bool {
	return len(t.namespaces) == 0
}

// Len returns the number of namespaces.
func (t *Tree) Len() int {
	return len(t.namespaces)
}
