package introspect

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rbisynth/internal/ir"
	"github.com/roach88/rbisynth/internal/loader"
)

// SnapshotDoc is the on-disk form of a runtime snapshot.
type SnapshotDoc struct {
	Packages []Package   `yaml:"packages,omitempty" json:"packages,omitempty"`
	Entities []EntityDoc `yaml:"entities" json:"entities"`
}

// EntityDoc describes one class or module. An empty Name marks an
// anonymous entity.
type EntityDoc struct {
	Name       string              `yaml:"name" json:"name"`
	Kind       string              `yaml:"kind" json:"kind"`
	Superclass string              `yaml:"superclass,omitempty" json:"superclass,omitempty"`
	Abstract   bool                `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	Package    string              `yaml:"package,omitempty" json:"package,omitempty"`
	Mixins     []MixinDoc          `yaml:"mixins,omitempty" json:"mixins,omitempty"`
	Constants  []ConstantInfo      `yaml:"constants,omitempty" json:"constants,omitempty"`
	DSL        map[string][]string `yaml:"dsl,omitempty" json:"dsl,omitempty"`
	Methods    []MethodDoc         `yaml:"methods,omitempty" json:"methods,omitempty"`
}

// MixinDoc is an include or extend recorded on an entity.
type MixinDoc struct {
	Kind   string `yaml:"kind" json:"kind"`
	Module string `yaml:"module" json:"module"`
}

// MethodDoc describes one method. Singleton methods are class methods.
type MethodDoc struct {
	Name       string         `yaml:"name" json:"name"`
	Singleton  bool           `yaml:"singleton,omitempty" json:"singleton,omitempty"`
	Visibility string         `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Parameters []RawParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Signature  *Signature     `yaml:"signature,omitempty" json:"signature,omitempty"`
}

type record struct {
	index      int
	name       string
	kind       ir.NamespaceKind
	superclass string
	abstract   bool
	pkg        string
	mixins     []MixinInfo
	constants  []ConstantInfo
	dsl        map[string][]string
	methods    [2][]*methodRecord // indexed by ir.MethodKind
}

func (*record) entity() {}

func (r *record) String() string {
	if r.name == "" {
		return fmt.Sprintf("#<anonymous:%d>", r.index)
	}
	return r.name
}

type methodRecord struct {
	handle    Method
	params    []RawParameter
	signature *Signature
}

type methodID struct {
	owner *record
	name  string
	kind  ir.MethodKind
}

// Snapshot is a finite, immutable Runtime backed by a SnapshotDoc.
type Snapshot struct {
	records  []*record // sorted by name, anonymous last
	owned    map[*record]struct{}
	byName   map[string]*record
	methods  map[methodID]*methodRecord
	packages []Package
}

var _ Runtime = (*Snapshot)(nil)

// LoadSnapshot reads a snapshot document (.yaml, .yml, .json or .cue).
func LoadSnapshot(path string) (*Snapshot, error) {
	var doc SnapshotDoc
	if err := loader.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	s, err := NewSnapshot(doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return s, nil
}

// NewSnapshot validates doc and builds a Snapshot from it.
//
// Entity names are not validated here; malformed names are reported by the
// pass that tries to declare them.
func NewSnapshot(doc SnapshotDoc) (*Snapshot, error) {
	s := &Snapshot{
		owned:    make(map[*record]struct{}),
		byName:   make(map[string]*record),
		methods:  make(map[methodID]*methodRecord),
		packages: slices.Clone(doc.Packages),
	}

	for i, ed := range doc.Entities {
		r, err := newRecord(i, ed)
		if err != nil {
			return nil, err
		}
		if r.name != "" {
			if _, dup := s.byName[r.name]; dup {
				return nil, fmt.Errorf("entity %s: defined more than once", r.name)
			}
			s.byName[r.name] = r
		}
		s.records = append(s.records, r)
		s.owned[r] = struct{}{}

		for _, md := range ed.Methods {
			mr, err := newMethodRecord(r, md)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", r, err)
			}
			id := methodID{owner: r, name: mr.handle.Name, kind: mr.handle.Kind}
			if _, dup := s.methods[id]; dup {
				return nil, fmt.Errorf("entity %s: method %s defined more than once", r, md.Name)
			}
			s.methods[id] = mr
			r.methods[mr.handle.Kind] = append(r.methods[mr.handle.Kind], mr)
		}
		for k := range r.methods {
			slices.SortFunc(r.methods[k], func(a, b *methodRecord) int {
				return strings.Compare(a.handle.Name, b.handle.Name)
			})
		}
	}

	slices.SortStableFunc(s.records, func(a, b *record) int {
		switch {
		case a.name == "" && b.name == "":
			return a.index - b.index
		case a.name == "":
			return 1
		case b.name == "":
			return -1
		}
		return strings.Compare(a.name, b.name)
	})

	known := make(map[string]bool, len(s.packages))
	for _, p := range s.packages {
		known[p.Name] = true
	}
	for _, r := range s.records {
		if r.pkg != "" && !known[r.pkg] {
			return nil, fmt.Errorf("entity %s: unknown package %q", r, r.pkg)
		}
	}
	return s, nil
}

func newRecord(index int, ed EntityDoc) (*record, error) {
	r := &record{
		index:      index,
		name:       ed.Name,
		superclass: ed.Superclass,
		abstract:   ed.Abstract,
		pkg:        ed.Package,
		constants:  slices.Clone(ed.Constants),
		dsl:        ed.DSL,
	}

	switch ed.Kind {
	case "class":
		r.kind = ir.ClassKind
	case "module":
		r.kind = ir.ModuleKind
		if ed.Superclass != "" {
			return nil, fmt.Errorf("entity %s: module cannot have superclass %s", r, ed.Superclass)
		}
	default:
		return nil, fmt.Errorf("entity %s: unknown kind %q (want class or module)", r, ed.Kind)
	}

	for _, md := range ed.Mixins {
		var kind ir.MixinKind
		switch md.Kind {
		case "include":
			kind = ir.Include
		case "extend":
			kind = ir.Extend
		default:
			return nil, fmt.Errorf("entity %s: unknown mixin kind %q", r, md.Kind)
		}
		r.mixins = append(r.mixins, MixinInfo{Kind: kind, Module: md.Module})
	}
	return r, nil
}

func newMethodRecord(owner *record, md MethodDoc) (*methodRecord, error) {
	if md.Name == "" {
		return nil, fmt.Errorf("method with empty name")
	}
	vis, err := parseVisibility(md.Visibility)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", md.Name, err)
	}
	kind := ir.InstanceMethod
	if md.Singleton {
		kind = ir.ClassMethod
	}
	return &methodRecord{
		handle: Method{
			Owner:      owner,
			Name:       md.Name,
			Kind:       kind,
			Visibility: vis,
		},
		params:    slices.Clone(md.Parameters),
		signature: md.Signature,
	}, nil
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
		return ir.Public, fmt.Errorf("unknown visibility %q", s)
	}
}

func (s *Snapshot) rec(e Entity) *record {
	r, ok := e.(*record)
	if !ok || r == nil {
		return nil
	}
	if _, ours := s.owned[r]; !ours {
		return nil
	}
	return r
}

// Lookup returns the entity with the given qualified name.
func (s *Snapshot) Lookup(name string) (Entity, bool) {
	r, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return r, true
}

// LoadedEntities returns named entities in name order, then anonymous ones.
func (s *Snapshot) LoadedEntities() []Entity {
	out := make([]Entity, len(s.records))
	for i, r := range s.records {
		out[i] = r
	}
	return out
}

func (s *Snapshot) QualifiedName(e Entity) (string, error) {
	r := s.rec(e)
	if r == nil {
		return "", &ForeignEntityError{Entity: e}
	}
	if r.name == "" {
		return "", &AnonymousEntityError{Description: r.String()}
	}
	return r.name, nil
}

func (s *Snapshot) KindOf(e Entity) ir.NamespaceKind {
	if r := s.rec(e); r != nil {
		return r.kind
	}
	return ir.ModuleKind
}

func (s *Snapshot) SuperclassOf(e Entity) (string, bool) {
	r := s.rec(e)
	if r == nil || r.superclass == "" {
		return "", false
	}
	return r.superclass, true
}

func (s *Snapshot) IsAbstract(e Entity) bool {
	r := s.rec(e)
	return r != nil && r.abstract
}

// IsSubtypeOf walks the superclass chain. Superclasses missing from the
// snapshot end the walk.
func (s *Snapshot) IsSubtypeOf(e Entity, ancestor string) bool {
	r := s.rec(e)
	if r == nil {
		return false
	}
	seen := map[string]bool{}
	for name := r.superclass; name != "" && !seen[name]; {
		if name == ancestor {
			return true
		}
		seen[name] = true
		next, ok := s.byName[name]
		if !ok {
			return false
		}
		name = next.superclass
	}
	return false
}

// Includes reports whether module is included into e, its superclasses, or
// any module they include.
func (s *Snapshot) Includes(e Entity, module string) bool {
	r := s.rec(e)
	if r == nil {
		return false
	}
	seen := map[*record]bool{}
	var visit func(r *record) bool
	visit = func(r *record) bool {
		if seen[r] {
			return false
		}
		seen[r] = true
		for _, m := range r.mixins {
			if m.Kind != ir.Include {
				continue
			}
			if m.Module == module {
				return true
			}
			if mr, ok := s.byName[m.Module]; ok && visit(mr) {
				return true
			}
		}
		if sup, ok := s.byName[r.superclass]; ok && r.superclass != "" {
			return visit(sup)
		}
		return false
	}
	return visit(r)
}

func (s *Snapshot) Constants(e Entity) []ConstantInfo {
	r := s.rec(e)
	if r == nil {
		return nil
	}
	return slices.Clone(r.constants)
}

func (s *Snapshot) Mixins(e Entity) []MixinInfo {
	r := s.rec(e)
	if r == nil {
		return nil
	}
	return slices.Clone(r.mixins)
}

// Methods returns e's methods of the given kind sorted by name.
func (s *Snapshot) Methods(e Entity, kind ir.MethodKind) []Method {
	r := s.rec(e)
	if r == nil || int(kind) >= len(r.methods) {
		return nil
	}
	out := make([]Method, len(r.methods[kind]))
	for i, mr := range r.methods[kind] {
		out[i] = mr.handle
	}
	return out
}

func (s *Snapshot) method(m Method) *methodRecord {
	r := s.rec(m.Owner)
	if r == nil {
		return nil
	}
	return s.methods[methodID{owner: r, name: m.Name, kind: m.Kind}]
}

func (s *Snapshot) RawParameters(m Method) []RawParameter {
	mr := s.method(m)
	if mr == nil {
		return nil
	}
	return slices.Clone(mr.params)
}

func (s *Snapshot) PriorSignature(m Method) (*Signature, bool) {
	mr := s.method(m)
	if mr == nil || mr.signature == nil {
		return nil, false
	}
	return mr.signature, true
}

func (s *Snapshot) DSLValues(e Entity, key string) []string {
	r := s.rec(e)
	if r == nil {
		return nil
	}
	return slices.Clone(r.dsl[key])
}

// Packages returns the declared packages in name order.
func (s *Snapshot) Packages() []Package {
	out := slices.Clone(s.packages)
	slices.SortFunc(out, func(a, b Package) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// EntitiesOwnedBy returns the entities declared by p, in name order.
func (s *Snapshot) EntitiesOwnedBy(p Package) []Entity {
	if p.Name == "" {
		return nil
	}
	var out []Entity
	for _, r := range s.records {
		if r.pkg == p.Name {
			out = append(out, r)
		}
	}
	return out
}

// Package returns the declared package called name.
func (s *Snapshot) Package(name string) (Package, bool) {
	for _, p := range s.packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
