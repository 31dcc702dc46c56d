// Package introspect defines the boundary between stub generation and the
// running program it describes.
//
// The core never enumerates a live object graph directly. It asks a Runtime
// for the loaded entities, their names, ancestry, constants, mixins and
// methods, and for each method's raw parameter list and prior signature.
// Snapshot is the finite Runtime used by the CLI and by tests.
package introspect

import (
	"fmt"

	"github.com/roach88/rbisynth/internal/ir"
)

// Entity is an opaque handle to a reflected class or module.
// Handles compare by identity and are only meaningful to the Runtime that
// produced them; the core never constructs one.
type Entity interface {
	entity() // Sealed - only runtimes in this package produce handles
}

// Method is a handle to one method of an entity.
type Method struct {
	Owner      Entity
	Name       string
	Kind       ir.MethodKind
	Visibility ir.Visibility
}

// RawParameter is one (passing-kind, name) pair as reported by the runtime.
// Kind is left as the runtime's label; the signature extractor validates it.
type RawParameter struct {
	Kind string `yaml:"kind" json:"kind"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// TypedParam pairs a parameter name with its declared type text.
type TypedParam struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Signature is a method's prior explicit type signature.
//
// Types are carried as text. ReturnType may be ir.SentinelVoid or
// ir.SentinelNotTyped.
type Signature struct {
	// ArgTypes covers required and optional positional parameters, in order.
	ArgTypes []TypedParam `yaml:"arg_types,omitempty" json:"arg_types,omitempty"`

	// KwargTypes covers required and optional keyword parameters, by name.
	KwargTypes []TypedParam `yaml:"kwarg_types,omitempty" json:"kwarg_types,omitempty"`

	RestType    *string `yaml:"rest_type,omitempty" json:"rest_type,omitempty"`
	KeyRestType *string `yaml:"keyrest_type,omitempty" json:"keyrest_type,omitempty"`
	BlockType   *string `yaml:"block_type,omitempty" json:"block_type,omitempty"`

	ReturnType string `yaml:"return_type" json:"return_type"`
}

// ConstantInfo describes a constant defined directly on an entity.
// Type is empty when the runtime cannot name the value's type.
type ConstantInfo struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

// MixinInfo records an include or extend performed by an entity itself.
type MixinInfo struct {
	Kind   ir.MixinKind
	Module string
}

// Package identifies a dependency whose entities can be synthesized as a
// whole.
type Package struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

func (p Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// Namer resolves an entity's qualified name.
type Namer interface {
	QualifiedName(e Entity) (string, error)
}

// MethodReflector exposes per-method metadata.
type MethodReflector interface {
	RawParameters(m Method) []RawParameter
	PriorSignature(m Method) (*Signature, bool)
}

// Runtime is everything the core reads from the running program.
// Implementations must be safe for concurrent reads; the core never mutates
// them.
type Runtime interface {
	Namer
	MethodReflector

	// LoadedEntities enumerates every loaded class and module.
	LoadedEntities() []Entity

	KindOf(e Entity) ir.NamespaceKind
	SuperclassOf(e Entity) (string, bool)
	IsAbstract(e Entity) bool

	// IsSubtypeOf reports whether ancestor is a strict superclass of e.
	IsSubtypeOf(e Entity, ancestor string) bool

	// Includes reports whether module is mixed into e or any ancestor.
	Includes(e Entity, module string) bool

	Constants(e Entity) []ConstantInfo
	Mixins(e Entity) []MixinInfo
	Methods(e Entity, kind ir.MethodKind) []Method

	// DSLValues returns facts a framework DSL recorded on e under key,
	// such as the names declared with `scope`.
	DSLValues(e Entity, key string) []string

	Packages() []Package
	EntitiesOwnedBy(p Package) []Entity
}

// AnonymousEntityError is returned when an entity has no stable name.
type AnonymousEntityError struct {
	Description string
}

func (e *AnonymousEntityError) Error() string {
	return fmt.Sprintf("entity %s has no qualified name", e.Description)
}

// ForeignEntityError is returned when a handle from another runtime is
// passed in.
type ForeignEntityError struct {
	Entity Entity
}

func (e *ForeignEntityError) Error() string {
	return fmt.Sprintf("entity %v does not belong to this runtime", e.Entity)
}
