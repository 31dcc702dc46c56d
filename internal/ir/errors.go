package ir

import (
	"errors"
	"fmt"
)

// MalformedNameError is returned when a qualified name has an empty segment
// or a declaration name is otherwise unusable.
type MalformedNameError struct {
	// Name is the rejected input, verbatim.
	Name string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed name %q: %s", e.Name, e.Reason)
}

// NamespaceConflictError is returned when a namespace is reopened with a kind
// or superclass that differs from the one it was created with.
//
// The first creator of a namespace wins; later reopeners may not change its
// metadata.
type NamespaceConflictError struct {
	Name QualifiedName

	ExistingKind  NamespaceKind
	RequestedKind NamespaceKind

	// Superclasses are empty when none was declared.
	ExistingSuperclass  QualifiedName
	RequestedSuperclass QualifiedName
}

func (e *NamespaceConflictError) Error() string {
	if e.ExistingKind != e.RequestedKind {
		return fmt.Sprintf("namespace %s already declared as %s, cannot reopen as %s",
			e.Name, e.ExistingKind, e.RequestedKind)
	}
	return fmt.Sprintf("namespace %s already declared with superclass %s, cannot reopen with %s",
		e.Name, superclassLabel(e.ExistingSuperclass), superclassLabel(e.RequestedSuperclass))
}

func superclassLabel(q QualifiedName) string {
	if q == "" {
		return "(none)"
	}
	return string(q)
}

// IsNamespaceConflict reports whether err wraps a NamespaceConflictError.
func IsNamespaceConflict(err error) bool {
	var ce *NamespaceConflictError
	return errors.As(err, &ce)
}

// IsMalformedName reports whether err wraps a MalformedNameError.
func IsMalformedName(err error) bool {
	var me *MalformedNameError
	return errors.As(err, &me)
}
