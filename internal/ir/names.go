package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NamespaceSeparator joins the segments of a qualified name.
const NamespaceSeparator = "::"

// QualifiedName is a validated, NFC-normalized constant path such as
// "Post::ActiveRecord_Relation". The empty QualifiedName means "no name"
// and is only used for absent superclasses.
//
// Construct with ParseQualifiedName; do not convert arbitrary strings.
type QualifiedName string

// ParseQualifiedName validates s and returns its normalized form.
// An empty input, or any empty segment (including a leading or trailing
// separator), is a *MalformedNameError.
func ParseQualifiedName(s string) (QualifiedName, error) {
	if strings.TrimSpace(s) == "" {
		return "", &MalformedNameError{Name: s, Reason: "name is empty"}
	}

	segments := strings.Split(s, NamespaceSeparator)
	for i, seg := range segments {
		if seg == "" {
			return "", &MalformedNameError{Name: s, Reason: "empty segment"}
		}
		if strings.TrimSpace(seg) != seg || strings.ContainsAny(seg, " \t\n:") {
			return "", &MalformedNameError{Name: s, Reason: "segment contains whitespace or a stray colon"}
		}
		if seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return "", &MalformedNameError{Name: s, Reason: "segment is a path element"}
		}
		// NFC at construction so keys compare equal across sources
		segments[i] = norm.NFC.String(seg)
	}

	return QualifiedName(strings.Join(segments, NamespaceSeparator)), nil
}

// MustQualifiedName is like ParseQualifiedName but panics on error.
// Use only in tests or when the name is a compile-time literal.
func MustQualifiedName(s string) QualifiedName {
	q, err := ParseQualifiedName(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Segments returns the individual constant names of q.
func (q QualifiedName) Segments() []string {
	if q == "" {
		return nil
	}
	return strings.Split(string(q), NamespaceSeparator)
}

// Last returns the final segment of q.
func (q QualifiedName) Last() string {
	segs := q.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Child returns q extended with one more segment.
func (q QualifiedName) Child(segment string) (QualifiedName, error) {
	if q == "" {
		return ParseQualifiedName(segment)
	}
	return ParseQualifiedName(string(q) + NamespaceSeparator + segment)
}
