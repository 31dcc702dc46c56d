package ir

import (
	"fmt"
	"strings"
)

// Sentinels used by prior-signature text for "no return value" and
// "never type-checked".
const (
	SentinelVoid     = "<VOID>"
	SentinelNotTyped = "<NOT-TYPED>"
)

// ParseType reads the textual form of a type expression.
//
// Recognized forms:
//
//	T.untyped, <NOT-TYPED>       -> Unknown
//	void, <VOID>                 -> Void
//	T.nilable(X)                 -> Nilable
//	T.any(A, B, ...)             -> Union
//	Base[A, ...]                 -> Generic
//	anything else                -> Named, verbatim
//
// The only error is unbalanced brackets or an empty expression.
func ParseType(s string) (TypeExpr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty type expression")
	}
	if err := checkBalanced(s); err != nil {
		return nil, fmt.Errorf("type %q: %w", s, err)
	}
	return parseType(s)
}

// MustParseType is like ParseType but panics on error.
// Use only in tests or for literal type text.
func MustParseType(s string) TypeExpr {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseType(s string) (TypeExpr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty type argument")
	}

	switch s {
	case "T.untyped", SentinelNotTyped:
		return Unknown{}, nil
	case "void", SentinelVoid:
		return Void{}, nil
	}

	if inner, ok := callArgs(s, "T.nilable("); ok {
		t, err := parseType(inner)
		if err != nil {
			return nil, err
		}
		return Nilable{Inner: t}, nil
	}

	if inner, ok := callArgs(s, "T.any("); ok {
		members, err := parseList(inner)
		if err != nil {
			return nil, err
		}
		return Union{Members: members}, nil
	}

	if open := strings.IndexByte(s, '['); open > 0 && s[len(s)-1] == ']' {
		base := s[:open]
		if !strings.ContainsAny(base, "()[] ,") && matchingClose(s, open) == len(s)-1 {
			args, err := parseList(s[open+1 : len(s)-1])
			if err != nil {
				return nil, err
			}
			return Generic{Base: Named(base), Args: args}, nil
		}
	}

	return Named(s), nil
}

// callArgs returns the text between prefix's open paren and the closing
// paren, when that closing paren is the last character of s.
func callArgs(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || s[len(s)-1] != ')' {
		return "", false
	}
	open := len(prefix) - 1
	if matchingClose(s, open) != len(s)-1 {
		return "", false
	}
	return s[open+1 : len(s)-1], true
}

func parseList(s string) ([]TypeExpr, error) {
	parts := splitTopLevel(s)
	out := make([]TypeExpr, 0, len(parts))
	for _, p := range parts {
		t, err := parseType(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// splitTopLevel splits s on commas that are not nested inside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// matchingClose returns the index of the bracket closing the one at open,
// or -1.
func matchingClose(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func checkBalanced(s string) error {
	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
