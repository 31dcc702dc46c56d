package generator

import (
	"errors"
	"fmt"
)

// PassError is a failure that aborted one entity's pass. Sibling passes are
// unaffected.
type PassError struct {
	// Entity is the qualified name, or a description for unnamed entities.
	Entity string

	// Generator is empty when the failure happened outside any generator.
	Generator string

	PassID string
	Err    error
}

func (e *PassError) Error() string {
	if e.Generator == "" {
		return fmt.Sprintf("entity %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("entity %s: generator %s: %v", e.Entity, e.Generator, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// ContractViolationError is returned when a generator is asked to decorate
// an entity outside its applicable set.
type ContractViolationError struct {
	Generator string
	Entity    string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("generator %s does not apply to %s", e.Generator, e.Entity)
}

// IsContractViolation reports whether err is or wraps a
// *ContractViolationError.
func IsContractViolation(err error) bool {
	var ce *ContractViolationError
	return errors.As(err, &ce)
}

// UnknownGeneratorError is returned by Select for a name no generator has.
type UnknownGeneratorError struct {
	Name      string
	Available []string
}

func (e *UnknownGeneratorError) Error() string {
	return fmt.Sprintf("unknown generator %q (available: %v)", e.Name, e.Available)
}
