package behavior

import (
	"errors"
	"fmt"
)

var (
	// ErrTreeNotFound is returned when no definition exists for a tree name.
	ErrTreeNotFound = errors.New("behavior tree not found")
	// ErrInvalidDefinition is returned when a definition fails to parse or
	// validate.
	ErrInvalidDefinition = errors.New("invalid behavior tree definition")
	// ErrNilRoot is returned when building a template without a root node.
	ErrNilRoot = errors.New("behavior tree has no root node")
	// ErrUnknownVariable is returned when accessing an undeclared variable.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrTypeMismatch is returned when a value does not match a variable's
	// declared kind.
	ErrTypeMismatch = errors.New("variable type mismatch")
	// ErrNoInstance is returned when an operation requires a running instance.
	ErrNoInstance = errors.New("no behavior tree instance for entity")
)

// LoadError reports a failure to load or build a tree, with the definition
// line where it was detected (0 if unknown).
type LoadError struct {
	Tree string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("behavior tree %q: line %d: %v", e.Tree, e.Line, e.Err)
	}
	return fmt.Sprintf("behavior tree %q: %v", e.Tree, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
