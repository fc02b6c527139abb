package pipeline

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNameMustBeSet     = errors.New("pipeline name must be set")
	ErrBasePathMustBeSet = errors.New("base path must be set")
	ErrSpecMustBeSet     = errors.New("component spec must be set")

	// Sentinels wrapped by the typed errors below, for errors.Is checks.
	ErrDuplicateNode     = errors.New("duplicate node")
	ErrArgValidation     = errors.New("invalid argument")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicGraph       = errors.New("cyclic graph")
)

// DuplicateNodeError reports two nodes declaring the same component id.
type DuplicateNodeError struct {
	ComponentID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("%s: component id %s is already declared", ErrDuplicateNode.Error(), e.ComponentID)
}

func (e *DuplicateNodeError) Unwrap() error { return ErrDuplicateNode }

// ArgValidationError reports a missing required argument, a type
// mismatch, or an argument name the component does not declare.
type ArgValidationError struct {
	ComponentID string
	Arg         string
	Reason      string
}

func (e *ArgValidationError) Error() string {
	return fmt.Sprintf("%s: component %s: arg %s: %s", ErrArgValidation.Error(), e.ComponentID, e.Arg, e.Reason)
}

func (e *ArgValidationError) Unwrap() error { return ErrArgValidation }

// UnknownDependencyError reports a declared predecessor id that does not
// exist in the graph.
type UnknownDependencyError struct {
	ComponentID  string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s: component %s depends on undeclared component %s",
		ErrUnknownDependency.Error(), e.ComponentID, e.DependencyID)
}

func (e *UnknownDependencyError) Unwrap() error { return ErrUnknownDependency }

// CyclicGraphError reports a dependency cycle. Cycle holds the offending
// node sequence with the first node repeated at the end.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclicGraph.Error(), strings.Join(e.Cycle, " -> "))
}

func (e *CyclicGraphError) Unwrap() error { return ErrCyclicGraph }
