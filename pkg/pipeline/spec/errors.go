package spec

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("invalid component spec")

// ValidationError reports a malformed component contract: a bad type
// literal, a duplicate field or arg name, or a default that does not
// type-check. It names the offending field so the contract author can fix
// the document.
type ValidationError struct {
	Spec   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := ErrValidation.Error()
	if e.Spec != "" {
		msg += " " + e.Spec
	}
	if e.Field != "" {
		msg += ": " + e.Field
	}

	return fmt.Sprintf("%s: %s", msg, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
