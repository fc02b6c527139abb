package manifest

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
)

// ErrSchemaMismatch is the sentinel wrapped by every SchemaMismatchError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError reports that a node's consumes contract cannot be
// satisfied from its resolved input manifest: a missing subset or field, a
// type conflict, or a field-name collision between predecessor manifests.
type SchemaMismatchError struct {
	ComponentID string
	Subset      string
	Field       string
	Expected    schema.FieldType
	Actual      schema.FieldType
	Reason      string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("%s: component %s: subset %s", ErrSchemaMismatch.Error(), e.ComponentID, e.Subset)
	if e.Field != "" {
		msg += ": field " + e.Field
	}

	if e.Reason != "" {
		return msg + ": " + e.Reason
	}

	return fmt.Sprintf("%s: expected %s, got %s", msg, e.Expected, e.Actual)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }
