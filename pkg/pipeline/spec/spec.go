// Package spec loads declarative component contracts into immutable
// in-memory values. A contract is parsed and validated exactly once;
// everything downstream (the graph builder, the cache-key engine) assumes
// a ComponentSpec handed to it is already valid.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
)

// ArgSpec declares a single typed component argument. Types reuse the
// closed field-type set. An arg with a default is optional.
type ArgSpec struct {
	Name        string
	Description string
	Type        schema.FieldType
	Optional    bool
	Default     any
}

// CheckValue verifies that a user-supplied value matches the declared
// type. Matching is exact per type class; there is no coercion between
// classes (an int is never accepted for a float64 arg).
func (a ArgSpec) CheckValue(value any) error {
	ok := false

	switch a.Type {
	case schema.TypeString:
		_, ok = value.(string)
	case schema.TypeBinary:
		switch value.(type) {
		case []byte, string:
			ok = true
		}
	case schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		switch value.(type) {
		case int, int16, int32, int64:
			ok = true
		}
	case schema.TypeFloat32, schema.TypeFloat64:
		switch value.(type) {
		case float32, float64:
			ok = true
		}
	case schema.TypeBool:
		_, ok = value.(bool)
	case schema.TypeDict:
		_, ok = value.(map[string]any)
	case schema.TypeList:
		_, ok = value.([]any)
	}

	if !ok {
		return errors.Errorf("expected %s, got %T", a.Type, value)
	}

	return nil
}

// ComponentSpec is the validated, immutable contract of one containerized
// component: its container image, what it consumes and produces, and the
// arguments it accepts.
type ComponentSpec struct {
	Name        string
	Description string
	Image       string

	Consumes *schema.Schema
	Produces *schema.Schema

	// ProducesAdditionalFields selects merge semantics for the output
	// manifest: true merges the produces fields into the inherited
	// subsets, false replaces them outright.
	ProducesAdditionalFields bool

	// Args keeps the document declaration order.
	Args []ArgSpec
}

// Arg looks an argument declaration up by name.
func (s *ComponentSpec) Arg(name string) (ArgSpec, bool) {
	for _, arg := range s.Args {
		if arg.Name == name {
			return arg, true
		}
	}

	return ArgSpec{}, false
}

type canonicalField struct {
	Name string           `json:"name"`
	Type schema.FieldType `json:"type"`
}

type canonicalSubset struct {
	Name   string           `json:"name"`
	Fields []canonicalField `json:"fields"`
}

type canonicalArg struct {
	Name     string           `json:"name"`
	Type     schema.FieldType `json:"type"`
	Optional bool             `json:"optional"`
	Default  any              `json:"default"`
}

type canonicalSpec struct {
	Name             string            `json:"name"`
	Image            string            `json:"image"`
	Consumes         []canonicalSubset `json:"consumes"`
	Produces         []canonicalSubset `json:"produces"`
	AdditionalFields bool              `json:"additionalFields"`
	Args             []canonicalArg    `json:"args"`
}

func canonicalSchema(sch *schema.Schema) []canonicalSubset {
	out := make([]canonicalSubset, 0, sch.Len())
	for _, sub := range sch.Subsets() {
		cs := canonicalSubset{Name: sub.Name()}
		for _, field := range sub.Fields() {
			cs.Fields = append(cs.Fields, canonicalField{Name: field.Name, Type: field.Type})
		}
		out = append(out, cs)
	}

	return out
}

// ContentHash returns a stable digest of the contract content: name,
// image, schemas in declared order and arg declarations. Free-text
// descriptions are excluded, so editing documentation never invalidates
// caches. Two specs with the same hash are interchangeable for caching.
func (s *ComponentSpec) ContentHash() (string, error) {
	canonical := canonicalSpec{
		Name:             s.Name,
		Image:            s.Image,
		Consumes:         canonicalSchema(s.Consumes),
		Produces:         canonicalSchema(s.Produces),
		AdditionalFields: s.ProducesAdditionalFields,
	}

	for _, arg := range s.Args {
		canonical.Args = append(canonical.Args, canonicalArg{
			Name:     arg.Name,
			Type:     arg.Type,
			Optional: arg.Optional,
			Default:  arg.Default,
		})
	}

	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", errors.Wrapf(err, "unable to serialise spec %s", s.Name)
	}

	sum := sha256.Sum256(payload)

	return hex.EncodeToString(sum[:]), nil
}
