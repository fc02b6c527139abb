// Package schema models the typed column contracts that flow between
// pipeline components: fields, named subsets of fields, and the schema
// algebra used to validate and combine them. All values are treated as
// immutable after construction; combining operations return new values.
package schema

import (
	"github.com/pkg/errors"
)

// Subset is a named, ordered group of uniquely-named fields.
type Subset struct {
	name   string
	order  []string
	fields map[string]FieldSpec
}

// NewSubset builds a subset from fields in the given order. Duplicate
// field names are rejected.
func NewSubset(name string, fields ...FieldSpec) (*Subset, error) {
	if name == "" {
		return nil, errors.New("subset name must not be empty")
	}

	sub := &Subset{
		name:   name,
		fields: make(map[string]FieldSpec, len(fields)),
	}

	for _, field := range fields {
		if _, ok := sub.fields[field.Name]; ok {
			return nil, errors.Errorf("subset %s: duplicate field %s", name, field.Name)
		}

		sub.order = append(sub.order, field.Name)
		sub.fields[field.Name] = field
	}

	return sub, nil
}

// Name returns the subset name.
func (s *Subset) Name() string { return s.name }

// Len returns the number of fields.
func (s *Subset) Len() int { return len(s.order) }

// Field looks a field up by name.
func (s *Subset) Field(name string) (FieldSpec, bool) {
	field, ok := s.fields[name]

	return field, ok
}

// Fields returns the fields in insertion order.
func (s *Subset) Fields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}

	return out
}

func (s *Subset) clone() *Subset {
	clone := &Subset{
		name:   s.name,
		order:  append([]string(nil), s.order...),
		fields: make(map[string]FieldSpec, len(s.fields)),
	}
	for name, field := range s.fields {
		clone.fields[name] = field
	}

	return clone
}

// merge returns a copy of s with every field of other inserted or
// overwritten by name. New fields keep other's order at the end;
// overwritten fields keep their original position.
func (s *Subset) merge(other *Subset) *Subset {
	merged := s.clone()
	for _, field := range other.Fields() {
		if _, ok := merged.fields[field.Name]; !ok {
			merged.order = append(merged.order, field.Name)
		}
		merged.fields[field.Name] = field
	}

	return merged
}

// Schema is an ordered mapping of subset name to subset. It represents
// either a declared contract (consumes/produces) or the concrete shape of
// a manifest.
type Schema struct {
	order   []string
	subsets map[string]*Subset
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{subsets: make(map[string]*Subset)}
}

// Add appends a subset. Duplicate subset names are rejected.
func (s *Schema) Add(sub *Subset) error {
	if _, ok := s.subsets[sub.name]; ok {
		return errors.Errorf("duplicate subset %s", sub.name)
	}

	s.order = append(s.order, sub.name)
	s.subsets[sub.name] = sub

	return nil
}

// Len returns the number of subsets.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}

	return len(s.order)
}

// Subset looks a subset up by name.
func (s *Schema) Subset(name string) (*Subset, bool) {
	if s == nil {
		return nil, false
	}
	sub, ok := s.subsets[name]

	return sub, ok
}

// Subsets returns the subsets in insertion order.
func (s *Schema) Subsets() []*Subset {
	if s == nil {
		return nil
	}

	out := make([]*Subset, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.subsets[name])
	}

	return out
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	clone := New()
	if s == nil {
		return clone
	}

	for _, name := range s.order {
		clone.order = append(clone.order, name)
		clone.subsets[name] = s.subsets[name].clone()
	}

	return clone
}

// Union combines an inherited schema a with a produces contract b.
// With additional=false the result is exactly b: the produced subsets
// replace everything inherited. With additional=true the result is a with
// every subset of b merged in: fields are inserted or overwritten by
// name, new subsets are appended, and the order of unaffected entries is
// preserved. Neither input is mutated.
func Union(a, b *Schema, additional bool) *Schema {
	if !additional {
		return b.Clone()
	}

	out := a.Clone()
	for _, sub := range b.Subsets() {
		existing, ok := out.subsets[sub.name]
		if !ok {
			out.order = append(out.order, sub.name)
			out.subsets[sub.name] = sub.clone()

			continue
		}

		out.subsets[sub.name] = existing.merge(sub)
	}

	return out
}
