// Package manifest models the evolving dataset description that flows
// along pipeline edges: which subsets exist, their typed fields, and where
// each subset lives under the run's base path. Manifests are derived copy
// on write; a node never mutates its predecessor's manifest. Derivation is
// pure bookkeeping over schemas and paths and never touches storage.
package manifest

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
)

// DocumentName is the file name of the persisted manifest document inside
// a node's output directory.
const DocumentName = "manifest.json"

// Coordinates locates one node's output inside a pipeline run.
type Coordinates struct {
	BasePath     string
	PipelineName string
	RunID        string
	ComponentID  string
}

// Dir returns the node's output directory. Base paths are frequently
// bucket URLs, so segments are joined textually rather than with
// path.Join, which would collapse the scheme's double slash.
func (c Coordinates) Dir() string {
	return joinPath(c.BasePath, c.PipelineName, c.RunID, c.ComponentID)
}

func joinPath(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		parts = append(parts, strings.TrimRight(segment, "/"))
	}

	return strings.Join(parts, "/")
}

// Subset pairs a schema subset with its storage location.
type Subset struct {
	location string
	schema   *schema.Subset
}

// Name returns the subset name.
func (s *Subset) Name() string { return s.schema.Name() }

// Location returns where the subset's data lives.
func (s *Subset) Location() string { return s.location }

// Schema returns the subset's typed fields.
func (s *Subset) Schema() *schema.Subset { return s.schema }

// Manifest describes a dataset as produced by one node: run coordinates,
// the node's cache key and the located subsets. Read-only to consumers;
// the engine builds a fresh value per node.
type Manifest struct {
	Coordinates

	CacheKey string

	order   []string
	subsets map[string]*Subset
}

// Empty returns a manifest with no subsets, seeded with the node's run
// coordinates. Source nodes start from this.
func Empty(coords Coordinates) *Manifest {
	return &Manifest{
		Coordinates: coords,
		subsets:     make(map[string]*Subset),
	}
}

// Path returns the location of the persisted manifest document.
func (m *Manifest) Path() string {
	return joinPath(m.Dir(), DocumentName)
}

// Subset looks a subset up by name.
func (m *Manifest) Subset(name string) (*Subset, bool) {
	sub, ok := m.subsets[name]

	return sub, ok
}

// Subsets returns the subsets in insertion order.
func (m *Manifest) Subsets() []*Subset {
	out := make([]*Subset, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.subsets[name])
	}

	return out
}

// WithCacheKey returns a copy of the manifest carrying the node's cache
// key. The receiver is left untouched.
func (m *Manifest) WithCacheKey(key string) *Manifest {
	copied := *m
	copied.CacheKey = key

	return &copied
}

func (m *Manifest) add(sub *Subset) {
	m.order = append(m.order, sub.Name())
	m.subsets[sub.Name()] = sub
}

// Derive produces a node's output manifest from its predecessors' output
// manifests:
//
//  1. the inputs are unioned into a single inherited view, rejecting
//     field-name collisions between predecessors,
//  2. every subset and field named by consumes must be present in that
//     view with an exactly matching type,
//  3. produces is applied on top (merge or replace, depending on
//     additional),
//  4. each resulting subset is assigned its deterministic location under
//     the node's output directory.
//
// None of the inputs is mutated.
func Derive(inputs []*Manifest, coords Coordinates, consumes, produces *schema.Schema, additional bool) (*Manifest, error) {
	inherited, err := mergeInputs(coords.ComponentID, inputs)
	if err != nil {
		return nil, err
	}

	if err := checkConsumes(coords.ComponentID, consumes, inherited); err != nil {
		return nil, err
	}

	out := Empty(coords)
	for _, sub := range schema.Union(inherited, produces, additional).Subsets() {
		out.add(&Subset{
			location: joinPath(coords.Dir(), sub.Name()),
			schema:   sub,
		})
	}

	return out, nil
}

// mergeInputs unions the predecessors' subsets into one schema. The same
// field name arriving from two predecessors is an error even when the
// types agree: the runner would not know which copy to read.
func mergeInputs(componentID string, inputs []*Manifest) (*schema.Schema, error) {
	order := []string{}
	fieldsBySubset := map[string][]schema.FieldSpec{}
	seen := map[string]map[string]struct{}{}

	for _, input := range inputs {
		for _, sub := range input.Subsets() {
			name := sub.Name()
			if _, ok := seen[name]; !ok {
				order = append(order, name)
				seen[name] = map[string]struct{}{}
			}

			for _, field := range sub.Schema().Fields() {
				if _, dup := seen[name][field.Name]; dup {
					return nil, &SchemaMismatchError{
						ComponentID: componentID,
						Subset:      name,
						Field:       field.Name,
						Reason:      "field collision between predecessor manifests",
					}
				}

				seen[name][field.Name] = struct{}{}
				fieldsBySubset[name] = append(fieldsBySubset[name], field)
			}
		}
	}

	merged := schema.New()
	for _, name := range order {
		sub, err := schema.NewSubset(name, fieldsBySubset[name]...)
		if err != nil {
			return nil, errors.Wrap(err, "unable to merge input manifests")
		}

		if err := merged.Add(sub); err != nil {
			return nil, errors.Wrap(err, "unable to merge input manifests")
		}
	}

	return merged, nil
}

func checkConsumes(componentID string, consumes, inherited *schema.Schema) error {
	for _, want := range consumes.Subsets() {
		got, ok := inherited.Subset(want.Name())
		if !ok {
			return &SchemaMismatchError{
				ComponentID: componentID,
				Subset:      want.Name(),
				Reason:      "subset missing from input manifest",
			}
		}

		for _, field := range want.Fields() {
			actual, ok := got.Field(field.Name)
			if !ok {
				return &SchemaMismatchError{
					ComponentID: componentID,
					Subset:      want.Name(),
					Field:       field.Name,
					Reason:      "field missing from input manifest",
				}
			}

			if actual.Type != field.Type {
				return &SchemaMismatchError{
					ComponentID: componentID,
					Subset:      want.Name(),
					Field:       field.Name,
					Expected:    field.Type,
					Actual:      actual.Type,
				}
			}
		}
	}

	return nil
}

type fieldDoc struct {
	Type schema.FieldType `json:"type"`
}

type subsetDoc struct {
	Location string              `json:"location"`
	Fields   map[string]fieldDoc `json:"fields"`
}

type manifestDoc struct {
	BasePath     string               `json:"base_path"`
	PipelineName string               `json:"pipeline_name"`
	RunID        string               `json:"run_id"`
	ComponentID  string               `json:"component_id"`
	CacheKey     string               `json:"cache_key"`
	Subsets      map[string]subsetDoc `json:"subsets"`
}

// MarshalJSON serialises the manifest wire document. encoding/json emits
// map keys sorted, so the document is byte-stable for a given manifest.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	doc := manifestDoc{
		BasePath:     m.BasePath,
		PipelineName: m.PipelineName,
		RunID:        m.RunID,
		ComponentID:  m.ComponentID,
		CacheKey:     m.CacheKey,
		Subsets:      make(map[string]subsetDoc, len(m.subsets)),
	}

	for _, sub := range m.Subsets() {
		fields := make(map[string]fieldDoc, sub.Schema().Len())
		for _, field := range sub.Schema().Fields() {
			fields[field.Name] = fieldDoc{Type: field.Type}
		}

		doc.Subsets[sub.Name()] = subsetDoc{Location: sub.Location(), Fields: fields}
	}

	return json.Marshal(doc)
}

// UnmarshalJSON parses the manifest wire document. Subset and field order
// is not part of the document, so both are restored sorted by name.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "unable to parse manifest document")
	}

	m.Coordinates = Coordinates{
		BasePath:     doc.BasePath,
		PipelineName: doc.PipelineName,
		RunID:        doc.RunID,
		ComponentID:  doc.ComponentID,
	}
	m.CacheKey = doc.CacheKey
	m.order = nil
	m.subsets = make(map[string]*Subset, len(doc.Subsets))

	subsetNames := make([]string, 0, len(doc.Subsets))
	for name := range doc.Subsets {
		subsetNames = append(subsetNames, name)
	}
	sort.Strings(subsetNames)

	for _, name := range subsetNames {
		sub := doc.Subsets[name]

		fieldNames := make([]string, 0, len(sub.Fields))
		for fieldName := range sub.Fields {
			fieldNames = append(fieldNames, fieldName)
		}
		sort.Strings(fieldNames)

		fields := make([]schema.FieldSpec, 0, len(fieldNames))
		for _, fieldName := range fieldNames {
			field, err := schema.NewField(fieldName, sub.Fields[fieldName].Type)
			if err != nil {
				return errors.Wrapf(err, "unable to parse manifest subset %s", name)
			}

			fields = append(fields, field)
		}

		parsed, err := schema.NewSubset(name, fields...)
		if err != nil {
			return errors.Wrapf(err, "unable to parse manifest subset %s", name)
		}

		m.add(&Subset{location: sub.Location, schema: parsed})
	}

	return nil
}
