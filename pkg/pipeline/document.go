package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

// Document is a user-authored pipeline declaration: named component
// references assembled with explicit dependency order.
type Document struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Nodes       []NodeDecl `yaml:"nodes"`
}

// NodeDecl declares one node of the pipeline document.
type NodeDecl struct {
	ID                 string         `yaml:"id"`
	Component          string         `yaml:"component"`
	Args               map[string]any `yaml:"args"`
	DependsOn          []string       `yaml:"dependsOn"`
	Cache              *bool          `yaml:"cache"`
	InputPartitionRows int            `yaml:"inputPartitionRows"`
}

// LoadDocument reads a pipeline document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read pipeline document %s", path)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "unable to parse pipeline document %s", path)
	}

	return &doc, nil
}

// SpecResolver resolves a component name to its loaded spec, typically
// backed by the component catalog.
type SpecResolver func(name string) (*spec.ComponentSpec, error)

// FromDocument assembles a pipeline from a document, resolving each node's
// component reference through resolve. Node-level declarations (args,
// dependencies, cache override, partition rows) are applied as if the
// caller had invoked Add directly.
func FromDocument(doc *Document, resolve SpecResolver, opts ...Option) (*Pipeline, error) {
	pipe, err := New(doc.Name, append([]Option{WithDescription(doc.Description)}, opts...)...)
	if err != nil {
		return nil, err
	}

	for _, decl := range doc.Nodes {
		sp, err := resolve(decl.Component)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to resolve component %s for node %s", decl.Component, decl.ID)
		}

		nodeOpts := []NodeOption{}
		if decl.Cache != nil && !*decl.Cache {
			nodeOpts = append(nodeOpts, NoCache())
		}

		if decl.InputPartitionRows > 0 {
			nodeOpts = append(nodeOpts, WithInputPartitionRows(decl.InputPartitionRows))
		}

		if err := pipe.Add(decl.ID, sp, decl.Args, decl.DependsOn, nodeOpts...); err != nil {
			return nil, err
		}
	}

	return pipe, nil
}
