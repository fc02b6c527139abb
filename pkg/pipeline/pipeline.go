package pipeline

import (
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"

	"github.com/askiada/pipefitter/internal/store"
	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

// DefaultClusterType is the cluster hint threaded through to every
// compiled task when the caller does not override it.
const DefaultClusterType = "default"

// Node is one pipeline stage: a component reference with resolved
// arguments and declared predecessors. Nodes are created by Add and never
// mutated after Compile returns.
type Node struct {
	ID                 string
	Spec               *spec.ComponentSpec
	Args               map[string]any
	Predecessors       []string
	InputPartitionRows int

	cacheEnabled bool
}

func nodeHash(n *Node) string { return n.ID }

// Pipeline accumulates node declarations and compiles them into an
// executable task graph. A Pipeline value is owned by a single compile
// invocation; it is not safe for concurrent use.
type Pipeline struct {
	name        string
	description string
	basePath    string
	runID       string
	clusterType string
	cache       bool

	order      []string
	declIndex  map[string]int
	nodes      map[string]*Node
	graph      graph.Graph[string, *Node]
	addedEdges map[string]map[string]struct{}
	edgesBuilt bool
}

// Option configures a pipeline.
type Option func(p *Pipeline)

// WithDescription sets the pipeline description carried into the compiled
// document's pipelineInfo block.
func WithDescription(description string) Option {
	return func(p *Pipeline) {
		p.description = description
	}
}

// WithBasePath sets the artifact base path manifests are derived under.
func WithBasePath(basePath string) Option {
	return func(p *Pipeline) {
		p.basePath = basePath
	}
}

// WithRunID pins the run id. Without it a fresh one is generated, which
// keeps manifest locations distinct between runs while leaving cache keys
// untouched.
func WithRunID(runID string) Option {
	return func(p *Pipeline) {
		p.runID = runID
	}
}

// WithClusterType overrides the cluster hint handed to the runner.
func WithClusterType(clusterType string) Option {
	return func(p *Pipeline) {
		p.clusterType = clusterType
	}
}

// WithoutCache disables caching for every node in the pipeline.
func WithoutCache() Option {
	return func(p *Pipeline) {
		p.cache = false
	}
}

// New creates an empty pipeline.
func New(name string, opts ...Option) (*Pipeline, error) {
	if name == "" {
		return nil, ErrNameMustBeSet
	}

	pipe := &Pipeline{
		name:        name,
		clusterType: DefaultClusterType,
		cache:       true,
		declIndex:   make(map[string]int),
		nodes:       make(map[string]*Node),
	}

	for _, opt := range opts {
		opt(pipe)
	}

	if pipe.basePath == "" {
		return nil, ErrBasePathMustBeSet
	}

	if pipe.runID == "" {
		pipe.runID = "run-" + uuid.NewString()
	}

	pipe.graph = graph.NewWithStore[string, *Node](nodeHash, store.New[string, *Node](), graph.Directed(), graph.PreventCycles())

	return pipe, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// RunID returns the run id manifests are derived under.
func (p *Pipeline) RunID() string { return p.runID }

// NodeOption configures a single node.
type NodeOption func(n *Node)

// NoCache disables caching for this node only.
func NoCache() NodeOption {
	return func(n *Node) {
		n.cacheEnabled = false
	}
}

// WithInputPartitionRows hints how many rows of input each partition of
// the node should receive.
func WithInputPartitionRows(rows int) NodeOption {
	return func(n *Node) {
		n.InputPartitionRows = rows
	}
}

// Add declares a node. The component id must be unique within the
// pipeline and args must satisfy the spec's arg declarations: unknown
// names, missing required args and type mismatches are rejected here,
// and defaults are filled in for missing optional args. Dependencies are
// resolved later, by Compile, so nodes may be declared in any order.
func (p *Pipeline) Add(componentID string, sp *spec.ComponentSpec, args map[string]any, dependsOn []string, opts ...NodeOption) error {
	if componentID == "" {
		return ErrNameMustBeSet
	}

	if sp == nil {
		return ErrSpecMustBeSet
	}

	if _, ok := p.nodes[componentID]; ok {
		return &DuplicateNodeError{ComponentID: componentID}
	}

	resolved, err := resolveArgs(componentID, sp, args)
	if err != nil {
		return err
	}

	node := &Node{
		ID:           componentID,
		Spec:         sp,
		Args:         resolved,
		Predecessors: append([]string(nil), dependsOn...),
		cacheEnabled: p.cache,
	}

	for _, opt := range opts {
		opt(node)
	}

	if !p.cache {
		node.cacheEnabled = false
	}

	if err := p.graph.AddVertex(node); err != nil {
		return &DuplicateNodeError{ComponentID: componentID}
	}

	p.declIndex[componentID] = len(p.order)
	p.order = append(p.order, componentID)
	p.nodes[componentID] = node

	return nil
}

// resolveArgs validates user-supplied args against the spec's arg
// declarations and applies defaults. Unknown names are reported first, in
// sorted order, so the failure is stable.
func resolveArgs(componentID string, sp *spec.ComponentSpec, given map[string]any) (map[string]any, error) {
	unknown := make([]string, 0)
	for name := range given {
		if _, ok := sp.Arg(name); !ok {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, &ArgValidationError{ComponentID: componentID, Arg: unknown[0], Reason: "unknown argument"}
	}

	resolved := make(map[string]any, len(sp.Args))

	for _, arg := range sp.Args {
		value, ok := given[arg.Name]
		if !ok {
			if arg.Default != nil {
				resolved[arg.Name] = arg.Default

				continue
			}

			if arg.Optional {
				continue
			}

			return nil, &ArgValidationError{ComponentID: componentID, Arg: arg.Name, Reason: "required argument missing"}
		}

		if err := arg.CheckValue(value); err != nil {
			return nil, &ArgValidationError{ComponentID: componentID, Arg: arg.Name, Reason: err.Error()}
		}

		resolved[arg.Name] = value
	}

	return resolved, nil
}
