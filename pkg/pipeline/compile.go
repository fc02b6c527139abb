package pipeline

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/pipefitter/pkg/pipeline/manifest"
	"github.com/askiada/pipefitter/pkg/pipeline/model"
)

// inputManifestName is where the runner materialises the merged input
// manifest of a node with more than one predecessor.
const inputManifestName = "input_manifest.json"

// CompiledGraph is the executable task graph produced by Compile:
// topologically ordered tasks with fully resolved arguments, manifest
// locations and dependency edges. Immutable once returned.
type CompiledGraph struct {
	Name        string
	Description string
	RunID       string
	Tasks       []model.CompiledTask

	refs       map[string]string
	parameters map[string]map[string]any
	manifests  map[string]*manifest.Manifest
}

// Manifest returns the output manifest computed for a node.
func (g *CompiledGraph) Manifest(componentID string) (*manifest.Manifest, bool) {
	m, ok := g.manifests[componentID]

	return m, ok
}

// CacheKey returns the cache key computed for a node.
func (g *CompiledGraph) CacheKey(componentID string) (string, bool) {
	m, ok := g.manifests[componentID]
	if !ok {
		return "", false
	}

	return m.CacheKey, true
}

// Compile validates the declared graph and lowers it into the executable
// task graph:
//
//  1. edges are resolved from the declared predecessor ids,
//  2. cycles are rejected,
//  3. nodes are topologically sorted, ties broken by declaration order,
//  4. in that order, each node's output manifest and cache key are
//     derived and threaded forward,
//  5. each node is lowered to a CompiledTask.
//
// Compilation fails fast on the first violation; no partial graph is ever
// returned.
func (p *Pipeline) Compile() (*CompiledGraph, error) {
	if err := p.buildEdges(); err != nil {
		return nil, err
	}

	order, err := graph.StableTopologicalSort(p.graph, func(a, b string) bool {
		return p.declIndex[a] < p.declIndex[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort pipeline graph")
	}

	compiled := &CompiledGraph{
		Name:        p.name,
		Description: p.description,
		RunID:       p.runID,
		Tasks:       make([]model.CompiledTask, 0, len(order)),
		refs:        make(map[string]string, len(order)),
		parameters:  make(map[string]map[string]any, len(order)),
		manifests:   make(map[string]*manifest.Manifest, len(order)),
	}

	for _, componentID := range order {
		node := p.nodes[componentID]

		outputManifest, err := p.deriveManifest(node, compiled.manifests)
		if err != nil {
			return nil, err
		}

		compiled.manifests[componentID] = outputManifest

		task, err := p.lower(node, outputManifest, compiled.manifests)
		if err != nil {
			return nil, err
		}

		compiled.Tasks = append(compiled.Tasks, task)
		compiled.refs[componentID] = node.Spec.Name
		compiled.parameters[componentID] = node.Args
	}

	return compiled, nil
}

func (p *Pipeline) buildEdges() error {
	if p.edgesBuilt {
		return nil
	}

	if p.addedEdges == nil {
		p.addedEdges = make(map[string]map[string]struct{})
	}

	for _, componentID := range p.order {
		node := p.nodes[componentID]
		declared := make(map[string]struct{}, len(node.Predecessors))

		for _, dependencyID := range node.Predecessors {
			if _, dup := declared[dependencyID]; dup {
				return errors.Wrapf(graph.ErrEdgeAlreadyExists,
					"component %s declares dependency %s twice", componentID, dependencyID)
			}
			declared[dependencyID] = struct{}{}

			if _, ok := p.nodes[dependencyID]; !ok {
				return &UnknownDependencyError{ComponentID: componentID, DependencyID: dependencyID}
			}

			// an edge left behind by an earlier, failed attempt stays valid
			if _, ok := p.addedEdges[dependencyID][componentID]; ok {
				continue
			}

			err := p.graph.AddEdge(dependencyID, componentID)

			switch {
			case err == nil:
				if _, ok := p.addedEdges[dependencyID]; !ok {
					p.addedEdges[dependencyID] = make(map[string]struct{})
				}
				p.addedEdges[dependencyID][componentID] = struct{}{}
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return &CyclicGraphError{Cycle: p.findCycle(dependencyID, componentID)}
			default:
				return errors.Wrapf(err, "unable to add edge from %s to %s", dependencyID, componentID)
			}
		}
	}

	p.edgesBuilt = true

	return nil
}

// findCycle reconstructs the cycle that the rejected edge source->target
// would close: target already reaches source through declared edges, so
// the cycle is that path plus the rejected edge.
func (p *Pipeline) findCycle(source, target string) []string {
	path := p.findPath(target, source, map[string]struct{}{})
	if path == nil {
		// PreventCycles rejected the edge, so a path must exist among the
		// declared (not yet added) edges; fall back to the trivial form.
		return []string{target, source, target}
	}

	return append(path, target)
}

// findPath walks declared predecessor edges from "from" to "to",
// scanning successors in declaration order so the reported cycle is
// stable.
func (p *Pipeline) findPath(from, to string, visited map[string]struct{}) []string {
	if from == to {
		return []string{from}
	}

	visited[from] = struct{}{}

	for _, componentID := range p.order {
		if _, seen := visited[componentID]; seen {
			continue
		}

		node := p.nodes[componentID]
		for _, dependencyID := range node.Predecessors {
			if dependencyID != from {
				continue
			}

			if path := p.findPath(componentID, to, visited); path != nil {
				return append([]string{from}, path...)
			}

			break
		}
	}

	return nil
}

// deriveManifest validates the node's consumes contract against its
// predecessors' manifests and derives the output manifest plus cache key.
func (p *Pipeline) deriveManifest(node *Node, manifests map[string]*manifest.Manifest) (*manifest.Manifest, error) {
	if len(node.Predecessors) == 0 && node.Spec.Consumes.Len() > 0 {
		return nil, &manifest.SchemaMismatchError{
			ComponentID: node.ID,
			Subset:      node.Spec.Consumes.Subsets()[0].Name(),
			Reason:      "node has no predecessors but declares a consumes contract",
		}
	}

	inputs := make([]*manifest.Manifest, 0, len(node.Predecessors))
	predecessorKeys := make([]string, 0, len(node.Predecessors))

	for _, dependencyID := range node.Predecessors {
		input := manifests[dependencyID]
		inputs = append(inputs, input)
		predecessorKeys = append(predecessorKeys, input.CacheKey)
	}

	coords := manifest.Coordinates{
		BasePath:     p.basePath,
		PipelineName: p.name,
		RunID:        p.runID,
		ComponentID:  node.ID,
	}

	derived, err := manifest.Derive(inputs, coords, node.Spec.Consumes, node.Spec.Produces, node.Spec.ProducesAdditionalFields)
	if err != nil {
		return nil, err
	}

	key, err := computeCacheKey(node.Spec, node.Args, predecessorKeys)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to compute cache key for %s", node.ID)
	}

	return derived.WithCacheKey(key), nil
}

// lower emits the node's CompiledTask. Any failure here is a programmer
// error in the earlier stages, not a user error.
func (p *Pipeline) lower(node *Node, outputManifest *manifest.Manifest, manifests map[string]*manifest.Manifest) (model.CompiledTask, error) {
	inputPath := ""

	switch len(node.Predecessors) {
	case 0:
	case 1:
		inputPath = manifests[node.Predecessors[0]].Path()
	default:
		// several predecessors: the runner materialises the merged view
		// under the node's own directory
		inputPath = outputManifest.Dir() + "/" + inputManifestName
	}

	meta := model.Metadata{
		BasePath:     p.basePath,
		PipelineName: p.name,
		RunID:        p.runID,
		ComponentID:  node.ID,
		CacheKey:     outputManifest.CacheKey,
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return model.CompiledTask{}, errors.Wrapf(err, "unable to serialise metadata for %s", node.ID)
	}

	specJSON, err := json.Marshal(node.Spec)
	if err != nil {
		return model.CompiledTask{}, errors.Wrapf(err, "unable to serialise spec for %s", node.ID)
	}

	args := []string{
		"--component_spec", string(specJSON),
		"--metadata", string(metaJSON),
		"--input_manifest_path", inputPath,
		"--output_manifest_path", outputManifest.Path(),
		"--cache", strconv.FormatBool(node.cacheEnabled),
		"--cluster_type", p.clusterType,
	}

	if node.InputPartitionRows > 0 {
		args = append(args, "--input_partition_rows", strconv.Itoa(node.InputPartitionRows))
	}

	// component args follow the spec's declaration order
	for _, arg := range node.Spec.Args {
		value, ok := node.Args[arg.Name]
		if !ok {
			continue
		}

		rendered, err := renderArgValue(value)
		if err != nil {
			return model.CompiledTask{}, errors.Wrapf(err, "unable to serialise arg %s of %s", arg.Name, node.ID)
		}

		args = append(args, "--"+arg.Name, rendered)
	}

	return model.CompiledTask{
		NodeID:             node.ID,
		Image:              node.Spec.Image,
		Arguments:          args,
		InputManifestPath:  inputPath,
		OutputManifestPath: outputManifest.Path(),
		CacheEnabled:       node.cacheEnabled,
		DependentTaskIDs:   append([]string{}, node.Predecessors...),
	}, nil
}

func renderArgValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		rendered, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrap(err, "unable to serialise value")
		}

		return string(rendered), nil
	}
}

// Document renders the compiled graph in its wire format.
func (g *CompiledGraph) Document() *model.Document {
	doc := &model.Document{
		PipelineInfo: model.PipelineInfo{
			Name:        g.Name,
			Description: g.Description,
		},
		SchemaVersion: model.SchemaVersion,
		SDKVersion:    model.SDKVersion,
		Nodes:         make([]model.NodeDocument, 0, len(g.Tasks)),
	}

	for _, task := range g.Tasks {
		doc.Nodes = append(doc.Nodes, model.NodeDocument{
			Name: task.NodeID,
			Executor: model.Executor{
				Image: task.Image,
				Args:  task.Arguments,
			},
			Task: model.Task{
				ComponentRef:   g.refs[task.NodeID],
				DependentTasks: task.DependentTaskIDs,
				Parameters:     g.parameters[task.NodeID],
				CachingOptions: model.CachingOptions{EnableCache: task.CacheEnabled},
			},
		})
	}

	return doc
}

// WriteYAML writes the wire document to w.
func (g *CompiledGraph) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()

	if err := encoder.Encode(g.Document()); err != nil {
		return errors.Wrap(err, "unable to encode compiled graph")
	}

	return nil
}
