// Package drawer renders a compiled pipeline graph as a DOT document,
// one vertex per task, coloured by whether the task participates in
// caching.
package drawer

import (
	"io"
	"os"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1"

	"github.com/askiada/pipefitter/pkg/pipeline"
)

// Drawer accumulates a drawable copy of a compiled graph.
type Drawer struct {
	graph graph.Graph[string, string]
}

// New creates an empty drawer.
func New() *Drawer {
	return &Drawer{
		graph: graph.New(graph.StringHash, graph.Directed()),
	}
}

// cacheColours returns the fill colours for cached and uncached tasks.
func cacheColours() (cached, uncached string, err error) {
	cachedColour, err := colors.RGB(88, 166, 92)
	if err != nil {
		return "", "", errors.Wrap(err, "unable to get colour")
	}

	uncachedColour, err := colors.RGB(204, 120, 92)
	if err != nil {
		return "", "", errors.Wrap(err, "unable to get colour")
	}

	return cachedColour.ToHEX().String(), uncachedColour.ToHEX().String(), nil
}

// AddGraph copies the compiled graph's tasks and dependency edges into
// the drawer. Cached tasks are filled green, uncached ones orange, and
// each vertex is annotated with the task's cache key.
func (d *Drawer) AddGraph(compiled *pipeline.CompiledGraph) error {
	cachedColour, uncachedColour, err := cacheColours()
	if err != nil {
		return err
	}

	for _, task := range compiled.Tasks {
		colour := uncachedColour
		if task.CacheEnabled {
			colour = cachedColour
		}

		attributes := []func(*graph.VertexProperties){
			graph.VertexAttribute("style", "filled"),
			graph.VertexAttribute("fillcolor", colour),
		}

		if key, ok := compiled.CacheKey(task.NodeID); ok {
			attributes = append(attributes, graph.VertexAttribute("xlabel", key))
		}

		if err := d.graph.AddVertex(task.NodeID, attributes...); err != nil {
			return errors.Wrapf(err, "unable to add vertex %s", task.NodeID)
		}
	}

	for _, task := range compiled.Tasks {
		for _, dependencyID := range task.DependentTaskIDs {
			if err := d.graph.AddEdge(dependencyID, task.NodeID); err != nil {
				return errors.Wrapf(err, "unable to add edge from %s to %s", dependencyID, task.NodeID)
			}
		}
	}

	return nil
}

// Draw writes the DOT document.
func (d *Drawer) Draw(w io.Writer) error {
	if err := dot(d.graph, w); err != nil {
		return errors.Wrap(err, "unable to render graph")
	}

	return nil
}

// DrawFile writes the DOT document to a file.
func (d *Drawer) DrawFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", path)
	}
	defer file.Close()

	return d.Draw(file)
}
