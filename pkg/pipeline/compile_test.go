package pipeline_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/askiada/pipefitter/pkg/pipeline"
	"github.com/askiada/pipefitter/pkg/pipeline/manifest"
	"github.com/askiada/pipefitter/pkg/pipeline/model"
)

func taskByID(t *testing.T, compiled *pipeline.CompiledGraph, id string) model.CompiledTask {
	t.Helper()

	for _, task := range compiled.Tasks {
		if task.NodeID == id {
			return task
		}
	}

	t.Fatalf("task %s not found", id)

	return model.CompiledTask{}
}

func TestCompileTwoNodePipeline(t *testing.T) {
	t.Parallel()

	compiled, err := twoNodePipeline(t).Compile()
	require.NoError(t, err)

	require.Len(t, compiled.Tasks, 2)
	assert.Equal(t, "first-component", compiled.Tasks[0].NodeID)
	assert.Equal(t, "image-cropping", compiled.Tasks[1].NodeID)

	first := taskByID(t, compiled, "first-component")
	cropping := taskByID(t, compiled, "image-cropping")

	assert.Empty(t, first.InputManifestPath)
	assert.Empty(t, first.DependentTaskIDs)
	assert.Equal(t, "s3://bucket/artifacts/demo/run-1/first-component/manifest.json", first.OutputManifestPath)

	assert.Equal(t, first.OutputManifestPath, cropping.InputManifestPath)
	assert.Equal(t, []string{"first-component"}, cropping.DependentTaskIDs)
	assert.Equal(t, "ghcr.io/example/image-cropping:1.2.0", cropping.Image)

	// replacing produces: the cropping manifest has only the images subset
	croppingManifest, ok := compiled.Manifest("image-cropping")
	require.True(t, ok)
	require.Len(t, croppingManifest.Subsets(), 1)
	_, ok = croppingManifest.Subset("images")
	assert.True(t, ok)
}

func TestCompileExecutorArguments(t *testing.T) {
	t.Parallel()

	compiled, err := twoNodePipeline(t).Compile()
	require.NoError(t, err)

	cropping := taskByID(t, compiled, "image-cropping")
	args := cropping.Arguments

	wantFlags := []string{
		"--component_spec", "--metadata",
		"--input_manifest_path", "--output_manifest_path",
		"--cache", "--cluster_type",
		"--cropping_threshold",
	}
	for _, flag := range wantFlags {
		assert.Contains(t, args, flag)
	}

	// flag values follow their flags
	for i, arg := range args {
		switch arg {
		case "--cache":
			assert.Equal(t, "true", args[i+1])
		case "--cluster_type":
			assert.Equal(t, "default", args[i+1])
		case "--cropping_threshold":
			assert.Equal(t, "-30", args[i+1])
		case "--input_manifest_path":
			assert.Equal(t, cropping.InputManifestPath, args[i+1])
		case "--output_manifest_path":
			assert.Equal(t, cropping.OutputManifestPath, args[i+1])
		}
	}
}

func TestCompileUnknownDependency(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil,
		[]string{"frist-component"}))

	_, err := pipe.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrUnknownDependency)

	var unknown *pipeline.UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "image-cropping", unknown.ComponentID)
	assert.Equal(t, "frist-component", unknown.DependencyID)
}

func TestCompileCyclicGraph(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	crop := mustSpec(t, imageCroppingContract)

	require.NoError(t, pipe.Add("a", crop, nil, []string{"c"}))
	require.NoError(t, pipe.Add("b", crop, nil, []string{"a"}))
	require.NoError(t, pipe.Add("c", crop, nil, []string{"b"}))

	_, err := pipe.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCyclicGraph)

	var cyclic *pipeline.CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	require.GreaterOrEqual(t, len(cyclic.Cycle), 3)
	assert.Equal(t, cyclic.Cycle[0], cyclic.Cycle[len(cyclic.Cycle)-1])
}

func TestCompileDuplicateDependency(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil,
		[]string{"first-component", "first-component"}))

	_, err := pipe.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares dependency first-component twice")
}

func TestCompileRetryAfterCycleReportsCycleAgain(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	crop := mustSpec(t, imageCroppingContract)

	require.NoError(t, pipe.Add("a", crop, nil, []string{"c"}))
	require.NoError(t, pipe.Add("b", crop, nil, []string{"a"}))
	require.NoError(t, pipe.Add("c", crop, nil, []string{"b"}))

	_, err := pipe.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCyclicGraph)

	// edges added before the failure must not change the retry's outcome
	_, err = pipe.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCyclicGraph)
}

func TestCompileRetryAfterUnknownDependency(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil,
		[]string{"first-component", "missing"}))

	for i := 0; i < 2; i++ {
		_, err := pipe.Compile()
		require.Error(t, err)
		assert.ErrorIs(t, err, pipeline.ErrUnknownDependency)
	}
}

func TestCompileSchemaMismatch(t *testing.T) {
	t.Parallel()

	// downstream consumer declares images.data as string while the
	// producer emits binary
	consumer := mustSpec(t, `
name: caption-from-image
image: ghcr.io/example/caption-from-image:latest
consumes:
  images:
    data: string
produces:
  captions:
    data: string
`)

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
	require.NoError(t, pipe.Add("caption-from-image", consumer, nil, []string{"first-component"}))

	_, err := pipe.Compile()
	require.Error(t, err)

	var mismatch *manifest.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "caption-from-image", mismatch.ComponentID)
	assert.Equal(t, "data", mismatch.Field)
	assert.Contains(t, mismatch.Error(), "string")
	assert.Contains(t, mismatch.Error(), "binary")
}

func TestCompileSourceWithConsumes(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil, nil))

	_, err := pipe.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrSchemaMismatch)
}

func TestCompileTopologicalSoundness(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	first := mustSpec(t, firstComponentContract)
	crop := mustSpec(t, imageCroppingContract)
	score := mustSpec(t, captionScoringContract)

	// declared out of dependency order on purpose
	require.NoError(t, pipe.Add("caption-scoring", score, map[string]any{"model": "clip"}, []string{"first-component"}))
	require.NoError(t, pipe.Add("image-cropping", crop, nil, []string{"first-component"}))
	require.NoError(t, pipe.Add("first-component", first, nil, nil))

	compiled, err := pipe.Compile()
	require.NoError(t, err)

	position := map[string]int{}
	for i, task := range compiled.Tasks {
		position[task.NodeID] = i
	}

	for _, task := range compiled.Tasks {
		for _, dependencyID := range task.DependentTaskIDs {
			assert.Less(t, position[dependencyID], position[task.NodeID])
		}
	}

	// ties break by declaration order
	assert.Less(t, position["caption-scoring"], position["image-cropping"])
}

func TestCompileDeterministicCacheKeys(t *testing.T) {
	t.Parallel()

	first, err := twoNodePipeline(t).Compile()
	require.NoError(t, err)
	second, err := twoNodePipeline(t).Compile()
	require.NoError(t, err)

	for _, task := range first.Tasks {
		firstKey, ok := first.CacheKey(task.NodeID)
		require.True(t, ok)
		secondKey, ok := second.CacheKey(task.NodeID)
		require.True(t, ok)
		assert.Equal(t, firstKey, secondKey)
		assert.Len(t, firstKey, 32)
	}
}

func TestCompileCacheKeyPropagation(t *testing.T) {
	t.Parallel()

	build := func(croppingThreshold int) *pipeline.CompiledGraph {
		pipe := newPipeline(t)
		require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
		require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract),
			map[string]any{"cropping_threshold": croppingThreshold}, []string{"first-component"}))
		require.NoError(t, pipe.Add("caption-scoring", mustSpec(t, captionScoringContract),
			map[string]any{"model": "clip"}, []string{"first-component"}))

		compiled, err := pipe.Compile()
		require.NoError(t, err)

		return compiled
	}

	base := build(-30)
	changed := build(-10)

	key := func(g *pipeline.CompiledGraph, id string) string {
		k, ok := g.CacheKey(id)
		require.True(t, ok)

		return k
	}

	// the changed node's key changes
	assert.NotEqual(t, key(base, "image-cropping"), key(changed, "image-cropping"))
	// its ancestor and the sibling branch keep their keys
	assert.Equal(t, key(base, "first-component"), key(changed, "first-component"))
	assert.Equal(t, key(base, "caption-scoring"), key(changed, "caption-scoring"))
}

func TestCompileUpstreamChangePropagatesDownstream(t *testing.T) {
	t.Parallel()

	build := func(sourceURL string) *pipeline.CompiledGraph {
		pipe := newPipeline(t)
		require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract),
			map[string]any{"source_url": sourceURL}, nil))
		require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil,
			[]string{"first-component"}))

		compiled, err := pipe.Compile()
		require.NoError(t, err)

		return compiled
	}

	base := build("hf://datasets/example")
	changed := build("hf://datasets/other")

	baseFirst, _ := base.CacheKey("first-component")
	changedFirst, _ := changed.CacheKey("first-component")
	assert.NotEqual(t, baseFirst, changedFirst)

	baseCropping, _ := base.CacheKey("image-cropping")
	changedCropping, _ := changed.CacheKey("image-cropping")
	assert.NotEqual(t, baseCropping, changedCropping)
}

func TestCompileMultiplePredecessors(t *testing.T) {
	t.Parallel()

	images := mustSpec(t, `
name: image-source
image: ghcr.io/example/image-source:latest
produces:
  images:
    data: binary
`)
	captions := mustSpec(t, `
name: caption-source
image: ghcr.io/example/caption-source:latest
produces:
  captions:
    data: string
`)
	matcher := mustSpec(t, `
name: matcher
image: ghcr.io/example/matcher:latest
consumes:
  images:
    data: binary
  captions:
    data: string
produces:
  matches:
    score: float64
`)

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("image-source", images, nil, nil))
	require.NoError(t, pipe.Add("caption-source", captions, nil, nil))
	require.NoError(t, pipe.Add("matcher", matcher, nil, []string{"image-source", "caption-source"}))

	compiled, err := pipe.Compile()
	require.NoError(t, err)

	task := taskByID(t, compiled, "matcher")
	assert.Equal(t, []string{"image-source", "caption-source"}, task.DependentTaskIDs)
	assert.Equal(t, "s3://bucket/artifacts/demo/run-1/matcher/input_manifest.json", task.InputManifestPath)
}

func TestCompileNoCache(t *testing.T) {
	t.Parallel()

	pipe := newPipeline(t)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil,
		pipeline.NoCache()))
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract), nil,
		[]string{"first-component"}))

	compiled, err := pipe.Compile()
	require.NoError(t, err)

	first := taskByID(t, compiled, "first-component")
	assert.False(t, first.CacheEnabled)
	assert.Contains(t, first.Arguments, "--cache")

	cropping := taskByID(t, compiled, "image-cropping")
	assert.True(t, cropping.CacheEnabled)

	// the cache flag does not feed the key: both nodes still have one
	key, ok := compiled.CacheKey("first-component")
	require.True(t, ok)
	assert.Len(t, key, 32)
}

func TestCompilePipelineWideNoCache(t *testing.T) {
	t.Parallel()

	compiled, err := twoNodePipeline(t, pipeline.WithoutCache()).Compile()
	require.NoError(t, err)

	for _, task := range compiled.Tasks {
		assert.False(t, task.CacheEnabled)
	}
}

func TestCompileDocument(t *testing.T) {
	t.Parallel()

	compiled, err := twoNodePipeline(t, pipeline.WithDescription("a demo pipeline")).Compile()
	require.NoError(t, err)

	doc := compiled.Document()
	assert.Equal(t, "demo", doc.PipelineInfo.Name)
	assert.Equal(t, "a demo pipeline", doc.PipelineInfo.Description)
	assert.Equal(t, model.SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, model.SDKVersion, doc.SDKVersion)

	require.Len(t, doc.Nodes, 2)
	cropping := doc.Nodes[1]
	assert.Equal(t, "image-cropping", cropping.Name)
	assert.Equal(t, "image-cropping", cropping.Task.ComponentRef)
	assert.Equal(t, []string{"first-component"}, cropping.Task.DependentTasks)
	assert.True(t, cropping.Task.CachingOptions.EnableCache)

	var buf bytes.Buffer
	require.NoError(t, compiled.WriteYAML(&buf))

	var decoded model.Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, doc.PipelineInfo, decoded.PipelineInfo)
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, doc.Nodes[1].Executor.Args, decoded.Nodes[1].Executor.Args)
}
