package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/pipefitter/pkg/pipeline"
	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

const firstComponentContract = `
name: first-component
description: Seeds the pipeline with images and captions.
image: ghcr.io/example/first-component:1.0.0
produces:
  images:
    data: binary
  captions:
    data: string
args:
  source_url:
    description: Where the seed dataset lives.
    type: string
    default: hf://datasets/example
`

const imageCroppingContract = `
name: image-cropping
description: Crops images to their visible area.
image: ghcr.io/example/image-cropping:1.2.0
consumes:
  images:
    data: binary
produces:
  images:
    data: binary
    width: int32
    height: int32
  additionalFields: false
args:
  cropping_threshold:
    description: Threshold parameter used for detecting borders.
    type: int32
    default: -30
`

const captionScoringContract = `
name: caption-scoring
description: Scores captions against a reference model.
image: ghcr.io/example/caption-scoring:0.3.0
consumes:
  captions:
    data: string
produces:
  captions:
    score: float64
args:
  model:
    description: Scoring model identifier.
    type: string
`

func mustSpec(t *testing.T, contract string) *spec.ComponentSpec {
	t.Helper()

	sp, err := spec.Parse([]byte(contract))
	require.NoError(t, err)

	return sp
}

func newPipeline(t *testing.T, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()

	opts = append([]pipeline.Option{
		pipeline.WithBasePath("s3://bucket/artifacts"),
		pipeline.WithRunID("run-1"),
	}, opts...)

	pipe, err := pipeline.New("demo", opts...)
	require.NoError(t, err)

	return pipe
}

// twoNodePipeline assembles the canonical first-component -> image-cropping
// pipeline used across the compile tests.
func twoNodePipeline(t *testing.T, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()

	pipe := newPipeline(t, opts...)
	require.NoError(t, pipe.Add("first-component", mustSpec(t, firstComponentContract), nil, nil))
	require.NoError(t, pipe.Add("image-cropping", mustSpec(t, imageCroppingContract),
		map[string]any{"cropping_threshold": -30}, []string{"first-component"}))

	return pipe
}
