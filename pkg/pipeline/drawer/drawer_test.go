package drawer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/pipefitter/pkg/pipeline"
	"github.com/askiada/pipefitter/pkg/pipeline/drawer"
	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

func TestDraw(t *testing.T) {
	t.Parallel()

	first, err := spec.Parse([]byte(`
name: first-component
image: ghcr.io/example/first-component:1.0.0
produces:
  images:
    data: binary
`))
	require.NoError(t, err)

	cropping, err := spec.Parse([]byte(`
name: image-cropping
image: ghcr.io/example/image-cropping:1.2.0
consumes:
  images:
    data: binary
produces:
  images:
    width: int32
`))
	require.NoError(t, err)

	pipe, err := pipeline.New("demo",
		pipeline.WithBasePath("s3://bucket/artifacts"),
		pipeline.WithRunID("run-1"),
	)
	require.NoError(t, err)

	require.NoError(t, pipe.Add("first-component", first, nil, nil, pipeline.NoCache()))
	require.NoError(t, pipe.Add("image-cropping", cropping, nil, []string{"first-component"}))

	compiled, err := pipe.Compile()
	require.NoError(t, err)

	d := drawer.New()
	require.NoError(t, d.AddGraph(compiled))

	var buf bytes.Buffer
	require.NoError(t, d.Draw(&buf))

	dot := buf.String()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"first-component"`)
	assert.Contains(t, dot, `"first-component" -> "image-cropping"`)
	assert.Contains(t, dot, "fillcolor")
}
