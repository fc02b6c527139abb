package spec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
	"github.com/askiada/pipefitter/pkg/pipeline/spec"
)

const croppingContract = `
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
  padding:
    description: Padding around the cropped area.
    type: int32
`

func TestParse(t *testing.T) {
	t.Parallel()

	sp, err := spec.Parse([]byte(croppingContract))
	require.NoError(t, err)

	assert.Equal(t, "image-cropping", sp.Name)
	assert.Equal(t, "ghcr.io/example/image-cropping:1.2.0", sp.Image)
	assert.False(t, sp.ProducesAdditionalFields)

	images, ok := sp.Consumes.Subset("images")
	require.True(t, ok)
	assert.Equal(t, []schema.FieldSpec{{Name: "data", Type: schema.TypeBinary}}, images.Fields())

	produced, ok := sp.Produces.Subset("images")
	require.True(t, ok)
	assert.Equal(t, []schema.FieldSpec{
		{Name: "data", Type: schema.TypeBinary},
		{Name: "width", Type: schema.TypeInt32},
		{Name: "height", Type: schema.TypeInt32},
	}, produced.Fields())

	require.Len(t, sp.Args, 2)
	assert.Equal(t, "cropping_threshold", sp.Args[0].Name)
	assert.Equal(t, schema.TypeInt32, sp.Args[0].Type)
	assert.True(t, sp.Args[0].Optional)
	assert.Equal(t, -30, sp.Args[0].Default)
	assert.Equal(t, "padding", sp.Args[1].Name)
	assert.False(t, sp.Args[1].Optional)
	assert.Nil(t, sp.Args[1].Default)
}

func TestParseAdditionalFieldsDefaultsTrue(t *testing.T) {
	t.Parallel()

	sp, err := spec.Parse([]byte(`
name: caption-filter
image: ghcr.io/example/caption-filter:latest
consumes:
  captions:
    data: string
produces:
  captions:
    score: float64
`))
	require.NoError(t, err)
	assert.True(t, sp.ProducesAdditionalFields)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		document string
	}{
		"missing name": {document: `
image: ghcr.io/example/a:latest
produces:
  images:
    data: binary
`},
		"missing image": {document: `
name: a
produces:
  images:
    data: binary
`},
		"bad field type": {document: `
name: a
image: img
produces:
  images:
    data: uint8
`},
		"bad arg type": {document: `
name: a
image: img
produces:
  images:
    data: binary
args:
  threshold:
    type: number
`},
		"default does not type-check": {document: `
name: a
image: img
produces:
  images:
    data: binary
args:
  threshold:
    type: int32
    default: not-a-number
`},
		"additionalFields under consumes": {document: `
name: a
image: img
consumes:
  images:
    data: binary
  additionalFields: true
produces:
  images:
    data: binary
`},
		"duplicate field": {document: `
name: a
image: img
produces:
  images:
    data: binary
    data: string
`},
		"unknown top-level key": {document: `
name: a
image: img
entrypoint: /bin/run
produces:
  images:
    data: binary
`},
		"subset is not a mapping": {document: `
name: a
image: img
produces:
  images: binary
`},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := spec.Parse([]byte(tc.document))
			require.Error(t, err)
			assert.ErrorIs(t, err, spec.ErrValidation)

			var vErr *spec.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestContentHashDeterminism(t *testing.T) {
	t.Parallel()

	first, err := spec.Parse([]byte(croppingContract))
	require.NoError(t, err)
	second, err := spec.Parse([]byte(croppingContract))
	require.NoError(t, err)

	h1, err := first.ContentHash()
	require.NoError(t, err)
	h2, err := second.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestContentHashSensitivity(t *testing.T) {
	t.Parallel()

	base, err := spec.Parse([]byte(croppingContract))
	require.NoError(t, err)
	baseHash, err := base.ContentHash()
	require.NoError(t, err)

	changedImage := *base
	changedImage.Image = "ghcr.io/example/image-cropping:1.3.0"
	imageHash, err := changedImage.ContentHash()
	require.NoError(t, err)
	assert.NotEqual(t, baseHash, imageHash)

	changedDescription := *base
	changedDescription.Description = "something else entirely"
	descriptionHash, err := changedDescription.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, baseHash, descriptionHash)
}

func TestArgSpecCheckValue(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		argType schema.FieldType
		value   any
		wantErr bool
	}{
		"string ok":          {argType: schema.TypeString, value: "a"},
		"string from int":    {argType: schema.TypeString, value: 1, wantErr: true},
		"int32 from int":     {argType: schema.TypeInt32, value: 42},
		"int64 from int":     {argType: schema.TypeInt64, value: 42},
		"int from float":     {argType: schema.TypeInt32, value: 4.2, wantErr: true},
		"float64 ok":         {argType: schema.TypeFloat64, value: 4.2},
		"float from int":     {argType: schema.TypeFloat64, value: 4, wantErr: true},
		"bool ok":            {argType: schema.TypeBool, value: true},
		"dict ok":            {argType: schema.TypeDict, value: map[string]any{"a": 1}},
		"dict from list":     {argType: schema.TypeDict, value: []any{1}, wantErr: true},
		"list ok":            {argType: schema.TypeList, value: []any{"a"}},
		"binary from string": {argType: schema.TypeBinary, value: "aGk="},
		"binary from bytes":  {argType: schema.TypeBinary, value: []byte("hi")},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			arg := spec.ArgSpec{Name: "arg", Type: tc.argType}
			err := arg.CheckValue(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
