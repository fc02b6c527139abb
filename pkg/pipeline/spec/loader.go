package spec

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
)

// Load reads and parses a component contract file.
func Load(path string) (*ComponentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read component spec %s", path)
	}

	sp, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load component spec %s", path)
	}

	return sp, nil
}

// Parse validates a component contract document and returns the immutable
// spec. Document order of subsets, fields and args is preserved: it is
// part of the contract content and feeds the content hash, so the parser
// walks the yaml node tree instead of decoding into Go maps.
func Parse(data []byte) (*ComponentSpec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unable to parse document")
	}

	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ValidationError{Reason: "document root must be a mapping"}
	}

	root := doc.Content[0]
	sp := &ComponentSpec{
		Name:                     scalarValue(root, "name"),
		Consumes:                 schema.New(),
		Produces:                 schema.New(),
		ProducesAdditionalFields: true,
	}

	for i := 0; i < len(root.Content)-1; i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]

		var err error

		switch key {
		case "name":
			// already captured
		case "description":
			sp.Description = value.Value
		case "image":
			sp.Image = value.Value
		case "consumes":
			sp.Consumes, err = parseSchema(sp.Name, key, value, nil)
		case "produces":
			sp.Produces, err = parseSchema(sp.Name, key, value, &sp.ProducesAdditionalFields)
		case "args":
			sp.Args, err = parseArgs(sp.Name, value)
		default:
			err = &ValidationError{Spec: sp.Name, Field: key, Reason: "unknown key"}
		}

		if err != nil {
			return nil, err
		}
	}

	if sp.Name == "" {
		return nil, &ValidationError{Reason: "name must be set"}
	}

	if sp.Image == "" {
		return nil, &ValidationError{Spec: sp.Name, Field: "image", Reason: "image must be set"}
	}

	return sp, nil
}

// scalarValue pre-scans a mapping for a scalar entry so errors raised
// while parsing earlier sections can still carry the spec name.
func scalarValue(mapping *yaml.Node, key string) string {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key && mapping.Content[i+1].Kind == yaml.ScalarNode {
			return mapping.Content[i+1].Value
		}
	}

	return ""
}

// parseSchema decodes a consumes or produces block: subset name → field
// name → type literal. A produces block may additionally carry an
// `additionalFields` boolean alongside its subsets; additional receives
// it when non-nil and its presence is rejected otherwise.
func parseSchema(specName, section string, node *yaml.Node, additional *bool) (*schema.Schema, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ValidationError{Spec: specName, Field: section, Reason: "must be a mapping"}
	}

	sch := schema.New()

	for i := 0; i < len(node.Content)-1; i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]

		if key == "additionalFields" {
			if additional == nil {
				return nil, &ValidationError{
					Spec:   specName,
					Field:  section + ".additionalFields",
					Reason: "only allowed under produces",
				}
			}

			if err := value.Decode(additional); err != nil {
				return nil, &ValidationError{
					Spec:   specName,
					Field:  section + ".additionalFields",
					Reason: "must be a boolean",
				}
			}

			continue
		}

		sub, err := parseSubset(specName, section, key, value)
		if err != nil {
			return nil, err
		}

		if err := sch.Add(sub); err != nil {
			return nil, &ValidationError{Spec: specName, Field: section + "." + key, Reason: "duplicate subset"}
		}
	}

	return sch, nil
}

func parseSubset(specName, section, name string, node *yaml.Node) (*schema.Subset, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ValidationError{
			Spec:   specName,
			Field:  section + "." + name,
			Reason: "subset must map field names to types",
		}
	}

	fields := make([]schema.FieldSpec, 0, len(node.Content)/2)

	for i := 0; i < len(node.Content)-1; i += 2 {
		fieldName, literal := node.Content[i].Value, node.Content[i+1].Value

		fieldType, err := schema.ParseFieldType(literal)
		if err != nil {
			return nil, &ValidationError{
				Spec:   specName,
				Field:  section + "." + name + "." + fieldName,
				Reason: err.Error(),
			}
		}

		field, err := schema.NewField(fieldName, fieldType)
		if err != nil {
			return nil, &ValidationError{Spec: specName, Field: section + "." + name, Reason: err.Error()}
		}

		fields = append(fields, field)
	}

	sub, err := schema.NewSubset(name, fields...)
	if err != nil {
		return nil, &ValidationError{Spec: specName, Field: section + "." + name, Reason: err.Error()}
	}

	return sub, nil
}

type argDoc struct {
	Description string    `yaml:"description"`
	Type        string    `yaml:"type"`
	Default     yaml.Node `yaml:"default"`
	Optional    bool      `yaml:"optional"`
}

func parseArgs(specName string, node *yaml.Node) ([]ArgSpec, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ValidationError{Spec: specName, Field: "args", Reason: "must be a mapping"}
	}

	seen := make(map[string]struct{}, len(node.Content)/2)
	args := make([]ArgSpec, 0, len(node.Content)/2)

	for i := 0; i < len(node.Content)-1; i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]

		if _, ok := seen[name]; ok {
			return nil, &ValidationError{Spec: specName, Field: "args." + name, Reason: "duplicate arg"}
		}
		seen[name] = struct{}{}

		var doc argDoc
		if err := value.Decode(&doc); err != nil {
			return nil, &ValidationError{Spec: specName, Field: "args." + name, Reason: err.Error()}
		}

		argType, err := schema.ParseFieldType(doc.Type)
		if err != nil {
			return nil, &ValidationError{Spec: specName, Field: "args." + name + ".type", Reason: err.Error()}
		}

		arg := ArgSpec{
			Name:        name,
			Description: doc.Description,
			Type:        argType,
			Optional:    doc.Optional,
		}

		if !doc.Default.IsZero() {
			var def any
			if err := doc.Default.Decode(&def); err != nil {
				return nil, &ValidationError{Spec: specName, Field: "args." + name + ".default", Reason: err.Error()}
			}

			if err := arg.CheckValue(def); err != nil {
				return nil, &ValidationError{Spec: specName, Field: "args." + name + ".default", Reason: err.Error()}
			}

			arg.Default = def
			arg.Optional = true
		}

		args = append(args, arg)
	}

	return args, nil
}
