package spec

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/askiada/pipefitter/pkg/pipeline/schema"
)

type wireArg struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Type        schema.FieldType `json:"type"`
	Optional    bool             `json:"optional,omitempty"`
	Default     any              `json:"default,omitempty"`
}

type wireSpec struct {
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Image            string            `json:"image"`
	Consumes         []canonicalSubset `json:"consumes"`
	Produces         []canonicalSubset `json:"produces"`
	AdditionalFields bool              `json:"additionalFields"`
	Args             []wireArg         `json:"args"`
}

// MarshalJSON serialises the full contract, description included, for the
// --component_spec payload handed to the running container. Unlike
// ContentHash it is a transport encoding, not a cache identity.
func (s *ComponentSpec) MarshalJSON() ([]byte, error) {
	wire := wireSpec{
		Name:             s.Name,
		Description:      s.Description,
		Image:            s.Image,
		Consumes:         canonicalSchema(s.Consumes),
		Produces:         canonicalSchema(s.Produces),
		AdditionalFields: s.ProducesAdditionalFields,
		Args:             make([]wireArg, 0, len(s.Args)),
	}

	for _, arg := range s.Args {
		wire.Args = append(wire.Args, wireArg{
			Name:        arg.Name,
			Description: arg.Description,
			Type:        arg.Type,
			Optional:    arg.Optional,
			Default:     arg.Default,
		})
	}

	payload, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to serialise spec %s", s.Name)
	}

	return payload, nil
}
