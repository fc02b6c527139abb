package schema

import (
	"github.com/pkg/errors"
)

// FieldType is the closed set of column types a component contract can
// declare. There is no implicit widening between types: an int32 producer
// never satisfies an int64 consumer.
type FieldType string

const (
	TypeBinary  FieldType = "binary"
	TypeString  FieldType = "string"
	TypeInt16   FieldType = "int16"
	TypeInt32   FieldType = "int32"
	TypeInt64   FieldType = "int64"
	TypeFloat32 FieldType = "float32"
	TypeFloat64 FieldType = "float64"
	TypeBool    FieldType = "bool"
	TypeDict    FieldType = "dict"
	TypeList    FieldType = "list"
)

var ErrUnknownFieldType = errors.New("unknown field type")

var fieldTypes = map[FieldType]struct{}{
	TypeBinary:  {},
	TypeString:  {},
	TypeInt16:   {},
	TypeInt32:   {},
	TypeInt64:   {},
	TypeFloat32: {},
	TypeFloat64: {},
	TypeBool:    {},
	TypeDict:    {},
	TypeList:    {},
}

// ParseFieldType maps a type literal from a contract document to its
// FieldType. It rejects anything outside the closed set.
func ParseFieldType(literal string) (FieldType, error) {
	ft := FieldType(literal)
	if _, ok := fieldTypes[ft]; !ok {
		return "", errors.Wrapf(ErrUnknownFieldType, "%q", literal)
	}

	return ft, nil
}

// FieldSpec is a single typed column. Immutable once created.
type FieldSpec struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// NewField validates a (name, type) pair and returns the field.
func NewField(name string, fieldType FieldType) (FieldSpec, error) {
	if name == "" {
		return FieldSpec{}, errors.New("field name must not be empty")
	}

	if _, ok := fieldTypes[fieldType]; !ok {
		return FieldSpec{}, errors.Wrapf(ErrUnknownFieldType, "field %s: %q", name, fieldType)
	}

	return FieldSpec{Name: name, Type: fieldType}, nil
}
