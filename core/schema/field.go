package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PrimitiveType is the declared type of a parameter, field or property.
type PrimitiveType string

const (
	TypeString PrimitiveType = "string"
	TypeBool   PrimitiveType = "bool"
	TypeInt    PrimitiveType = "int"
	TypeList   PrimitiveType = "list" // opaque array
	TypeDict   PrimitiveType = "dict" // opaque object
)

// Valid reports whether t is a known primitive type.
func (t PrimitiveType) Valid() bool {
	switch t {
	case TypeString, TypeBool, TypeInt, TypeList, TypeDict:
		return true
	default:
		return false
	}
}

// orString returns t, or TypeString when t is empty.
func (t PrimitiveType) orString() PrimitiveType {
	if t == "" {
		return TypeString
	}
	return t
}

// ParamSpec is a resolved parameter or body field.
type ParamSpec struct {
	// Name is the logical name callers use.
	Name string

	// WireName is the name sent on the wire. Always set after load.
	WireName string

	Description string
	Type        PrimitiveType
	Optional    bool

	// Default is bound when the caller omits an optional parameter.
	Default any
}

// Renamed reports whether the logical and wire names differ.
func (p ParamSpec) Renamed() bool {
	return p.WireName != p.Name
}

// PropertySpec describes one attribute of records returned by list and get.
type PropertySpec struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Type        PrimitiveType `yaml:"type,omitempty"`
}

// ParamDef is a parameter as written in a definition file.
type ParamDef struct {
	Name        string        `yaml:"name"`
	WireName    string        `yaml:"wireName,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Type        PrimitiveType `yaml:"type,omitempty"`
	Required    bool          `yaml:"required,omitempty"`
	Default     any           `yaml:"default,omitempty"`
}

// FieldDef is an entry of the shared field dictionary.
type FieldDef struct {
	Description string        `yaml:"description,omitempty"`
	Type        PrimitiveType `yaml:"type,omitempty"`
}

// FieldRef is an entry of a create/update field list: either a bare name
// resolved against the field dictionary, or an inline parameter.
type FieldRef struct {
	name   string
	inline *ParamDef
}

// Named returns a reference to a field by name.
func Named(name string) FieldRef {
	return FieldRef{name: name}
}

// Inline returns a self-describing field reference.
func Inline(p ParamDef) FieldRef {
	return FieldRef{name: p.Name, inline: &p}
}

// Name returns the logical field name.
func (r FieldRef) Name() string {
	return r.name
}

// IsInline reports whether the reference carries its own descriptor.
func (r FieldRef) IsInline() bool {
	return r.inline != nil
}

// UnmarshalYAML accepts either a scalar name or a parameter mapping.
func (r *FieldRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*r = Named(value.Value)
		return nil
	case yaml.MappingNode:
		var p ParamDef
		if err := value.Decode(&p); err != nil {
			return err
		}
		*r = Inline(p)
		return nil
	default:
		return fmt.Errorf("line %d: field reference must be a name or a mapping", value.Line)
	}
}

// MarshalYAML writes named references back as scalars.
func (r FieldRef) MarshalYAML() (any, error) {
	if r.inline != nil {
		return r.inline, nil
	}
	return r.name, nil
}
