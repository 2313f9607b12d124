package forms

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field types understood by descriptors.
const (
	TypeString   = "string"
	TypePassword = "password"
	TypeInteger  = "integer"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeList     = "list"
	TypeDict     = "dict"
	TypeSelect   = "select"
)

var fieldTypes = map[string]bool{
	TypeString: true, TypePassword: true, TypeInteger: true, TypeNumber: true,
	TypeBoolean: true, TypeList: true, TypeDict: true, TypeSelect: true,
}

// Field describes one input of a form.
type Field struct {
	Name      string        `yaml:"name" json:"name"`
	Type      string        `yaml:"type" json:"type"`
	Label     string        `yaml:"label,omitempty" json:"label,omitempty"`
	Required  bool          `yaml:"required,omitempty" json:"required,omitempty"`
	Default   interface{}   `yaml:"default,omitempty" json:"default,omitempty"`
	Choices   []interface{} `yaml:"choices,omitempty" json:"choices,omitempty"`
	Pattern   string        `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Min       *float64      `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64      `yaml:"max,omitempty" json:"max,omitempty"`
	MinLength *int          `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int          `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Help      string        `yaml:"help,omitempty" json:"help,omitempty"`
}

// Title is the label shown next to the field.
func (f Field) Title() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Descriptor is an ordered list of fields.
type Descriptor []Field

// Parse reads a YAML field list. An empty document is an empty form.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid form descriptor: %w", err)
	}
	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d Descriptor) check() error {
	seen := map[string]bool{}
	for i, f := range d {
		if f.Name == "" {
			return fmt.Errorf("invalid form descriptor: field %d has no name", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("invalid form descriptor: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if !fieldTypes[f.Type] {
			return fmt.Errorf("invalid form descriptor: field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Type == TypeSelect && len(f.Choices) == 0 {
			return fmt.Errorf("invalid form descriptor: select field %q has no choices", f.Name)
		}
	}
	return nil
}

// Field returns the field called name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
