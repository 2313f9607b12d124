package forms

import (
	"encoding/json"
)

// propertySchema is the JSON Schema of a single field value.
func propertySchema(f Field) map[string]interface{} {
	s := map[string]interface{}{}
	if f.Label != "" {
		s["title"] = f.Label
	}
	if f.Help != "" {
		s["description"] = f.Help
	}

	switch f.Type {
	case TypeString, TypePassword:
		s["type"] = "string"
		if f.Pattern != "" {
			s["pattern"] = f.Pattern
		}
		if f.MinLength != nil {
			s["minLength"] = *f.MinLength
		}
		if f.MaxLength != nil {
			s["maxLength"] = *f.MaxLength
		}
	case TypeInteger, TypeNumber:
		s["type"] = f.Type
		if f.Min != nil {
			s["minimum"] = *f.Min
		}
		if f.Max != nil {
			s["maximum"] = *f.Max
		}
	case TypeBoolean:
		s["type"] = "boolean"
	case TypeList:
		s["type"] = "array"
		if len(f.Choices) > 0 {
			s["items"] = map[string]interface{}{"enum": f.Choices}
		}
	case TypeDict:
		s["type"] = "object"
	case TypeSelect:
		s["enum"] = f.Choices
	}
	return s
}

// Schema returns the JSON Schema document for the whole form.
func (d Descriptor) Schema() ([]byte, error) {
	properties := make(map[string]interface{}, len(d))
	required := []string{}
	for _, f := range d {
		properties[f.Name] = propertySchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return json.Marshal(map[string]interface{}{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
}
