package forms

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaptinlin/jsonschema"
)

// RequiredMessage is reported for missing required fields.
const RequiredMessage = "This field is required."

// ValidationError carries the per-field problems of a submitted form.
type ValidationError struct {
	Form   string
	Errors map[string][]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Errors[field], ", "))
	}
	return fmt.Sprintf("invalid form %s: %s", e.Form, strings.Join(parts, "; "))
}

func (e *ValidationError) add(field, message string) {
	if e.Errors == nil {
		e.Errors = map[string][]string{}
	}
	e.Errors[field] = append(e.Errors[field], message)
}

type compiledField struct {
	field  Field
	schema *jsonschema.Schema
}

// Validator checks submitted values against descriptors. Compiled
// schemas are cached by the canonical digest of the descriptor.
type Validator struct {
	cache *lru.Cache[string, []compiledField]
}

// NewValidator keeps up to size compiled descriptors.
func NewValidator(size int) (*Validator, error) {
	cache, err := lru.New[string, []compiledField](size)
	if err != nil {
		return nil, err
	}
	return &Validator{cache: cache}, nil
}

// Digest identifies a descriptor independently of key order and spacing.
func (d Descriptor) Digest() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (v *Validator) compile(d Descriptor) ([]compiledField, error) {
	digest, err := d.Digest()
	if err != nil {
		return nil, err
	}
	if fields, ok := v.cache.Get(digest); ok {
		return fields, nil
	}

	compiler := jsonschema.NewCompiler()
	fields := make([]compiledField, 0, len(d))
	for _, f := range d {
		raw, err := json.Marshal(propertySchema(f))
		if err != nil {
			return nil, err
		}
		schema, err := compiler.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile schema of field %s: %w", f.Name, err)
		}
		fields = append(fields, compiledField{field: f, schema: schema})
	}
	v.cache.Add(digest, fields)
	return fields, nil
}

// Validate coerces and checks values against d. Values for undeclared
// names are passed through unchanged. The returned error is a
// *ValidationError when values do not satisfy the form.
func (v *Validator) Validate(name string, d Descriptor, values map[string]interface{}) (map[string]interface{}, error) {
	fields, err := v.compile(d)
	if err != nil {
		return nil, err
	}

	cleaned := make(map[string]interface{}, len(values))
	for key, value := range values {
		if _, declared := d.Field(key); !declared {
			cleaned[key] = value
		}
	}

	invalid := &ValidationError{Form: name}
	for _, cf := range fields {
		f := cf.field
		value, present := coerceValue(f, values[f.Name])
		if !present {
			switch {
			case f.Default != nil:
				cleaned[f.Name] = f.Default
			case f.Required:
				invalid.add(f.Name, RequiredMessage)
			case f.Type == TypeBoolean:
				cleaned[f.Name] = false
			}
			continue
		}

		raw, err := json.Marshal(value)
		if err != nil {
			invalid.add(f.Name, "Invalid value.")
			continue
		}
		result := cf.schema.ValidateJSON(raw)
		if !result.IsValid() {
			for _, message := range messages(result) {
				invalid.add(f.Name, message)
			}
			continue
		}
		cleaned[f.Name] = value
	}

	if len(invalid.Errors) > 0 {
		return nil, invalid
	}
	return cleaned, nil
}

func messages(result *jsonschema.EvaluationResult) []string {
	keywords := make([]string, 0, len(result.Errors))
	for keyword := range result.Errors {
		keywords = append(keywords, keyword)
	}
	sort.Strings(keywords)
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		out = append(out, result.Errors[keyword].Error())
	}
	if len(out) == 0 {
		out = append(out, "Invalid value.")
	}
	return out
}

// coerceValue converts form encoded input to the field's type. It reports
// false when the field was not filled in.
func coerceValue(f Field, value interface{}) (interface{}, bool) {
	if value == nil {
		return nil, false
	}
	if values, ok := value.([]string); ok && f.Type != TypeList {
		if len(values) == 0 {
			return nil, false
		}
		value = values[0]
	}
	s, isString := value.(string)
	if isString && s == "" && f.Type != TypeString && f.Type != TypePassword && f.Type != TypeList {
		return nil, false
	}
	if isString && s == "" && f.Required {
		return nil, false
	}

	switch f.Type {
	case TypeInteger:
		switch v := value.(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n, true
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), true
			}
		case int:
			return int64(v), true
		}
	case TypeNumber:
		if v, ok := value.(string); ok {
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return n, true
			}
		}
	case TypeBoolean:
		if v, ok := value.(string); ok {
			switch strings.ToLower(v) {
			case "true", "on", "y", "yes", "1":
				return true, true
			case "false", "off", "n", "no", "0":
				return false, true
			}
		}
	case TypeList:
		switch v := value.(type) {
		case string:
			if v == "" {
				return []interface{}{}, true
			}
			return []interface{}{v}, true
		case []string:
			out := make([]interface{}, len(v))
			for i, item := range v {
				out[i] = item
			}
			return out, true
		}
	case TypeDict:
		if v, ok := value.(string); ok {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(v), &m); err == nil {
				return m, true
			}
		}
	}
	return value, true
}
