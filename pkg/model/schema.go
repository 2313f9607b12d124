package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"gorm.io/gorm/schema"
)

// ErrUnknownType is returned for a type tag with no registered schema.
var ErrUnknownType = errors.New("unknown entity type")

// Property describes one scalar property of an entity type.
type Property struct {
	Name string
	Kind Kind

	// Private properties live in the secret store, never in the entity row.
	Private bool
	// NoSerialize hides the property from serialization.
	NoSerialize bool
	// NoMigrate drops the property from exports.
	NoMigrate bool
	// MergeUpdate merges dict updates onto the current value.
	MergeUpdate bool
	// Computed marks derived state, dropped from exports.
	Computed bool
	// ReadOnly properties are never written by updates.
	ReadOnly bool
}

// Relationship describes a reference from one entity type to another.
type Relationship struct {
	Name  string
	Model string
	List  bool
	// NoMigrate drops the relationship from exports.
	NoMigrate bool
}

// Schema is the descriptor of one entity type.
type Schema struct {
	Type          string
	New           func() Object
	Properties    []Property
	Relationships []Relationship

	properties map[string]Property
	relations  map[string]Relationship
	fields     map[string]*schema.Field
}

var baseProperties = []Property{
	{Name: "id", Kind: KindInt, ReadOnly: true},
	{Name: "name", Kind: KindStr},
	{Name: "type", Kind: KindStr, ReadOnly: true},
	{Name: "owner", Kind: KindStr, Computed: true, ReadOnly: true},
	{Name: "access", Kind: KindDict, Computed: true, ReadOnly: true},
}

func (s *Schema) compile(cache *sync.Map) error {
	if s.Type == "" || s.New == nil {
		return fmt.Errorf("schema needs a type and a constructor")
	}
	parsed, err := schema.Parse(s.New(), cache, schema.NamingStrategy{})
	if err != nil {
		return fmt.Errorf("failed to parse %s model: %w", s.Type, err)
	}

	namer := schema.NamingStrategy{}
	s.fields = make(map[string]*schema.Field, len(parsed.Fields))
	for _, f := range parsed.Fields {
		name := f.DBName
		if name == "" {
			name = namer.ColumnName("", f.Name)
		}
		s.fields[name] = f
	}

	s.Properties = append(append([]Property{}, baseProperties...), s.Properties...)
	s.properties = make(map[string]Property, len(s.Properties))
	for _, p := range s.Properties {
		if _, dup := s.properties[p.Name]; dup {
			return fmt.Errorf("%s: property %s declared twice", s.Type, p.Name)
		}
		if !p.Private {
			if _, ok := s.fields[p.Name]; !ok {
				return fmt.Errorf("%s: property %s has no column", s.Type, p.Name)
			}
		} else if _, ok := s.fields[p.Name]; ok {
			return fmt.Errorf("%s: private property %s must not have a column", s.Type, p.Name)
		}
		s.properties[p.Name] = p
	}

	s.relations = make(map[string]Relationship, len(s.Relationships))
	for _, r := range s.Relationships {
		f, ok := s.fields[r.Name]
		if !ok {
			return fmt.Errorf("%s: relationship %s has no field", s.Type, r.Name)
		}
		kind := f.FieldType.Kind()
		if r.List && kind != reflect.Slice || !r.List && kind != reflect.Ptr {
			return fmt.Errorf("%s: relationship %s cardinality does not match its field", s.Type, r.Name)
		}
		s.relations[r.Name] = r
	}
	return nil
}

// Property returns the metadata of a scalar property.
func (s *Schema) Property(name string) (Property, bool) {
	p, ok := s.properties[name]
	return p, ok
}

// Relationship returns the descriptor of a relationship.
func (s *Schema) Relationship(name string) (Relationship, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// IsPrivate reports whether name is a private property.
func (s *Schema) IsPrivate(name string) bool {
	return s.properties[name].Private
}

// Value reads a column-backed property or relationship field.
func (s *Schema) Value(obj Object, name string) (interface{}, bool) {
	f, ok := s.fields[name]
	if !ok {
		return nil, false
	}
	value, _ := f.ValueOf(reflect.Indirect(reflect.ValueOf(obj)))
	return value, true
}

// SetValue writes a column-backed property, converting value to the
// field's Go type when needed.
func (s *Schema) SetValue(obj Object, name string, value interface{}) error {
	f, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("%s has no property %s", s.Type, name)
	}
	target := f.ReflectValueOf(reflect.Indirect(reflect.ValueOf(obj)))
	if value == nil {
		target.Set(reflect.Zero(f.FieldType))
		return nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(f.FieldType):
		target.Set(v)
	case v.Type().ConvertibleTo(f.FieldType) && (v.Kind() == reflect.String) == (f.FieldType.Kind() == reflect.String):
		target.Set(v.Convert(f.FieldType))
	default:
		return fmt.Errorf("cannot assign %T to %s.%s", value, s.Type, name)
	}
	return nil
}

// Related returns the entities held by a relationship field.
func (s *Schema) Related(obj Object, name string) []Object {
	value, ok := s.Value(obj, name)
	if !ok || value == nil {
		return nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		out := make([]Object, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if o, ok := v.Index(i).Interface().(Object); ok && !v.Index(i).IsNil() {
				out = append(out, o)
			}
		}
		return out
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		if o, ok := value.(Object); ok {
			return []Object{o}
		}
	}
	return nil
}

// SetRelated replaces the entities held by a relationship field. A scalar
// relationship takes at most one target; none clears it.
func (s *Schema) SetRelated(obj Object, name string, targets []Object) error {
	r, ok := s.relations[name]
	if !ok {
		return fmt.Errorf("%s has no relationship %s", s.Type, name)
	}
	f := s.fields[name]
	field := f.ReflectValueOf(reflect.Indirect(reflect.ValueOf(obj)))

	if r.List {
		slice := reflect.MakeSlice(f.FieldType, 0, len(targets))
		for _, t := range targets {
			tv := reflect.ValueOf(t)
			if !tv.Type().AssignableTo(f.FieldType.Elem()) {
				return fmt.Errorf("cannot add %T to %s.%s", t, s.Type, name)
			}
			slice = reflect.Append(slice, tv)
		}
		field.Set(slice)
		return nil
	}

	switch len(targets) {
	case 0:
		field.Set(reflect.Zero(f.FieldType))
	case 1:
		tv := reflect.ValueOf(targets[0])
		if !tv.Type().AssignableTo(f.FieldType) {
			return fmt.Errorf("cannot assign %T to %s.%s", targets[0], s.Type, name)
		}
		field.Set(tv)
	default:
		return fmt.Errorf("%s.%s holds a single entity", s.Type, name)
	}
	return nil
}

// HasColumn reports whether name is a column of the type's table.
func (s *Schema) HasColumn(name string) bool {
	f, ok := s.fields[name]
	return ok && f.DBName != ""
}

// FieldName returns the Go struct field behind a relationship, as used by
// gorm association calls.
func (s *Schema) FieldName(name string) string {
	if f, ok := s.fields[name]; ok {
		return f.Name
	}
	return ""
}

// Registry maps type tags to schemas. It is immutable once built.
type Registry struct {
	schemas map[string]*Schema
	types   []string
}

// NewRegistry compiles the schemas and checks that every relationship
// targets a registered type.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	cache := &sync.Map{}
	for i := range schemas {
		s := schemas[i]
		if _, dup := r.schemas[s.Type]; dup {
			return nil, fmt.Errorf("type %s registered twice", s.Type)
		}
		if err := s.compile(cache); err != nil {
			return nil, err
		}
		r.schemas[s.Type] = &s
		r.types = append(r.types, s.Type)
	}
	for _, s := range r.schemas {
		for _, rel := range s.Relationships {
			if _, ok := r.schemas[rel.Model]; !ok {
				return nil, fmt.Errorf("%s.%s targets unregistered type %s", s.Type, rel.Name, rel.Model)
			}
		}
	}
	sort.Strings(r.types)
	return r, nil
}

// Lookup returns the schema for a type tag.
func (r *Registry) Lookup(entityType string) (*Schema, error) {
	s, ok := r.schemas[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, entityType)
	}
	return s, nil
}

// New returns an empty entity of the given type with its type tag set.
func (r *Registry) New(entityType string) (Object, error) {
	s, err := r.Lookup(entityType)
	if err != nil {
		return nil, err
	}
	obj := s.New()
	obj.GetBase().Type = entityType
	return obj, nil
}

// SchemaOf returns the schema of an entity from its type tag.
func (r *Registry) SchemaOf(obj Object) (*Schema, error) {
	return r.Lookup(obj.GetBase().Type)
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	return append([]string(nil), r.types...)
}

// Models returns one empty instance per type, for schema migration.
func (r *Registry) Models() []interface{} {
	models := make([]interface{}, 0, len(r.types))
	for _, t := range r.types {
		models = append(models, r.schemas[t].New())
	}
	return models
}
