package entity

import (
	"context"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// PropertyOptions selects the properties returned by GetProperties.
type PropertyOptions struct {
	// Export drops computed and non-migrated properties and nulls, and
	// copies containers into plain values.
	Export        bool
	Include       []string
	Exclude       []string
	RevealSecrets bool
}

// DictOptions selects the content of ToDict.
type DictOptions struct {
	Export bool
	// RelationNamesOnly renders related entities by name.
	RelationNamesOnly bool
	Include           []string
	Exclude           []string
	RevealSecrets     bool
}

func selected(name string, include, exclude []string) bool {
	if len(include) > 0 && !contains(include, name) {
		return false
	}
	return !contains(exclude, name)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// GetProperties returns the scalar properties of obj.
func (m *Manager) GetProperties(ctx context.Context, backend Backend, obj model.Object, opts PropertyOptions) (map[string]interface{}, error) {
	s, err := m.registry.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	result := make(map[string]interface{}, len(s.Properties))
	for _, prop := range s.Properties {
		switch {
		case prop.Private && !opts.RevealSecrets,
			prop.NoSerialize,
			opts.Export && (prop.Computed || prop.NoMigrate),
			!selected(prop.Name, opts.Include, opts.Exclude):
			continue
		}

		var value interface{}
		if prop.Private {
			value = m.readSecret(ctx, backend, obj, prop.Name)
		} else {
			value, _ = s.Value(obj, prop.Name)
		}
		if opts.Export {
			if isNull(value) {
				continue
			}
			value = plain(value)
		}
		result[prop.Name] = value
	}
	return result, nil
}

// ToDict returns the properties of obj together with its relationships.
// Unset scalar relationships are omitted.
func (m *Manager) ToDict(ctx context.Context, backend Backend, obj model.Object, opts DictOptions) (map[string]interface{}, error) {
	result, err := m.GetProperties(ctx, backend, obj, PropertyOptions{
		Export:        opts.Export,
		Exclude:       opts.Exclude,
		RevealSecrets: opts.RevealSecrets,
	})
	if err != nil {
		return nil, err
	}
	s, err := m.registry.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	byName := opts.Export || opts.RelationNamesOnly

	for _, rel := range s.Relationships {
		if !selected(rel.Name, opts.Include, opts.Exclude) || opts.Export && rel.NoMigrate {
			continue
		}
		related := s.Related(obj, rel.Name)
		if !rel.List && len(related) == 0 {
			continue
		}

		values := make([]interface{}, 0, len(related))
		for _, target := range related {
			if byName {
				values = append(values, target.GetBase().Name)
				continue
			}
			nested, err := m.GetProperties(ctx, backend, target, PropertyOptions{Exclude: opts.Exclude})
			if err != nil {
				return nil, err
			}
			values = append(values, nested)
		}
		if rel.List {
			result[rel.Name] = values
		} else {
			result[rel.Name] = values[0]
		}
	}
	return result, nil
}
