package forms

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed builtin/*.yml
var builtin embed.FS

// Registry maps form types to descriptors.
type Registry struct {
	mu        sync.RWMutex
	forms     map[string]Descriptor
	validator *Validator
}

// NewRegistry loads the built-in forms.
func NewRegistry(validator *Validator) (*Registry, error) {
	r := &Registry{forms: map[string]Descriptor{}, validator: validator}

	entries, err := builtin.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		data, err := builtin.ReadFile(path.Join("builtin", entry.Name()))
		if err != nil {
			return nil, err
		}
		d, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		r.forms[strings.TrimSuffix(entry.Name(), ".yml")] = d
	}
	return r, nil
}

// Register adds or replaces the form called name.
func (r *Registry) Register(name string, d Descriptor) error {
	if err := d.check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[name] = d
	return nil
}

// Get returns the form called name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.forms[name]
	return d, ok
}

// Names returns the registered form types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.forms))
	for name := range r.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks values submitted for the form called name.
func (r *Registry) Validate(name string, values map[string]interface{}) (map[string]interface{}, error) {
	d, ok := r.Get(name)
	if !ok {
		return nil, &ValidationError{Form: name, Errors: map[string][]string{
			"form_type": {fmt.Sprintf("Unknown form %q.", name)},
		}}
	}
	return r.validator.Validate(name, d, values)
}

// ValidateDescriptor checks values against a descriptor that is not
// registered, such as a service's parameterized form.
func (r *Registry) ValidateDescriptor(name string, d Descriptor, values map[string]interface{}) (map[string]interface{}, error) {
	return r.validator.Validate(name, d, values)
}
