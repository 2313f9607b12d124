package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
)

// Backend is the persistence side of a transactional session.
type Backend interface {
	// Secrets returns the secret store bound to the session.
	Secrets() secrets.Store

	// Objectify resolves references (ids or names) to entities of
	// entityType visible to the session actor, preserving their order.
	Objectify(ctx context.Context, entityType string, refs []interface{}) ([]model.Object, error)

	// Where returns the entities of entityType whose columns match
	// conditions, regardless of visibility.
	Where(ctx context.Context, entityType string, conditions map[string]interface{}) ([]model.Object, error)

	// Factory updates the entity named in fields, or creates it.
	Factory(ctx context.Context, entityType string, fields map[string]interface{}, opts UpdateOptions) (model.Object, error)

	// Delete removes an entity.
	Delete(ctx context.Context, obj model.Object) error
}

// Hasher turns a user password into its stored form.
type Hasher interface {
	Hash(password string) (string, error)
}

// DeleteHook runs before an entity of its type is removed.
type DeleteHook func(ctx context.Context, backend Backend, obj model.Object) error

// UpdateOptions tunes Update.
type UpdateOptions struct {
	// SkipRBAC keeps the current owner and grants.
	SkipRBAC bool
}

type Option func(*Manager)

// WithHasher hashes user passwords before they reach the secret store.
func WithHasher(h Hasher) Option {
	return func(m *Manager) {
		m.hasher = h
	}
}

// WithDeleteHook registers the delete hook of entityType.
func WithDeleteHook(entityType string, hook DeleteHook) Option {
	return func(m *Manager) {
		m.deleteHooks[entityType] = hook
	}
}

// Manager applies the entity contract to any registered type.
type Manager struct {
	registry    *model.Registry
	rbac        *rbac.Engine
	hasher      Hasher
	deleteHooks map[string]DeleteHook
	log         *logrus.Logger
}

func NewManager(registry *model.Registry, engine *rbac.Engine, log *logrus.Logger, opts ...Option) *Manager {
	m := &Manager{
		registry:    registry,
		rbac:        engine,
		deleteHooks: map[string]DeleteHook{},
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Registry() *model.Registry {
	return m.registry
}

// Update applies fields to obj on behalf of actor. Unknown and read-only
// properties are skipped. Private properties are written last so that
// their secret path uses the final name.
func (m *Manager) Update(
	ctx context.Context,
	backend Backend,
	actor *model.User,
	obj model.Object,
	fields map[string]interface{},
	opts UpdateOptions,
) error {
	s, err := m.registry.SchemaOf(obj)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var private []string
	for _, name := range names {
		value := fields[name]
		if rel, ok := s.Relationship(name); ok {
			if err := m.updateRelationship(ctx, backend, s, obj, rel, value); err != nil {
				return err
			}
			continue
		}
		prop, ok := s.Property(name)
		if !ok || prop.ReadOnly {
			continue
		}
		if prop.Private {
			private = append(private, name)
			continue
		}
		current, _ := s.Value(obj, name)
		coerced, err := coerce(prop, value, current)
		if err != nil {
			return fmt.Errorf("%s %q: %w", s.Type, obj.GetBase().Name, err)
		}
		if err := s.SetValue(obj, name, coerced); err != nil {
			return err
		}
	}

	for _, name := range private {
		value := toString(fields[name])
		if s.Type == "user" && name == "password" && value != "" && m.hasher != nil {
			if value, err = m.hasher.Hash(value); err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
		}
		if err := m.SetField(ctx, backend, obj, name, value); err != nil {
			return err
		}
	}

	if user, ok := obj.(*model.User); ok {
		user.RefreshRequests()
	}
	if !opts.SkipRBAC {
		m.rbac.Stamp(actor, obj)
	}
	return nil
}

func (m *Manager) updateRelationship(
	ctx context.Context,
	backend Backend,
	s *model.Schema,
	obj model.Object,
	rel model.Relationship,
	value interface{},
) error {
	refs := references(value)
	if !rel.List && len(refs) > 1 {
		return fmt.Errorf("%s.%s takes a single reference", s.Type, rel.Name)
	}
	var targets []model.Object
	if len(refs) > 0 {
		var err error
		targets, err = backend.Objectify(ctx, rel.Model, refs)
		if err != nil {
			return err
		}
	}
	return s.SetRelated(obj, rel.Name, targets)
}

// Duplicate creates a copy of obj with every property but id and name,
// overridden by overrides. The copy has no owner or grants until it is
// stamped for the actor creating it.
func (m *Manager) Duplicate(
	ctx context.Context,
	backend Backend,
	obj model.Object,
	overrides map[string]interface{},
) (model.Object, error) {
	properties, err := m.GetProperties(ctx, backend, obj, PropertyOptions{})
	if err != nil {
		return nil, err
	}
	delete(properties, "id")
	delete(properties, "name")
	for k, v := range overrides {
		properties[k] = v
	}

	base := obj.GetBase()
	return backend.Factory(ctx, base.Type, properties, UpdateOptions{SkipRBAC: true})
}

// Delete runs the delete hook of the entity's type, if any. Removing the
// row is up to the backend.
func (m *Manager) Delete(ctx context.Context, backend Backend, obj model.Object) error {
	hook, ok := m.deleteHooks[obj.GetBase().Type]
	if !ok {
		return nil
	}
	return hook(ctx, backend, obj)
}

// GetField reads one property. A private property comes from the secret
// store; when it is missing or the store fails the value is "".
func (m *Manager) GetField(ctx context.Context, backend Backend, obj model.Object, name string) (interface{}, error) {
	s, err := m.registry.SchemaOf(obj)
	if err != nil {
		return nil, err
	}
	prop, ok := s.Property(name)
	if !ok {
		return nil, fmt.Errorf("%s has no property %s", s.Type, name)
	}
	if !prop.Private {
		value, _ := s.Value(obj, name)
		return value, nil
	}
	return m.readSecret(ctx, backend, obj, name), nil
}

func (m *Manager) readSecret(ctx context.Context, backend Backend, obj model.Object, name string) string {
	base := obj.GetBase()
	path := secrets.Path(base.Type, base.Name, name)
	value, err := backend.Secrets().Read(ctx, path)
	switch {
	case err == nil:
		return value
	case errors.Is(err, secrets.ErrNotFound):
		return ""
	default:
		m.log.WithError(err).WithField("path", path).Warn("secret store read failed, using empty value")
		return ""
	}
}

// SetField writes one property. An empty private value is ignored so that
// secrets are never cleared implicitly.
func (m *Manager) SetField(ctx context.Context, backend Backend, obj model.Object, name string, value interface{}) error {
	s, err := m.registry.SchemaOf(obj)
	if err != nil {
		return err
	}
	prop, ok := s.Property(name)
	if !ok {
		return fmt.Errorf("%s has no property %s", s.Type, name)
	}
	if !prop.Private {
		current, _ := s.Value(obj, name)
		coerced, err := coerce(prop, value, current)
		if err != nil {
			return err
		}
		return s.SetValue(obj, name, coerced)
	}

	secret := toString(value)
	if secret == "" {
		return nil
	}
	base := obj.GetBase()
	path := secrets.Path(base.Type, base.Name, name)
	if err := backend.Secrets().Write(ctx, path, secret); err != nil {
		return fmt.Errorf("failed to store %s: %w", path, err)
	}
	return nil
}
