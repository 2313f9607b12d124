package entity

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
)

var errMissing = errors.New("missing")

// fakeBackend keeps entities in memory.
type fakeBackend struct {
	manager *Manager
	actor   *model.User
	secrets secrets.Store
	objects map[string][]model.Object
	nextID  uint
}

func newFakeBackend(m *Manager, actor *model.User) *fakeBackend {
	return &fakeBackend{
		manager: m,
		actor:   actor,
		secrets: secrets.NewMemoryStore(),
		objects: map[string][]model.Object{},
	}
}

func (b *fakeBackend) Secrets() secrets.Store {
	return b.secrets
}

func (b *fakeBackend) find(entityType string, ref interface{}) model.Object {
	for _, obj := range b.objects[entityType] {
		base := obj.GetBase()
		switch r := ref.(type) {
		case string:
			if base.Name == r {
				return obj
			}
		case float64:
			if float64(base.ID) == r {
				return obj
			}
		case int:
			if int(base.ID) == r {
				return obj
			}
		case uint:
			if base.ID == r {
				return obj
			}
		}
	}
	return nil
}

func (b *fakeBackend) Objectify(_ context.Context, entityType string, refs []interface{}) ([]model.Object, error) {
	out := make([]model.Object, 0, len(refs))
	for _, ref := range refs {
		obj := b.find(entityType, ref)
		if obj == nil {
			return nil, fmt.Errorf("%w: %s %v", errMissing, entityType, ref)
		}
		out = append(out, obj)
	}
	return out, nil
}

func (b *fakeBackend) Where(_ context.Context, entityType string, conditions map[string]interface{}) ([]model.Object, error) {
	s, err := b.manager.Registry().Lookup(entityType)
	if err != nil {
		return nil, err
	}
	var out []model.Object
	for _, obj := range b.objects[entityType] {
		match := true
		for column, want := range conditions {
			got, _ := s.Value(obj, column)
			if v := reflect.ValueOf(got); v.Kind() == reflect.Ptr {
				if v.IsNil() {
					match = false
					break
				}
				got = v.Elem().Interface()
			}
			if fmt.Sprint(got) != fmt.Sprint(want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (b *fakeBackend) Factory(ctx context.Context, entityType string, fields map[string]interface{}, opts UpdateOptions) (model.Object, error) {
	obj := b.find(entityType, fields["name"])
	if obj == nil {
		var err error
		if obj, err = b.manager.Registry().New(entityType); err != nil {
			return nil, err
		}
		b.nextID++
		obj.GetBase().ID = b.nextID
		b.objects[entityType] = append(b.objects[entityType], obj)
	}
	if err := b.manager.Update(ctx, b, b.actor, obj, fields, opts); err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *fakeBackend) Delete(ctx context.Context, obj model.Object) error {
	if err := b.manager.Delete(ctx, b, obj); err != nil {
		return err
	}
	base := obj.GetBase()
	kept := b.objects[base.Type][:0]
	for _, o := range b.objects[base.Type] {
		if o.GetBase().ID != base.ID {
			kept = append(kept, o)
		}
	}
	b.objects[base.Type] = kept
	return nil
}

type failingStore struct{}

func (failingStore) Read(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingStore) Write(context.Context, string, string) error {
	return errors.New("connection refused")
}
