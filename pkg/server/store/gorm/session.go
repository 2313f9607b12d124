package gorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// Ensure Session implements store.Session
var _ store.Session = (*Session)(nil)

// Session implements store.Session on one open transaction
type Session struct {
	tx      *gorm.DB
	actor   *model.User
	store   *Store
	secrets secrets.Store
}

func (s *Session) Actor() *model.User {
	return s.actor
}

func (s *Session) WithActor(actor *model.User) store.Session {
	c := *s
	c.actor = actor
	return &c
}

func (s *Session) Manager() *entity.Manager {
	return s.store.manager
}

func (s *Session) Secrets() secrets.Store {
	return s.secrets
}

func (s *Session) schema(entityType string) (*model.Schema, error) {
	sc, err := s.store.manager.Registry().Lookup(entityType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return sc, nil
}

// toID reads a numeric reference.
func toID(ref interface{}) (uint, bool) {
	switch r := ref.(type) {
	case uint:
		return r, true
	case int:
		return uint(r), r > 0
	case int64:
		return uint(r), r > 0
	case float64:
		return uint(r), r > 0 && r == float64(uint(r))
	case json.Number:
		n, err := strconv.ParseUint(r.String(), 10, 64)
		return uint(n), err == nil
	case string:
		n, err := strconv.ParseUint(r, 10, 64)
		return uint(n), err == nil
	}
	return 0, false
}

func (s *Session) first(ctx context.Context, sc *model.Schema, query string, arg interface{}) (model.Object, error) {
	obj := sc.New()
	err := s.tx.WithContext(ctx).Preload(clause.Associations).Where(query, arg).First(obj).Error
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// lookup finds an entity by name, or by id for numeric references.
func (s *Session) lookup(ctx context.Context, sc *model.Schema, ref interface{}) (model.Object, error) {
	var (
		obj model.Object
		err = gorm.ErrRecordNotFound
	)
	if name, ok := ref.(string); ok {
		obj, err = s.first(ctx, sc, "name = ?", name)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if id, ok := toID(ref); ok {
			obj, err = s.first(ctx, sc, "id = ?", id)
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %v", store.ErrNotFound, sc.Type, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %v: %w", sc.Type, ref, err)
	}
	return obj, nil
}

// Fetch returns one visible entity by id or name
func (s *Session) Fetch(ctx context.Context, entityType string, ref interface{}) (model.Object, error) {
	sc, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	obj, err := s.lookup(ctx, sc, ref)
	if err != nil {
		return nil, err
	}
	if !s.store.rbac.Visibility(s.actor, entityType).Contains(obj.GetBase().ID) {
		return nil, fmt.Errorf("%w: %s %v", store.ErrNotFound, entityType, ref)
	}
	return obj, nil
}

func (s *Session) Objectify(ctx context.Context, entityType string, refs []interface{}) ([]model.Object, error) {
	objects := make([]model.Object, 0, len(refs))
	for _, ref := range refs {
		obj, err := s.Fetch(ctx, entityType, ref)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *Session) find(ctx context.Context, sc *model.Schema, conditions map[string]interface{}, ids []uint) ([]model.Object, error) {
	for column := range conditions {
		if !sc.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s has no column %s", store.ErrNotFound, sc.Type, column)
		}
	}
	slice := reflect.New(reflect.SliceOf(reflect.TypeOf(sc.New())))
	query := s.tx.WithContext(ctx).Preload(clause.Associations).Order("name")
	if len(conditions) > 0 {
		query = query.Where(conditions)
	}
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Find(slice.Interface()).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", sc.Type, err)
	}

	items := slice.Elem()
	objects := make([]model.Object, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		objects = append(objects, items.Index(i).Interface().(model.Object))
	}
	return objects, nil
}

// FetchAll returns the visible entities matching conditions, by name
func (s *Session) FetchAll(ctx context.Context, entityType string, conditions map[string]interface{}) ([]model.Object, error) {
	sc, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	visibility := s.store.rbac.Visibility(s.actor, entityType)
	var ids []uint
	if !visibility.Unrestricted {
		if len(visibility.IDs) == 0 {
			return []model.Object{}, nil
		}
		ids = make([]uint, 0, len(visibility.IDs))
		for id := range visibility.IDs {
			ids = append(ids, id)
		}
	}
	return s.find(ctx, sc, conditions, ids)
}

// Where ignores visibility; it serves delete hooks and imports.
func (s *Session) Where(ctx context.Context, entityType string, conditions map[string]interface{}) ([]model.Object, error) {
	sc, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, sc, conditions, nil)
}

func (s *Session) fetchUser(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := s.tx.WithContext(ctx).
		Preload("Groups").
		Preload("Pools.Devices").
		Preload("Pools.Links").
		Where(query, arg).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %v", store.ErrNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %v: %w", arg, err)
	}
	return &user, nil
}

func (s *Session) FetchUser(ctx context.Context, name string) (*model.User, error) {
	return s.fetchUser(ctx, "name = ?", name)
}

func (s *Session) FetchUserByID(ctx context.Context, id uint) (*model.User, error) {
	return s.fetchUser(ctx, "id = ?", id)
}

// Factory updates the entity identified by the id or name in fields, or
// creates a new one, then saves it.
func (s *Session) Factory(ctx context.Context, entityType string, fields map[string]interface{}, opts entity.UpdateOptions) (model.Object, error) {
	sc, err := s.schema(entityType)
	if err != nil {
		return nil, err
	}

	var obj model.Object
	for _, key := range []string{"id", "name"} {
		ref, ok := fields[key]
		if !ok || ref == nil || ref == "" {
			continue
		}
		if key == "id" {
			if ref, ok = toID(ref); !ok {
				continue
			}
		}
		existing, err := s.first(ctx, sc, key+" = ?", ref)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %v: %w", entityType, ref, err)
		}
		obj = existing
		break
	}

	if obj == nil {
		if obj, err = s.store.manager.Registry().New(entityType); err != nil {
			return nil, err
		}
	}
	if err := s.store.rbac.CheckWrite(s.actor, obj, fields); err != nil {
		return nil, err
	}
	if err := s.store.manager.Update(ctx, s, s.actor, obj, fields, opts); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Save writes the row without cascading, then replaces every list
// relationship. Scalar relationships are foreign key columns.
func (s *Session) Save(ctx context.Context, obj model.Object) error {
	sc, err := s.store.manager.Registry().SchemaOf(obj)
	if err != nil {
		return err
	}
	base := obj.GetBase()
	db := s.tx.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(obj).Error; err != nil {
		return fmt.Errorf("failed to save %s %q: %w", base.Type, base.Name, err)
	}

	for _, rel := range sc.Relationships {
		if !rel.List {
			continue
		}
		association := db.Model(obj).Association(sc.FieldName(rel.Name))
		related := sc.Related(obj, rel.Name)
		if len(related) == 0 {
			err = association.Clear()
		} else {
			values := make([]interface{}, len(related))
			for i, r := range related {
				values[i] = r
			}
			err = association.Replace(values...)
		}
		if err != nil {
			return fmt.Errorf("failed to save %s of %s %q: %w", rel.Name, base.Type, base.Name, err)
		}
	}
	return nil
}

// Delete runs the delete hook, then removes the row and its join rows.
func (s *Session) Delete(ctx context.Context, obj model.Object) error {
	if err := s.store.manager.Delete(ctx, s, obj); err != nil {
		return err
	}
	base := obj.GetBase()
	if err := s.tx.WithContext(ctx).Select(clause.Associations).Delete(obj).Error; err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", base.Type, base.Name, err)
	}
	return nil
}

// Log appends a changelog entry attributed to the session actor.
func (s *Session) Log(ctx context.Context, severity, content string) error {
	entry := &model.Changelog{
		Time:     time.Now().UTC().Format("2006-01-02 15:04:05.000000"),
		Severity: severity,
		Content:  content,
	}
	entry.Name = uuid.NewString()
	entry.Type = "changelog"
	if s.actor != nil {
		entry.User = s.actor.Name
	}
	if err := s.tx.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}
	return nil
}
