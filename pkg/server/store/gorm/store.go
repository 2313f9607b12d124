package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// Ensure Store implements store.Store
var _ store.Store = (*Store)(nil)

// txBinder is a secret store that can join a database transaction.
type txBinder interface {
	WithDB(db *gorm.DB) secrets.Store
}

// Store implements store.Store using GORM
type Store struct {
	db      *gorm.DB
	manager *entity.Manager
	rbac    *rbac.Engine
	secrets secrets.Store
}

// NewStore creates a new Store. Private properties go to secretStore,
// joined to each transaction when it is the local store.
func NewStore(db *gorm.DB, manager *entity.Manager, engine *rbac.Engine, secretStore secrets.Store) *Store {
	return &Store{
		db:      db,
		manager: manager,
		rbac:    engine,
		secrets: secretStore,
	}
}

// Transaction runs fn in a database transaction. gorm rolls back when fn
// returns an error or panics.
func (s *Store) Transaction(ctx context.Context, actor *model.User, fn func(store.Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.session(tx, actor))
	})
}

func (s *Store) session(tx *gorm.DB, actor *model.User) *Session {
	secretStore := s.secrets
	if binder, ok := secretStore.(txBinder); ok {
		secretStore = binder.WithDB(tx)
	}
	return &Session{
		tx:      tx,
		actor:   actor,
		store:   s,
		secrets: secretStore,
	}
}
