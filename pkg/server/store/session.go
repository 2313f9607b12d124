package store

import (
	"context"
	"errors"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
)

// ErrNotFound is returned when an entity does not exist or is not visible
// to the actor.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the actor may not perform an operation.
var ErrForbidden = errors.New("operation not allowed")

// Session is one transactional scope bound to an actor. A nil actor is
// the system itself and sees everything.
type Session interface {
	entity.Backend

	Actor() *model.User

	// WithActor returns a session on the same transaction for actor.
	WithActor(actor *model.User) Session

	// Manager returns the entity manager used by the session.
	Manager() *entity.Manager

	// Fetch returns one visible entity by id or name.
	Fetch(ctx context.Context, entityType string, ref interface{}) (model.Object, error)

	// FetchAll returns the visible entities of entityType whose columns
	// match conditions.
	FetchAll(ctx context.Context, entityType string, conditions map[string]interface{}) ([]model.Object, error)

	// FetchUser loads a user with its groups and pools, ignoring
	// visibility.
	FetchUser(ctx context.Context, name string) (*model.User, error)
	FetchUserByID(ctx context.Context, id uint) (*model.User, error)

	// Save writes the entity row and its list relationships.
	Save(ctx context.Context, obj model.Object) error

	// Log appends a changelog entry.
	Log(ctx context.Context, severity, content string) error
}

// Store opens transactional sessions.
type Store interface {
	HealthStore

	// Transaction runs fn in one database transaction, committed only
	// when fn returns nil.
	Transaction(ctx context.Context, actor *model.User, fn func(Session) error) error
}
