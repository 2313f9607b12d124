package authenticator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// ErrInvalidCredentials is returned by authenticators that reject the
// supplied credentials. Any other error is treated as a failure of the
// method itself.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Attributes are user properties returned by a successful check. They
// are applied when the user is provisioned on first login.
type Attributes map[string]interface{}

// Authenticator defines the interface for all credential methods
type Authenticator interface {
	// Name returns the method name (e.g., "database", "oauth2")
	Name() string

	// Authenticate returns non-nil attributes on success. A nil result
	// with a nil error is a rejection.
	Authenticate(ctx context.Context, input Input) (Attributes, error)
}

// Input contains the input for authentication
type Input struct {
	Session  store.Session
	User     *model.User // nil when no local user has this name
	Username string
	Password string
	ClientIP string
}

// CheckFunc is the signature of pluggable credential functions.
type CheckFunc func(ctx context.Context, user *model.User, username, password string) (Attributes, error)

// Func adapts a CheckFunc to the Authenticator interface.
type Func struct {
	name string
	fn   CheckFunc
}

// NewFunc wraps fn as the method called name.
func NewFunc(name string, fn CheckFunc) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string {
	return f.name
}

func (f *Func) Authenticate(ctx context.Context, input Input) (Attributes, error) {
	return f.fn(ctx, input.User, input.Username, input.Password)
}

// Registry holds all registered authenticators
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]Authenticator
	enabled        map[string]bool
}

// NewRegistry creates a new authenticator registry
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]Authenticator),
		enabled:        make(map[string]bool),
	}
}

// Register adds an authenticator to the registry
func (r *Registry) Register(auth Authenticator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticators[auth.Name()] = auth
}

// Enable enables an authenticator by name
func (r *Registry) Enable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.authenticators[name]; !ok {
		return fmt.Errorf("authenticator %q not found", name)
	}
	r.enabled[name] = true
	return nil
}

// EnableAll enables every named method, failing on the first unknown one.
func (r *Registry) EnableAll(names []string) error {
	for _, name := range names {
		if err := r.Enable(name); err != nil {
			return err
		}
	}
	return nil
}

// Disable disables an authenticator by name
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.enabled, name)
}

// Get returns an authenticator by name
func (r *Registry) Get(name string) (Authenticator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	auth, ok := r.authenticators[name]
	return auth, ok
}

// IsEnabled checks if an authenticator is enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Installed returns all installed authenticator names, sorted
func (r *Registry) Installed() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enabled returns all enabled authenticator names, sorted
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.enabled))
	for name := range r.enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
