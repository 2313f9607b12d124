package identity

import (
	"context"
	"net"
	"strings"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key for Identity.
	Key ContextKey = "identity"
)

// Source tells how the caller was identified.
type Source string

const (
	SourceNone    Source = ""
	SourceSession Source = "session"
	SourceBasic   Source = "basic"
	SourceBearer  Source = "bearer"
)

// Identity represents the caller of one request. User is nil for
// anonymous callers.
type Identity struct {
	User     *model.User
	Source   Source
	RemoteIP net.IP

	// Request classification
	API      bool
	Endpoint string
}

// Anonymous returns an identity without a user.
func Anonymous() *Identity {
	return &Identity{}
}

// ForUser creates an identity for user found through source.
func ForUser(user *model.User, source Source) *Identity {
	return &Identity{User: user, Source: source}
}

// WithRemoteIP sets the remote IP address.
func (i *Identity) WithRemoteIP(ip net.IP) *Identity {
	i.RemoteIP = ip
	return i
}

// WithEndpoint records the request classification.
func (i *Identity) WithEndpoint(endpoint string, api bool) *Identity {
	i.Endpoint = endpoint
	i.API = api
	return i
}

// IsAuthenticated reports whether a user was identified.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.User != nil
}

// IsAdmin reports whether the caller is an administrator.
func (i *Identity) IsAdmin() bool {
	return i.IsAuthenticated() && i.User.IsAdmin
}

// Name returns the user name, or "Unknown" for anonymous callers.
func (i *Identity) Name() string {
	if !i.IsAuthenticated() {
		return "Unknown"
	}
	return i.User.Name
}

// Client returns the remote address as text.
func (i *Identity) Client() string {
	if i == nil || i.RemoteIP == nil {
		return ""
	}
	return i.RemoteIP.String()
}

// ParseRemoteAddr extracts the IP from a host:port or bare address.
func ParseRemoteAddr(addr string) net.IP {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	return net.ParseIP(strings.Trim(host, "[]"))
}

// Get retrieves Identity from context.
func Get(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(Key).(*Identity)
	return id, ok
}

// User returns the user of the context's identity, or nil.
func User(ctx context.Context) *model.User {
	if id, ok := Get(ctx); ok && id.IsAuthenticated() {
		return id.User
	}
	return nil
}

// Set stores Identity in context.
func Set(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, Key, id)
}
