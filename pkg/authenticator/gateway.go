package authenticator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// ErrAuthenticationFailed is the only error callers see for rejected
// credentials. The reason is logged, never returned.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Credentials are the values supplied by a login form or Basic header.
type Credentials struct {
	Username string
	Password string
	Method   string // optional hint
	ClientIP string
}

// Gateway resolves credentials to a user, provisioning users that an
// external method vouches for.
type Gateway struct {
	registry      *Registry
	defaultMethod string
	audit         *audit.Logger
	log           *logrus.Logger
}

// NewGateway creates a gateway over the methods in registry.
func NewGateway(registry *Registry, defaultMethod string, auditLog *audit.Logger, log *logrus.Logger) *Gateway {
	if log == nil {
		log = logrus.New()
	}
	return &Gateway{
		registry:      registry,
		defaultMethod: defaultMethod,
		audit:         auditLog,
		log:           log,
	}
}

// Registry returns the methods known to the gateway.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Authenticate checks creds inside session. Users created on first login
// are written through the session and persist with its transaction.
func (g *Gateway) Authenticate(ctx context.Context, session store.Session, creds Credentials) (*model.User, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, g.reject(ctx, creds, "", "missing credentials")
	}

	user, err := session.FetchUser(ctx, creds.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		user = nil
	}

	method := creds.Method
	if method == "" && user != nil {
		method = user.Authentication
	}
	if method == "" {
		method = g.defaultMethod
	}
	if !g.registry.IsEnabled(method) {
		return nil, g.reject(ctx, creds, method, "method not enabled")
	}
	auth, ok := g.registry.Get(method)
	if !ok {
		return nil, g.reject(ctx, creds, method, "method not installed")
	}

	attrs, err := auth.Authenticate(ctx, Input{
		Session:  session,
		User:     user,
		Username: creds.Username,
		Password: creds.Password,
		ClientIP: creds.ClientIP,
	})
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return nil, g.reject(ctx, creds, method, err.Error())
	case err != nil:
		return nil, fmt.Errorf("authentication method %s: %w", method, err)
	case attrs == nil:
		return nil, g.reject(ctx, creds, method, "rejected by method")
	}

	if user == nil {
		user, err = g.provision(ctx, session, creds.Username, method, attrs)
		if err != nil {
			return nil, err
		}
	}

	g.audit.Log(ctx, audit.AuthnEvent{
		User:     user.Name,
		ClientIP: creds.ClientIP,
		Method:   method,
		Success:  true,
	})
	return user, nil
}

func (g *Gateway) provision(ctx context.Context, session store.Session, username, method string, attrs Attributes) (*model.User, error) {
	fields := make(map[string]interface{}, len(attrs)+2)
	for key, value := range attrs {
		fields[key] = value
	}
	fields["name"] = username
	fields["authentication"] = method

	obj, err := session.Factory(ctx, "user", fields, entity.UpdateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to provision user %s: %w", username, err)
	}
	g.log.WithFields(logrus.Fields{
		"user":   username,
		"method": method,
	}).Info("provisioned user on first login")
	return obj.(*model.User), nil
}

func (g *Gateway) reject(ctx context.Context, creds Credentials, method, reason string) error {
	g.log.WithFields(logrus.Fields{
		"user":   creds.Username,
		"method": method,
		"client": creds.ClientIP,
	}).Warnf("authentication failed: %s", reason)
	g.audit.Log(ctx, audit.AuthnEvent{
		User:     creds.Username,
		ClientIP: creds.ClientIP,
		Method:   method,
		Reason:   reason,
	})
	return ErrAuthenticationFailed
}
