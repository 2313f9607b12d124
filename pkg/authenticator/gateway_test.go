package authenticator

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
	gormstore "github.com/netops-labs/enms-in-go/pkg/server/store/gorm"
)

type gatewayFixture struct {
	store   *gormstore.Store
	db      *gorm.DB
	gateway *Gateway
	hook    *test.Hook
	audit   *bytes.Buffer
}

func setupGateway(t *testing.T, hasher *Hasher, external ...Authenticator) *gatewayFixture {
	t.Helper()
	database, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "enms.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	registry := model.DefaultRegistry()
	require.NoError(t, enmsdb.AutoMigrate(database, registry))

	log, hook := test.NewNullLogger()
	engine := rbac.NewEngine([]string{"device", "link", "pool", "service"})
	opts := entity.DefaultHooks()
	if hasher != nil {
		opts = append(opts, entity.WithHasher(hasher))
	}
	manager := entity.NewManager(registry, engine, log, opts...)
	st := gormstore.NewStore(database, manager, engine, secrets.NewMemoryStore())

	methods := NewRegistry()
	methods.Register(NewLocal(hasher))
	for _, auth := range external {
		methods.Register(auth)
	}
	require.NoError(t, methods.Enable("database"))
	for _, auth := range external {
		require.NoError(t, methods.Enable(auth.Name()))
	}

	var buf bytes.Buffer
	auditLog := audit.NewLogger(log)
	auditLog.SetWriter(&buf)

	return &gatewayFixture{
		store:   st,
		db:      database,
		gateway: NewGateway(methods, "database", auditLog, log),
		hook:    hook,
		audit:   &buf,
	}
}

func (f *gatewayFixture) createUser(t *testing.T, fields map[string]interface{}) {
	t.Helper()
	err := f.store.Transaction(context.Background(), nil, func(s store.Session) error {
		_, err := s.Factory(context.Background(), "user", fields, entity.UpdateOptions{})
		return err
	})
	require.NoError(t, err)
}

func (f *gatewayFixture) authenticate(t *testing.T, creds Credentials) (*model.User, error) {
	t.Helper()
	var user *model.User
	err := f.store.Transaction(context.Background(), nil, func(s store.Session) error {
		var err error
		user, err = f.gateway.Authenticate(context.Background(), s, creds)
		return err
	})
	return user, err
}

func (f *gatewayFixture) userCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.User{}).Count(&count).Error)
	return count
}

func TestGatewayLocalPassword(t *testing.T) {
	f := setupGateway(t, nil)
	f.createUser(t, map[string]interface{}{"name": "admin", "password": "admin", "is_admin": true})

	user, err := f.authenticate(t, Credentials{Username: "admin", Password: "admin", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Name)
	assert.True(t, user.IsAdmin)
	assert.Contains(t, f.audit.String(), "admin successfully authenticated with method database")

	_, err = f.authenticate(t, Credentials{Username: "admin", Password: "hunter2"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, logrus.WarnLevel, f.hook.LastEntry().Level)
	assert.NotContains(t, f.hook.LastEntry().Message, "hunter2")
	assert.NotContains(t, f.audit.String(), "hunter2")
}

func TestGatewayHashedPassword(t *testing.T) {
	hasher := NewHasher(testParams)
	f := setupGateway(t, hasher)
	f.createUser(t, map[string]interface{}{"name": "admin", "password": "s3cret"})

	_, err := f.authenticate(t, Credentials{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	_, err = f.authenticate(t, Credentials{Username: "admin", Password: "S3cret"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestGatewayUnknownLocalUser(t *testing.T) {
	f := setupGateway(t, nil)

	user, err := f.authenticate(t, Credentials{Username: "bob", Password: "x", ClientIP: "10.0.0.2"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Nil(t, user)
	assert.Zero(t, f.userCount(t), "no user must be created")
	assert.Contains(t, f.audit.String(), "bob failed to authenticate with method database")
}

func TestGatewayProvisionsExternalUser(t *testing.T) {
	var seen *model.User
	ldap := NewFunc("ldap", func(ctx context.Context, user *model.User, username, password string) (Attributes, error) {
		seen = user
		if password != "ldap-pass" {
			return nil, nil
		}
		return Attributes{"email": "alice@example.com"}, nil
	})
	f := setupGateway(t, nil, ldap)

	user, err := f.authenticate(t, Credentials{Username: "alice", Password: "ldap-pass", Method: "ldap"})
	require.NoError(t, err)
	assert.Nil(t, seen)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "ldap", user.Authentication)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.EqualValues(t, 1, f.userCount(t))

	// The user's own method applies when no hint is given.
	again, err := f.authenticate(t, Credentials{Username: "alice", Password: "ldap-pass"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Name)
	assert.EqualValues(t, 1, f.userCount(t))

	_, err = f.authenticate(t, Credentials{Username: "carol", Password: "nope", Method: "ldap"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.EqualValues(t, 1, f.userCount(t))
}

func TestGatewayRejects(t *testing.T) {
	broken := NewFunc("radius", func(ctx context.Context, user *model.User, username, password string) (Attributes, error) {
		return nil, errors.New("radius server unreachable")
	})
	f := setupGateway(t, nil, broken)
	f.gateway.Registry().Register(&mockAuthenticator{name: "tacacs"})

	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty username", Credentials{Password: "x"}},
		{"empty password", Credentials{Username: "admin"}},
		{"unknown method", Credentials{Username: "admin", Password: "x", Method: "kerberos"}},
		{"installed but disabled", Credentials{Username: "admin", Password: "x", Method: "tacacs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.authenticate(t, tt.creds)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
		})
	}

	t.Run("method failure", func(t *testing.T) {
		_, err := f.authenticate(t, Credentials{Username: "admin", Password: "x", Method: "radius"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAuthenticationFailed)
		assert.Contains(t, err.Error(), "radius server unreachable")
	})
}
