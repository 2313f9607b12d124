package rbac

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

const tableYAML = `
get_requests:
  /login: none
  /dashboard: access
  /table/device: access
  /administration: admin
  /rest/instance: access
post_requests:
  /update/device: access
  /rest/migrate: admin
delete_requests:
  /rest/instance: access
`

func userWith(requests map[string][]string) *model.User {
	u := &model.User{Requests: datatypes.JSONMap{}}
	u.Name = "bob"
	for method, endpoints := range requests {
		u.Requests[method] = endpoints
	}
	return u
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)

	level, ok := table.Lookup("GET", "/administration")
	require.True(t, ok)
	assert.Equal(t, LevelAdmin, level)

	level, ok = table.Lookup("post", "/update/device")
	require.True(t, ok)
	assert.Equal(t, LevelAccess, level)

	_, ok = table.Lookup("put", "/update/device")
	assert.False(t, ok)

	_, err = ParseTable([]byte("get_requests:\n  /x: superuser\n"))
	assert.Error(t, err)
}

func TestDecide(t *testing.T) {
	table, err := ParseTable([]byte(tableYAML))
	require.NoError(t, err)

	admin := userWith(nil)
	admin.IsAdmin = true
	bob := userWith(map[string][]string{
		"get":  {"/dashboard", "/rest/instance"},
		"post": {"/update/device"},
	})

	tests := []struct {
		name     string
		user     *model.User
		method   string
		endpoint string
		api      bool
		expected Decision
	}{
		{"unknown endpoint", bob, "GET", "/nowhere", false, NotFound},
		{"unknown method", bob, "PUT", "/dashboard", false, NotFound},
		{"open endpoint anonymous", nil, "GET", "/login", false, Allow},
		{"anonymous page", nil, "GET", "/dashboard", false, Forbidden},
		{"anonymous api", nil, "GET", "/rest/instance", true, Unauthenticated},
		{"granted endpoint", bob, "GET", "/dashboard", false, Allow},
		{"granted post", bob, "POST", "/update/device", false, Allow},
		{"endpoint not granted", bob, "GET", "/table/device", false, Forbidden},
		{"admin level endpoint", bob, "GET", "/administration", false, Forbidden},
		{"admin user on admin endpoint", admin, "GET", "/administration", false, Allow},
		{"admin api endpoint", bob, "POST", "/rest/migrate", true, Forbidden},
		{"admin user anywhere", admin, "DELETE", "/rest/instance", true, Allow},
		{"method not granted", bob, "DELETE", "/rest/instance", true, Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, table.Decide(tt.user, tt.method, tt.endpoint, tt.api))
		})
	}
}

func TestTableHolderWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rbac.yml")
	require.NoError(t, os.WriteFile(path, []byte(tableYAML), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)
	holder := NewTableHolder(table)

	log, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- holder.Watch(ctx, path, log) }()

	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "watching rbac table" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// An invalid table is ignored.
	require.NoError(t, os.WriteFile(path, []byte("get_requests: [\n"), 0o600))
	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "keeping previous rbac table" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	_, ok := holder.Load().Lookup("GET", "/dashboard")
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("get_requests:\n  /dashboard: admin\n"), 0o600))
	require.Eventually(t, func() bool {
		level, ok := holder.Load().Lookup("GET", "/dashboard")
		return ok && level == LevelAdmin
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestLoadTableOrDefault(t *testing.T) {
	log, hook := test.NewNullLogger()

	table, err := LoadTableOrDefault(filepath.Join(t.TempDir(), "missing.yml"), log)
	require.NoError(t, err)
	level, ok := table.Lookup("GET", "/rest/is_alive")
	assert.True(t, ok)
	assert.Equal(t, LevelNone, level)
	level, ok = table.Lookup("POST", "/migration_import")
	assert.True(t, ok)
	assert.Equal(t, LevelAdmin, level)
	require.Len(t, hook.AllEntries(), 1)

	path := filepath.Join(t.TempDir(), "rbac.yml")
	require.NoError(t, os.WriteFile(path, []byte("get_requests: [\n"), 0o600))
	_, err = LoadTableOrDefault(path, log)
	assert.Error(t, err)
}
