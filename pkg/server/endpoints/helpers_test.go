package endpoints

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netops-labs/enms-in-go/pkg/config"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

type testServer struct {
	*server.Server
	hook          *test.Hook
	audit         *bytes.Buffer
	migrationRoot string
}

// newTestServer assembles a server on a fresh SQLite database with the
// default endpoint table, seeded with:
//
//	admin/admin     administrator
//	bob/bob         member of operators, which may reach devices and the API
//	eve/eve         no group
//	r1, r2          devices, r1 in pool core
//	core            pool of bob, holding r1
//	backup          service targeting r1, created by bob
//	nightly         service targeting r1, created by the system
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(
		sqlite.Open(filepath.Join(dir, "enms.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.RBACPath = filepath.Join(dir, "rbac.yml")
	cfg.HashUserPasswords = false

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	var buf bytes.Buffer

	s, err := server.New(t.Context(), server.Options{
		Config:        cfg,
		Log:           log,
		DB:            db,
		SecretKey:     testSecretKey,
		DataKey:       testSecretKey,
		MigrationRoot: filepath.Join(dir, "migrations"),
		AuditOutput:   &buf,
	})
	require.NoError(t, err)
	RegisterAll(s)

	ts := &testServer{
		Server:        s,
		hook:          hook,
		audit:         &buf,
		migrationRoot: filepath.Join(dir, "migrations"),
	}
	ts.seed(t)
	hook.Reset()
	buf.Reset()
	return ts
}

func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	ctx := t.Context()
	err := ts.Store.Transaction(ctx, nil, func(s store.Session) error {
		if _, err := s.Factory(ctx, "group", map[string]interface{}{
			"name": "operators",
			"endpoints": map[string]interface{}{
				"get":    []interface{}{"/dashboard", "/device_table", "/parameterized_form", "/rest/instance", "/rest/query", "/rest/token", "/rest/result"},
				"post":   []interface{}{"/get", "/update", "/delete_instance", "/duplicate", "/run_service", "/rest/instance", "/rest/run_service"},
				"delete": []interface{}{"/rest/instance"},
			},
		}, entity.UpdateOptions{}); err != nil {
			return err
		}
		for _, fields := range []map[string]interface{}{
			{"name": "admin", "password": "admin", "is_admin": true},
			{"name": "bob", "password": "bob", "groups": []string{"operators"}},
			{"name": "eve", "password": "eve"},
		} {
			if _, err := s.Factory(ctx, "user", fields, entity.UpdateOptions{}); err != nil {
				return err
			}
		}
		if _, err := s.Factory(ctx, "device", map[string]interface{}{
			"name":       "r1",
			"ip_address": "10.0.0.1",
			"password":   "s3cret",
		}, entity.UpdateOptions{}); err != nil {
			return err
		}
		if _, err := s.Factory(ctx, "device", map[string]interface{}{"name": "r2"}, entity.UpdateOptions{}); err != nil {
			return err
		}
		if _, err := s.Factory(ctx, "pool", map[string]interface{}{
			"name":    "core",
			"devices": []interface{}{"r1"},
			"users":   []interface{}{"bob"},
		}, entity.UpdateOptions{}); err != nil {
			return err
		}
		_, err := s.Factory(ctx, "service", map[string]interface{}{
			"name":    "nightly",
			"devices": []interface{}{"r1"},
		}, entity.UpdateOptions{})
		return err
	})
	require.NoError(t, err)

	err = ts.Store.Transaction(ctx, nil, func(s store.Session) error {
		bob, err := s.FetchUser(ctx, "bob")
		if err != nil {
			return err
		}
		_, err = s.WithActor(bob).Factory(ctx, "service", map[string]interface{}{
			"name":    "backup",
			"devices": []interface{}{"r1"},
			"parameterized_form": strings.Join([]string{
				"- name: retries",
				"  type: integer",
				"  required: true",
				"  min: 0",
				"  max: 5",
			}, "\n"),
		}, entity.UpdateOptions{})
		return err
	})
	require.NoError(t, err)
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

// as sends a request authenticated with basic credentials username/username.
func (ts *testServer) as(username, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if username != "" {
		req.SetBasicAuth(username, username)
	}
	return ts.do(req)
}

func (ts *testServer) count(t *testing.T, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, ts.DB.Model(value).Count(&n).Error)
	return n
}

func (ts *testServer) device(t *testing.T, name string) *model.Device {
	t.Helper()
	var d model.Device
	require.NoError(t, ts.DB.Where("name = ?", name).First(&d).Error)
	return &d
}

func (ts *testServer) service(t *testing.T, name string) *model.Service {
	t.Helper()
	var svc model.Service
	require.NoError(t, ts.DB.Where("name = ?", name).First(&svc).Error)
	return &svc
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
