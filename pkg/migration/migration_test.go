package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
	gormstore "github.com/netops-labs/enms-in-go/pkg/server/store/gorm"
)

func newStore(t *testing.T) *gormstore.Store {
	t.Helper()
	database, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "enms.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	registry := model.DefaultRegistry()
	require.NoError(t, enmsdb.AutoMigrate(database, registry))

	log, _ := test.NewNullLogger()
	engine := rbac.NewEngine([]string{"device", "link", "pool", "service"})
	manager := entity.NewManager(registry, engine, log, entity.DefaultHooks()...)
	return gormstore.NewStore(database, manager, engine, secrets.NewMemoryStore())
}

func run(t *testing.T, st *gormstore.Store, fn func(ctx context.Context, s store.Session)) {
	t.Helper()
	require.NoError(t, st.Transaction(context.Background(), nil, func(s store.Session) error {
		fn(context.Background(), s)
		return nil
	}))
}

func seed(t *testing.T, st *gormstore.Store) {
	run(t, st, func(ctx context.Context, s store.Session) {
		for _, item := range []struct {
			entityType string
			fields     map[string]interface{}
		}{
			{"device", map[string]interface{}{"name": "R1", "vendor": "Cisco", "port": 22, "password": "cisco"}},
			{"device", map[string]interface{}{"name": "R2", "vendor": "Juniper"}},
			{"link", map[string]interface{}{"name": "R1-R2", "source": "R1", "destination": "R2"}},
			{"pool", map[string]interface{}{"name": "core", "devices": []interface{}{"R1", "R2"}, "links": []interface{}{"R1-R2"}}},
		} {
			_, err := s.Factory(ctx, item.entityType, item.fields, entity.UpdateOptions{})
			require.NoError(t, err)
		}
	})
}

func TestExportImport(t *testing.T) {
	source := newStore(t)
	seed(t, source)
	m := New(t.TempDir())

	var manifest *Manifest
	run(t, source, func(ctx context.Context, s store.Session) {
		var err error
		manifest, err = m.Export(ctx, s, ExportOptions{Name: "backup", Types: []string{"device", "link", "pool"}})
		require.NoError(t, err)
	})
	assert.Len(t, manifest.Digests, 3)

	raw, err := os.ReadFile(filepath.Join(m.root, "backup", "device.yaml"))
	require.NoError(t, err)
	var devices []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(raw, &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "R1", devices[0]["name"])
	assert.NotContains(t, devices[0], "id")
	assert.NotContains(t, devices[0], "password")
	assert.NotContains(t, devices[0], "owner")
	assert.Equal(t, []interface{}{"core"}, devices[0]["pools"])

	folders, err := m.Folders()
	require.NoError(t, err)
	assert.Equal(t, []string{"backup"}, folders)

	target := newStore(t)
	run(t, target, func(ctx context.Context, s store.Session) {
		counts, err := m.Import(ctx, s, ImportOptions{Name: "backup"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"device": 2, "link": 1, "pool": 1}, counts)
	})
	run(t, target, func(ctx context.Context, s store.Session) {
		pool, err := s.Fetch(ctx, "pool", "core")
		require.NoError(t, err)
		assert.Len(t, pool.(*model.Pool).Devices, 2)
		assert.Len(t, pool.(*model.Pool).Links, 1)

		link, err := s.Fetch(ctx, "link", "R1-R2")
		require.NoError(t, err)
		require.NotNil(t, link.(*model.Link).Source)
		assert.Equal(t, "R1", link.(*model.Link).Source.Name)

		r1, err := s.Fetch(ctx, "device", "R1")
		require.NoError(t, err)
		assert.Equal(t, 22, r1.(*model.Device).Port)
	})
}

func TestExportSecrets(t *testing.T) {
	st := newStore(t)
	seed(t, st)
	m := New(t.TempDir())

	run(t, st, func(ctx context.Context, s store.Session) {
		_, err := m.Export(ctx, s, ExportOptions{Name: "full", Types: []string{"device"}, IncludeSecrets: true})
		require.NoError(t, err)
	})
	raw, err := os.ReadFile(filepath.Join(m.root, "full", "device.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "password: cisco")
}

func TestImportDetectsTampering(t *testing.T) {
	st := newStore(t)
	seed(t, st)
	m := New(t.TempDir())

	run(t, st, func(ctx context.Context, s store.Session) {
		_, err := m.Export(ctx, s, ExportOptions{Name: "backup", Types: []string{"device"}})
		require.NoError(t, err)
	})

	file := filepath.Join(m.root, "backup", "device.yaml")
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, append(raw, []byte("- name: R9\n")...), 0o600))

	run(t, newStore(t), func(ctx context.Context, s store.Session) {
		_, err := m.Import(ctx, s, ImportOptions{Name: "backup"})
		assert.ErrorIs(t, err, ErrDigestMismatch)
	})
}

func TestImportEmptiesDatabase(t *testing.T) {
	st := newStore(t)
	seed(t, st)
	m := New(t.TempDir())
	dir := filepath.Join(m.root, "fresh")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device.yaml"), []byte("- name: R9\n  vendor: Arista\n"), 0o600))

	run(t, st, func(ctx context.Context, s store.Session) {
		counts, err := m.Import(ctx, s, ImportOptions{
			Name:          "fresh",
			Types:         []string{"device", "link"},
			EmptyDatabase: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, counts["device"])

		devices, err := s.FetchAll(ctx, "device", nil)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "R9", devices[0].GetBase().Name)

		links, err := s.FetchAll(ctx, "link", nil)
		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

func TestInvalidName(t *testing.T) {
	m := New(t.TempDir())
	run(t, newStore(t), func(ctx context.Context, s store.Session) {
		_, err := m.Export(ctx, s, ExportOptions{Name: "../etc"})
		assert.Error(t, err)
		_, err = m.Import(ctx, s, ImportOptions{Name: ""})
		assert.Error(t, err)
	})
}
