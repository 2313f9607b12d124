package gorm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

var noRBAC = entity.UpdateOptions{}

func setupStore(t *testing.T) (*Store, *gorm.DB) {
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
	codec, err := secrets.NewAESCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return NewStore(database, manager, engine, secrets.NewLocalStore(database, codec)), database
}

// seed creates entities as the system actor.
func seed(t *testing.T, st *Store, entities ...map[string]interface{}) {
	t.Helper()
	err := st.Transaction(context.Background(), nil, func(s store.Session) error {
		for _, fields := range entities {
			entityType := fields["type"].(string)
			if _, err := s.Factory(context.Background(), entityType, fields, noRBAC); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestFactoryCreatesAndUpdates(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	seed(t, st,
		map[string]interface{}{"type": "device", "name": "R1", "vendor": "Cisco", "port": "22", "password": "cisco"},
		map[string]interface{}{"type": "device", "name": "R2"},
		map[string]interface{}{"type": "pool", "name": "core", "devices": []interface{}{"R1", "R2"}},
	)

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		pool, err := s.Fetch(ctx, "pool", "core")
		require.NoError(t, err)
		assert.Len(t, pool.(*model.Pool).Devices, 2)

		device, err := s.Fetch(ctx, "device", "R1")
		require.NoError(t, err)
		d := device.(*model.Device)
		assert.Equal(t, 22, d.Port)
		require.Len(t, d.Pools, 1)
		assert.Equal(t, "core", d.Pools[0].Name)

		byID, err := s.Fetch(ctx, "device", float64(d.ID))
		require.NoError(t, err)
		assert.Equal(t, "R1", byID.GetBase().Name)

		password, err := s.Manager().GetField(ctx, s, device, "password")
		require.NoError(t, err)
		assert.Equal(t, "cisco", password)

		updated, err := s.Factory(ctx, "device", map[string]interface{}{"name": "R1", "vendor": "Arista"}, noRBAC)
		require.NoError(t, err)
		assert.Equal(t, d.ID, updated.GetBase().ID)
		assert.Equal(t, "Arista", updated.(*model.Device).Vendor)
		assert.Len(t, updated.(*model.Device).Pools, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestFactoryRenamesByID(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()
	seed(t, st, map[string]interface{}{"type": "service", "name": "backup"})

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		svc, err := s.Fetch(ctx, "service", "backup")
		require.NoError(t, err)
		renamed, err := s.Factory(ctx, "service", map[string]interface{}{
			"id":   float64(svc.GetBase().ID),
			"name": "nightly-backup",
		}, noRBAC)
		require.NoError(t, err)
		assert.Equal(t, svc.GetBase().ID, renamed.GetBase().ID)

		_, err = s.Fetch(ctx, "service", "backup")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionRollsBack(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		_, err := s.Factory(ctx, "device", map[string]interface{}{"name": "R1", "password": "cisco"}, noRBAC)
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	err = st.Transaction(ctx, nil, func(s store.Session) error {
		_, err := s.Fetch(ctx, "device", "R1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Secrets().Read(ctx, "device/R1/password")
		assert.ErrorIs(t, err, secrets.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestVisibility(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	seed(t, st,
		map[string]interface{}{"type": "device", "name": "R1", "vendor": "Cisco"},
		map[string]interface{}{"type": "device", "name": "R2", "vendor": "Cisco"},
		map[string]interface{}{"type": "device", "name": "R3", "vendor": "Juniper"},
		map[string]interface{}{"type": "link", "name": "R1-R2", "source": "R1", "destination": "R2"},
		map[string]interface{}{"type": "pool", "name": "core", "devices": []string{"R1", "R3"}, "links": []string{"R1-R2"}},
		map[string]interface{}{"type": "pool", "name": "edge", "devices": []string{"R2"}},
		map[string]interface{}{"type": "user", "name": "alice", "pools": []string{"core"}},
		map[string]interface{}{"type": "user", "name": "root", "is_admin": true},
		map[string]interface{}{"type": "user", "name": "nobody"},
	)

	names := func(objects []model.Object) []string {
		out := make([]string, 0, len(objects))
		for _, o := range objects {
			out = append(out, o.GetBase().Name)
		}
		return out
	}

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		alice, err := s.FetchUser(ctx, "alice")
		require.NoError(t, err)
		as := s.WithActor(alice)

		devices, err := as.FetchAll(ctx, "device", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"R1", "R3"}, names(devices))

		cisco, err := as.FetchAll(ctx, "device", map[string]interface{}{"vendor": "Cisco"})
		require.NoError(t, err)
		assert.Equal(t, []string{"R1"}, names(cisco))

		_, err = as.FetchAll(ctx, "device", map[string]interface{}{"password": "x"})
		assert.ErrorIs(t, err, store.ErrNotFound)

		pools, err := as.FetchAll(ctx, "pool", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"core"}, names(pools))

		links, err := as.FetchAll(ctx, "link", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"R1-R2"}, names(links))

		_, err = as.Fetch(ctx, "device", "R2")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = as.Objectify(ctx, "device", []interface{}{"R1", "R2"})
		assert.ErrorIs(t, err, store.ErrNotFound)

		users, err := as.FetchAll(ctx, "user", nil)
		require.NoError(t, err)
		assert.Len(t, users, 3)

		root, err := s.FetchUser(ctx, "root")
		require.NoError(t, err)
		all, err := s.WithActor(root).FetchAll(ctx, "device", nil)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		nobody, err := s.FetchUser(ctx, "nobody")
		require.NoError(t, err)
		none, err := s.WithActor(nobody).FetchAll(ctx, "device", nil)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	})
	require.NoError(t, err)
}

func TestFactoryChecksAccess(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	seed(t, st,
		map[string]interface{}{"type": "group", "name": "ops", "model_access": map[string]interface{}{"service": []string{"edit"}}},
		map[string]interface{}{"type": "user", "name": "bob", "groups": []string{"ops"}},
		map[string]interface{}{"type": "user", "name": "carol"},
	)

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		bob, err := s.FetchUser(ctx, "bob")
		require.NoError(t, err)
		svc, err := s.WithActor(bob).Factory(ctx, "service", map[string]interface{}{"name": "backup"}, noRBAC)
		require.NoError(t, err)
		assert.Equal(t, "bob", svc.GetBase().Owner)
		assert.Equal(t, datatypes.JSONMap{"edit": ",ops,"}, svc.GetBase().Access)

		carol, err := s.FetchUser(ctx, "carol")
		require.NoError(t, err)
		_, err = s.WithActor(carol).Factory(ctx, "service", map[string]interface{}{"name": "backup", "priority": 2}, noRBAC)
		var rbacErr *rbac.Error
		assert.ErrorAs(t, err, &rbacErr)

		_, err = s.WithActor(bob).Factory(ctx, "service", map[string]interface{}{"name": "backup", "priority": 2}, noRBAC)
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func TestFactoryProtectsUsers(t *testing.T) {
	st, database := setupStore(t)
	ctx := context.Background()

	seed(t, st,
		map[string]interface{}{"type": "group", "name": "ops"},
		map[string]interface{}{"type": "user", "name": "bob"},
		map[string]interface{}{"type": "user", "name": "carol"},
	)

	write := func(fields map[string]interface{}) error {
		return st.Transaction(ctx, nil, func(s store.Session) error {
			bob, err := s.FetchUser(ctx, "bob")
			require.NoError(t, err)
			entityType := fields["type"].(string)
			_, err = s.WithActor(bob).Factory(ctx, entityType, fields, noRBAC)
			return err
		})
	}

	var rbacErr *rbac.Error
	assert.ErrorAs(t, write(map[string]interface{}{"type": "user", "name": "bob", "is_admin": true}), &rbacErr)
	assert.ErrorAs(t, write(map[string]interface{}{"type": "user", "name": "bob", "groups": []string{"ops"}}), &rbacErr)
	assert.ErrorAs(t, write(map[string]interface{}{"type": "user", "name": "carol", "email": "c@x.com"}), &rbacErr)
	assert.ErrorAs(t, write(map[string]interface{}{"type": "user", "name": "mallory"}), &rbacErr)
	assert.ErrorAs(t, write(map[string]interface{}{"type": "group", "name": "ops"}), &rbacErr)
	assert.NoError(t, write(map[string]interface{}{"type": "user", "name": "bob", "email": "bob@x.com"}))

	var bob model.User
	require.NoError(t, database.Preload("Groups").Where("name = ?", "bob").First(&bob).Error)
	assert.False(t, bob.IsAdmin)
	assert.Empty(t, bob.Groups)
	assert.Equal(t, "bob@x.com", bob.Email)
	var users int64
	require.NoError(t, database.Model(&model.User{}).Count(&users).Error)
	assert.EqualValues(t, 2, users)
}

func TestDeleteRemovesLinksAndMemberships(t *testing.T) {
	st, database := setupStore(t)
	ctx := context.Background()

	seed(t, st,
		map[string]interface{}{"type": "device", "name": "R1"},
		map[string]interface{}{"type": "device", "name": "R2"},
		map[string]interface{}{"type": "link", "name": "L1", "source": "R1", "destination": "R2"},
		map[string]interface{}{"type": "link", "name": "L2", "source": "R2", "destination": "R1"},
		map[string]interface{}{"type": "pool", "name": "core", "devices": []string{"R1", "R2"}},
	)

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		r1, err := s.Fetch(ctx, "device", "R1")
		require.NoError(t, err)
		return s.Delete(ctx, r1)
	})
	require.NoError(t, err)

	var links, memberships int64
	require.NoError(t, database.Table("links").Count(&links).Error)
	require.NoError(t, database.Table("pool_devices").Count(&memberships).Error)
	assert.Zero(t, links)
	assert.Equal(t, int64(1), memberships)
}

func TestLog(t *testing.T) {
	st, database := setupStore(t)
	ctx := context.Background()
	seed(t, st, map[string]interface{}{"type": "user", "name": "admin", "is_admin": true})

	err := st.Transaction(ctx, nil, func(s store.Session) error {
		admin, err := s.FetchUser(ctx, "admin")
		require.NoError(t, err)
		return s.WithActor(admin).Log(ctx, "info", "device R1 updated")
	})
	require.NoError(t, err)

	var entry model.Changelog
	require.NoError(t, database.First(&entry).Error)
	assert.Equal(t, "admin", entry.User)
	assert.Equal(t, "info", entry.Severity)
	assert.Equal(t, "changelog", entry.Type)
	assert.NotEmpty(t, entry.Name)
}

func TestCheckConnectivity(t *testing.T) {
	st, _ := setupStore(t)
	assert.NoError(t, st.CheckConnectivity(context.Background()))

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	database, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectExec(`SELECT 1`).WillReturnError(assert.AnError)
	broken := NewStore(database, st.manager, st.rbac, secrets.NewMemoryStore())
	assert.ErrorIs(t, broken.CheckConnectivity(context.Background()), assert.AnError)
}
