package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

func TestConnect(t *testing.T) {
	t.Run("requires a URL", func(t *testing.T) {
		_, err := Connect(Config{})
		assert.Error(t, err)
	})

	t.Run("rejects unknown schemes", func(t *testing.T) {
		_, err := Connect(Config{URL: "mysql://root:hunter2@db/enms"})
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "hunter2")
	})

	t.Run("opens sqlite and migrates", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "enms.db")
		database, err := Connect(Config{URL: "sqlite://" + path})
		require.NoError(t, err)

		registry := model.DefaultRegistry()
		require.NoError(t, AutoMigrate(database, registry))
		for _, table := range []string{"users", "groups", "pools", "devices", "links", "services", "changelogs", "secrets", "user_groups", "pool_devices"} {
			assert.True(t, database.Migrator().HasTable(table), table)
		}
	})
}

func TestMigrationFiles(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20240101000001_create_entities.up.sql",
		"20240101000002_create_associations.up.sql",
		"20240101000003_create_secrets.up.sql",
	}, files)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/enms", redact("postgres://enms:secret@db:5432/enms"))
	assert.Equal(t, "sqlite:///tmp/x.db", redact("sqlite:///tmp/x.db"))
}

func TestWithMigrationsTable(t *testing.T) {
	assert.Equal(t, "postgres://h/db?x-migrations-table=enms_schema_migrations", withMigrationsTable("postgres://h/db"))
	assert.Equal(t, "postgres://h/db?sslmode=disable&x-migrations-table=enms_schema_migrations", withMigrationsTable("postgres://h/db?sslmode=disable"))
}
