package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
)

const sqlitePrefix = "sqlite://"

// Config holds database connection configuration
type Config struct {
	// URL is postgres://... or sqlite://<path>
	URL string
	// Debug logs every query
	Debug bool
}

// Connect establishes a database connection.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	}

	var dialector gorm.Dialector
	switch {
	case IsSQLite(cfg.URL):
		dialector = sqlite.Open(strings.TrimPrefix(cfg.URL, sqlitePrefix))
	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		})
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redact(cfg.URL))
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// IsSQLite reports whether url selects the embedded database.
func IsSQLite(url string) bool {
	return strings.HasPrefix(url, sqlitePrefix)
}

// AutoMigrate creates the tables of every registered type and the local
// secret table. It serves SQLite databases, which the SQL migrations do
// not target.
func AutoMigrate(db *gorm.DB, registry *model.Registry) error {
	models := append(registry.Models(), &secrets.Record{})
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func redact(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at < 0 || scheme < 0 {
		return url
	}
	return url[:scheme+3] + "***" + url[at:]
}
