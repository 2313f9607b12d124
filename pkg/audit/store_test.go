package audit

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

func TestStoreSave(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&model.Changelog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store := NewStore(db)
	store.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	err = store.Save(context.Background(), AuthnEvent{User: "bob", Method: "database", Reason: "unknown user"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var entries []model.Changelog
	if err := db.Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 changelog entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Time != "2024-01-02 03:04:05.000000" {
		t.Errorf("Time = %q", entry.Time)
	}
	if entry.Severity != "warning" {
		t.Errorf("Severity = %q, want warning", entry.Severity)
	}
	if entry.User != "bob" {
		t.Errorf("User = %q, want bob", entry.User)
	}
	if entry.Type != "changelog" || entry.Name == "" {
		t.Errorf("unexpected base columns %+v", entry.Base)
	}
}

func TestStoreSaveError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "changelogs"`)).
		WillReturnError(sqlmock.ErrCancelled)

	err = NewStore(db).Save(context.Background(), LoginEvent{User: "admin"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !regexp.MustCompile(`failed to save audit event login`).MatchString(err.Error()) {
		t.Errorf("unexpected error %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNilStore(t *testing.T) {
	var store *Store
	if err := store.Save(context.Background(), LoginEvent{}); err != nil {
		t.Errorf("Save() on nil store = %v", err)
	}
}
