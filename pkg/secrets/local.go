package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is a row of the secrets table.
type Record struct {
	Path      string `gorm:"primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "secrets"
}

var _ Store = (*LocalStore)(nil)

// LocalStore keeps encoded values in the application database.
type LocalStore struct {
	db    *gorm.DB
	codec Codec
}

func NewLocalStore(db *gorm.DB, codec Codec) *LocalStore {
	return &LocalStore{db: db, codec: codec}
}

// WithDB returns a copy bound to db, typically an open transaction.
func (s *LocalStore) WithDB(db *gorm.DB) Store {
	return &LocalStore{db: db, codec: s.codec}
}

func (s *LocalStore) Read(ctx context.Context, path string) (string, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}

	value, err := s.codec.Decrypt([]byte(path), record.Value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret %s: %w", path, err)
	}
	return string(value), nil
}

func (s *LocalStore) Write(ctx context.Context, path string, value string) error {
	packed, err := s.codec.Encrypt([]byte(path), []byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt secret %s: %w", path, err)
	}

	record := Record{Path: path, Value: packed}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to write secret %s: %w", path, err)
	}
	return nil
}
