package gorm

import (
	"context"
)

// CheckConnectivity verifies database connectivity
func (s *Store) CheckConnectivity(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("SELECT 1").Error
}
