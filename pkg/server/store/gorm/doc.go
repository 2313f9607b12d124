// Package gorm provides the GORM-based implementation of the store
// interfaces defined in pkg/server/store.
package gorm
