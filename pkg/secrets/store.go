package secrets

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no value is stored at a path
var ErrNotFound = errors.New("secret not found")

// Store reads and writes private property values by path.
type Store interface {
	// Read returns ErrNotFound when nothing is stored at path.
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path string, value string) error
}

// Path builds the location of a private property: {type}/{name}/{property}.
func Path(entityType, name, property string) string {
	return strings.Join([]string{entityType, name, property}, "/")
}

// property returns the last segment of a path.
func property(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
