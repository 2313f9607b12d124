package rbac

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// Decision is the outcome of an endpoint check.
type Decision int

const (
	Allow Decision = iota
	NotFound
	Unauthenticated
	Forbidden
)

// Table maps {method}_requests to endpoint authorization levels. An
// endpoint missing from the table does not exist.
type Table struct {
	GetRequests    map[string]Level `yaml:"get_requests"`
	PostRequests   map[string]Level `yaml:"post_requests"`
	DeleteRequests map[string]Level `yaml:"delete_requests"`
}

// ParseTable reads a table from YAML (or JSON) data.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rbac table: %w", err)
	}
	return &t, nil
}

// LoadTable reads a table from a file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rbac table %s: %w", path, err)
	}
	return ParseTable(data)
}

//go:embed default.yml
var defaultTable []byte

// DefaultTable returns the table shipped with the server.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTableOrDefault reads path, falling back to the shipped table when
// the file does not exist.
func LoadTableOrDefault(path string, log *logrus.Logger) (*Table, error) {
	t, err := LoadTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Warn("rbac table not found, using the default table")
		return DefaultTable(), nil
	}
	return t, err
}

func (t *Table) requests(method string) map[string]Level {
	switch strings.ToLower(method) {
	case "get":
		return t.GetRequests
	case "post":
		return t.PostRequests
	case "delete":
		return t.DeleteRequests
	default:
		return nil
	}
}

// Lookup returns the level required for method on endpoint.
func (t *Table) Lookup(method, endpoint string) (Level, bool) {
	level, ok := t.requests(method)[endpoint]
	return level, ok
}

// Decide checks user (nil when anonymous) against the table. api selects
// the answer for a missing identity: Unauthenticated for API calls,
// Forbidden for pages.
func (t *Table) Decide(user *model.User, method, endpoint string, api bool) Decision {
	level, ok := t.Lookup(method, endpoint)
	if !ok {
		return NotFound
	}
	if level == LevelNone {
		return Allow
	}
	if user == nil {
		if api {
			return Unauthenticated
		}
		return Forbidden
	}
	if user.IsAdmin {
		return Allow
	}
	if level == LevelAdmin || !user.CanRequest(method, endpoint) {
		return Forbidden
	}
	return Allow
}

// TableHolder shares the current table between requests and swaps it
// atomically on reload.
type TableHolder struct {
	table    atomic.Pointer[Table]
	onReload func(err error)
}

func NewTableHolder(t *Table) *TableHolder {
	h := &TableHolder{}
	h.table.Store(t)
	return h
}

func (h *TableHolder) Load() *Table {
	return h.table.Load()
}

func (h *TableHolder) Store(t *Table) {
	h.table.Store(t)
}

// OnReload registers fn to be called after every reload attempt made by
// Watch. It must be set before Watch starts.
func (h *TableHolder) OnReload(fn func(err error)) {
	h.onReload = fn
}

func (h *TableHolder) reloaded(err error) {
	if h.onReload != nil {
		h.onReload(err)
	}
}

// Watch reloads the table whenever path is written, until ctx is done. A
// table that fails to parse is logged and the previous one kept.
func (h *TableHolder) Watch(ctx context.Context, path string, log *logrus.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	log.WithField("path", path).Info("watching rbac table")

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			table, err := LoadTable(path)
			h.reloaded(err)
			if err != nil {
				log.WithError(err).Error("keeping previous rbac table")
				continue
			}
			h.Store(table)
			log.WithField("path", path).Info("rbac table reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("rbac table watcher error")
		}
	}
}
