package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// ManifestFile lists the digests of the files of a migration.
const ManifestFile = "manifest.json"

// DefaultTypes are exported and imported when no list is given, in
// import order.
var DefaultTypes = []string{"user", "group", "device", "link", "pool", "service"}

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ErrDigestMismatch is returned when a file no longer matches its manifest.
var ErrDigestMismatch = errors.New("migration file digest mismatch")

// Manifest records what a migration folder contains.
type Manifest struct {
	Name    string            `json:"name"`
	Created string            `json:"created"`
	Types   []string          `json:"types"`
	Digests map[string]string `json:"digests"`
}

// ExportOptions select the content of an export.
type ExportOptions struct {
	Name  string
	Types []string
	// IncludeSecrets writes private properties in clear text.
	IncludeSecrets bool
}

// ImportOptions control an import.
type ImportOptions struct {
	Name  string
	Types []string
	// EmptyDatabase deletes the existing entities of the imported types,
	// except the importing user, before loading.
	EmptyDatabase bool
}

// Migrator writes and reads migration folders under a root directory.
type Migrator struct {
	root string
	now  func() time.Time
}

func New(root string) *Migrator {
	return &Migrator{root: root, now: time.Now}
}

// Folders lists the existing migrations.
func (m *Migrator) Folders() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Migrator) folder(name string) (string, error) {
	if !validName.MatchString(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid migration name %q", name)
	}
	return filepath.Join(m.root, name), nil
}

func typesOrDefault(types []string) []string {
	if len(types) == 0 {
		return DefaultTypes
	}
	return types
}

// Export writes one YAML file per type with the visible entities of the
// session's actor, then the manifest.
func (m *Migrator) Export(ctx context.Context, session store.Session, opts ExportOptions) (*Manifest, error) {
	dir, err := m.folder(opts.Name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migration folder: %w", err)
	}

	manifest := &Manifest{
		Name:    opts.Name,
		Created: m.now().UTC().Format(time.RFC3339),
		Types:   typesOrDefault(opts.Types),
		Digests: map[string]string{},
	}
	for _, entityType := range manifest.Types {
		objects, err := session.FetchAll(ctx, entityType, nil)
		if err != nil {
			return nil, err
		}
		records := make([]map[string]interface{}, 0, len(objects))
		for _, obj := range objects {
			record, err := session.Manager().ToDict(ctx, session, obj, entity.DictOptions{
				Export:        true,
				Exclude:       []string{"id"},
				RevealSecrets: opts.IncludeSecrets,
			})
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}

		data, err := yaml.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", entityType, err)
		}
		file := entityType + ".yaml"
		if err := os.WriteFile(filepath.Join(dir, file), data, 0o600); err != nil {
			return nil, err
		}
		if manifest.Digests[file], err = digest(records); err != nil {
			return nil, err
		}
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), raw, 0o600); err != nil {
		return nil, err
	}
	if err := session.Log(ctx, "info", fmt.Sprintf("Migration export '%s' (%v)", opts.Name, manifest.Types)); err != nil {
		return nil, err
	}
	return manifest, nil
}

// Import loads a migration folder. Entities are created first without
// relationships, which are then set in a second pass so references
// between types resolve whatever the file order. Files listed in a
// manifest must match their digest.
func (m *Migrator) Import(ctx context.Context, session store.Session, opts ImportOptions) (map[string]int, error) {
	dir, err := m.folder(opts.Name)
	if err != nil {
		return nil, err
	}
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	types := opts.Types
	if len(types) == 0 && manifest != nil {
		types = manifest.Types
	}
	types = typesOrDefault(types)

	registry := session.Manager().Registry()
	loaded := map[string][]map[string]interface{}{}
	for _, entityType := range types {
		if _, err := registry.Lookup(entityType); err != nil {
			return nil, err
		}
		records, err := readRecords(dir, entityType, manifest)
		if err != nil {
			return nil, err
		}
		loaded[entityType] = records
	}

	if opts.EmptyDatabase {
		if err := empty(ctx, session, types); err != nil {
			return nil, err
		}
	}

	counts := map[string]int{}
	for _, entityType := range types {
		schema, _ := registry.Lookup(entityType)
		for _, record := range loaded[entityType] {
			fields := map[string]interface{}{}
			for key, value := range record {
				if _, isRelation := schema.Relationship(key); !isRelation {
					fields[key] = value
				}
			}
			if _, err := session.Factory(ctx, entityType, fields, entity.UpdateOptions{}); err != nil {
				return nil, fmt.Errorf("failed to import %s %v: %w", entityType, record["name"], err)
			}
			counts[entityType]++
		}
	}
	for _, entityType := range types {
		schema, _ := registry.Lookup(entityType)
		for _, record := range loaded[entityType] {
			fields := map[string]interface{}{"name": record["name"]}
			for _, rel := range schema.Relationships {
				if value, ok := record[rel.Name]; ok {
					fields[rel.Name] = value
				}
			}
			if len(fields) == 1 {
				continue
			}
			if _, err := session.Factory(ctx, entityType, fields, entity.UpdateOptions{}); err != nil {
				return nil, fmt.Errorf("failed to link %s %v: %w", entityType, record["name"], err)
			}
		}
	}

	if err := session.Log(ctx, "info", fmt.Sprintf("Migration import '%s' (%v)", opts.Name, types)); err != nil {
		return nil, err
	}
	return counts, nil
}

func empty(ctx context.Context, session store.Session, types []string) error {
	var keep uint
	if actor := session.Actor(); actor != nil {
		keep = actor.ID
	}
	for i := len(types) - 1; i >= 0; i-- {
		objects, err := session.FetchAll(ctx, types[i], nil)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			if _, isUser := obj.(*model.User); isUser && obj.GetBase().ID == keep {
				continue
			}
			if err := session.Delete(ctx, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

func readManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &manifest, nil
}

func readRecords(dir, entityType string, manifest *Manifest) ([]map[string]interface{}, error) {
	file := entityType + ".yaml"
	data, err := os.ReadFile(filepath.Join(dir, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []map[string]interface{}
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", file, err)
	}
	if manifest != nil {
		if expected, ok := manifest.Digests[file]; ok {
			actual, err := digest(records)
			if err != nil {
				return nil, err
			}
			if actual != expected {
				return nil, fmt.Errorf("%w: %s", ErrDigestMismatch, file)
			}
		}
	}
	return records, nil
}

// digest is the sha256 of the RFC 8785 canonical JSON of records.
func digest(records []map[string]interface{}) (string, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
