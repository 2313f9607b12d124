package model

import (
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Object is implemented by every entity type through the embedded Base.
type Object interface {
	GetBase() *Base
}

// Base holds the columns shared by all entity tables.
type Base struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"not null;uniqueIndex"`
	Type  string `gorm:"not null"`
	Owner string

	// Access maps an access verb to the ",group1,group2," list of groups
	// granted that verb when the entity was last written.
	Access datatypes.JSONMap

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Base) GetBase() *Base {
	return b
}

func (b *Base) String() string {
	return b.Name
}

// Grant returns the group list for verb, or "" when nobody holds it.
func (b *Base) Grant(verb string) string {
	value, _ := b.Access[verb].(string)
	return value
}

// GrantedTo reports whether any of groups holds verb on the entity.
func (b *Base) GrantedTo(verb string, groups []string) bool {
	grant := b.Grant(verb)
	for _, group := range groups {
		if strings.Contains(grant, ","+group+",") {
			return true
		}
	}
	return false
}

// FlattenGrants turns verb -> group names into verb -> ",g1,g2,".
func FlattenGrants(grants map[string][]string) datatypes.JSONMap {
	flat := datatypes.JSONMap{}
	for verb, groups := range grants {
		flat[verb] = "," + strings.Join(groups, ",") + ","
	}
	return flat
}

// StringList reads a list stored in a JSON column. Values come back from
// the database as []interface{} and from callers as []string.
func StringList(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

func sortedUnique(values map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
