package rbac

import (
	"fmt"

	"gorm.io/datatypes"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// Error is returned when an actor may not act on an entity.
type Error struct {
	User string
	Verb string
	Type string
	Name string
}

func (e *Error) Error() string {
	return fmt.Sprintf("user %q is not allowed to %s %s %q", e.User, e.Verb, e.Type, e.Name)
}

// Engine computes access grants on write and visibility on read.
type Engine struct {
	models map[string]bool
}

// NewEngine returns an engine for the given RBAC-managed types.
func NewEngine(models []string) *Engine {
	e := &Engine{models: make(map[string]bool, len(models))}
	for _, m := range models {
		e.models[m] = true
	}
	return e
}

// Managed reports whether entities of entityType carry access grants.
func (e *Engine) Managed(entityType string) bool {
	return e.models[entityType]
}

// Grants returns the access grants an entity of entityType gets when
// actor writes it: for every verb, the groups of actor granting it. The
// second result is false for types that are not RBAC-managed.
func (e *Engine) Grants(actor *model.User, entityType string) (datatypes.JSONMap, bool) {
	if !e.Managed(entityType) {
		return nil, false
	}
	grants := map[string][]string{}
	if actor != nil {
		for _, group := range actor.Groups {
			for _, verb := range group.Verbs(entityType) {
				grants[verb] = append(grants[verb], group.Name)
			}
		}
	}
	return model.FlattenGrants(grants), true
}

// Stamp overwrites the grants and owner of obj with those derived from
// actor. Previous grants are discarded.
func (e *Engine) Stamp(actor *model.User, obj model.Object) {
	base := obj.GetBase()
	grants, ok := e.Grants(actor, base.Type)
	if !ok {
		return
	}
	base.Access = grants
	base.Owner = ""
	if actor != nil {
		base.Owner = actor.Name
	}
}

// Visibility is the set of entity ids of one type an actor may see.
type Visibility struct {
	Unrestricted bool
	IDs          map[uint]struct{}
}

// Contains reports whether the entity with id is visible.
func (v Visibility) Contains(id uint) bool {
	if v.Unrestricted {
		return true
	}
	_, ok := v.IDs[id]
	return ok
}

// Visibility scopes pools, devices and links to the actor's pools. The
// actor's pools must be loaded with their devices and links. Other types,
// admins and the system actor (nil) are unrestricted.
func (e *Engine) Visibility(actor *model.User, entityType string) Visibility {
	if actor == nil || actor.IsAdmin {
		return Visibility{Unrestricted: true}
	}
	ids := map[uint]struct{}{}
	switch entityType {
	case "pool":
		for _, pool := range actor.Pools {
			ids[pool.ID] = struct{}{}
		}
	case "device":
		for _, pool := range actor.Pools {
			for _, device := range pool.Devices {
				ids[device.ID] = struct{}{}
			}
		}
	case "link":
		for _, pool := range actor.Pools {
			for _, link := range pool.Links {
				ids[link.ID] = struct{}{}
			}
		}
	default:
		return Visibility{Unrestricted: true}
	}
	return Visibility{IDs: ids}
}

// privileged are the user properties that grant access. A user may edit
// their own record but never these.
var privileged = []string{"is_admin", "groups", "pools", "authentication"}

// Check returns an *Error unless actor may apply verb to obj. Pools,
// devices and links follow visibility; users and groups may be read by
// anyone and written by administrators only; other RBAC-managed types
// need the actor to own the entity or hold the verb through a group.
func (e *Engine) Check(actor *model.User, obj model.Object, verb string) error {
	base := obj.GetBase()
	if actor == nil || actor.IsAdmin {
		return nil
	}
	var allowed bool
	switch base.Type {
	case "pool", "device", "link":
		allowed = e.Visibility(actor, base.Type).Contains(base.ID)
	case "user", "group":
		allowed = verb == "read"
	default:
		allowed = !e.Managed(base.Type) ||
			base.Owner == actor.Name ||
			base.GrantedTo(verb, actor.GroupNames())
	}
	if allowed {
		return nil
	}
	return &Error{User: actor.Name, Verb: verb, Type: base.Type, Name: base.Name}
}

// CheckWrite returns an *Error unless actor may write fields to obj.
// Anyone may create entities other than users and groups. A user may edit
// their own record as long as fields leave its privileges alone.
func (e *Engine) CheckWrite(actor *model.User, obj model.Object, fields map[string]interface{}) error {
	base := obj.GetBase()
	if actor == nil || actor.IsAdmin {
		return nil
	}
	switch {
	case base.Type == "user" && base.ID != 0 && base.ID == actor.ID:
		for _, name := range privileged {
			if _, ok := fields[name]; ok {
				return &Error{User: actor.Name, Verb: "change " + name + " of", Type: base.Type, Name: base.Name}
			}
		}
		return nil
	case base.Type == "user" || base.Type == "group":
		name := base.Name
		if name == "" {
			name, _ = fields["name"].(string)
		}
		return &Error{User: actor.Name, Verb: "edit", Type: base.Type, Name: name}
	case base.ID == 0:
		return nil
	}
	return e.Check(actor, obj, "edit")
}
