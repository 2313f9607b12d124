package model

import (
	"strings"

	"gorm.io/datatypes"
)

type Group struct {
	Base
	Description string
	Email       string

	// ModelAccess maps an entity type to the access verbs the group grants
	// its members on entities of that type.
	ModelAccess datatypes.JSONMap

	// Endpoints maps a lower-case HTTP method to the endpoints members may
	// call with it.
	Endpoints datatypes.JSONMap

	Users []*User `gorm:"many2many:user_groups"`
}

func (Group) TableName() string {
	return "groups"
}

// Verbs returns the access verbs granted on entities of entityType.
func (g *Group) Verbs(entityType string) []string {
	return StringList(g.ModelAccess[entityType])
}

// EndpointList returns the endpoints granted for method.
func (g *Group) EndpointList(method string) []string {
	return StringList(g.Endpoints[strings.ToLower(method)])
}
