package model

import (
	"strings"

	"gorm.io/datatypes"
)

// RequestMethods are the HTTP methods with per-endpoint grants.
var RequestMethods = []string{"get", "post", "delete"}

type User struct {
	Base
	Email          string
	IsAdmin        bool
	Authentication string
	Theme          string

	// Requests maps a lower-case HTTP method to the endpoints the user's
	// groups grant. Derived on every update.
	Requests datatypes.JSONMap

	Groups []*Group `gorm:"many2many:user_groups"`
	Pools  []*Pool  `gorm:"many2many:pool_users"`
}

func (User) TableName() string {
	return "users"
}

// GroupNames returns the names of the groups the user belongs to.
func (u *User) GroupNames() []string {
	names := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		names = append(names, g.Name)
	}
	return names
}

// RefreshRequests recomputes the per-method endpoint grants from the
// user's groups.
func (u *User) RefreshRequests() {
	requests := datatypes.JSONMap{}
	for _, method := range RequestMethods {
		endpoints := map[string]struct{}{}
		for _, g := range u.Groups {
			for _, endpoint := range g.EndpointList(method) {
				endpoints[endpoint] = struct{}{}
			}
		}
		requests[method] = sortedUnique(endpoints)
	}
	u.Requests = requests
}

// CanRequest reports whether endpoint is listed among the user's grants
// for method.
func (u *User) CanRequest(method, endpoint string) bool {
	for _, e := range StringList(u.Requests[strings.ToLower(method)]) {
		if e == endpoint {
			return true
		}
	}
	return false
}
