package rbac

//go:generate go run github.com/dmarkham/enumer -type Level -trimprefix Level -transform lower -yaml -output level.gen.go

// Level is the authorization required to call an endpoint.
type Level int

const (
	// LevelNone endpoints are public.
	LevelNone Level = iota
	// LevelAccess endpoints need a user whose groups grant the endpoint.
	LevelAccess
	// LevelAdmin endpoints need an admin user.
	LevelAdmin
)
