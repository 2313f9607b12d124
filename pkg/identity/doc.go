// Package identity carries the caller of a request through its context.
//
// The request pipeline builds an Identity once the caller is known (from
// a session cookie, HTTP Basic credentials or a bearer token) and stores
// it in the request context:
//
//	ctx = identity.Set(ctx, identity.ForUser(user, identity.SourceBearer).
//	    WithRemoteIP(ip).
//	    WithEndpoint("/rest/instance", true))
//
//	user := identity.User(ctx) // nil when anonymous
package identity
