// Package authenticator verifies user credentials.
//
// Credential methods implement Authenticator and are kept in a Registry
// where they are enabled by name. The database method (Local) checks the
// password stored on the user record, hashed with argon2id when
// configured. Pluggable functions are wrapped with NewFunc, and the
// oauth2 subpackage provides a delegated method.
//
// The Gateway picks the method for a login (request hint, then the user's
// own method, then the default), runs it and, when an external method
// accepts a name with no local user, provisions that user:
//
//	user, err := gateway.Authenticate(ctx, session, authenticator.Credentials{
//	    Username: "alice",
//	    Password: "secret",
//	})
//
// Every attempt is written to the audit log. Passwords never are.
package authenticator
