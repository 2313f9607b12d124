// Package audit records security-relevant events.
//
// Events are written as RFC 5424 syslog lines by a Logger and, when a
// Sink is configured, persisted as changelog rows by Store:
//
//	logger := audit.NewLogger(log)
//	logger.SetSink(audit.NewStore(db))
//	logger.Log(ctx, audit.AuthnEvent{User: "admin", Method: "database", Success: true})
//
// Event types cover authentication attempts, page logins and logouts,
// bearer tokens, non-200 requests and entity changes.
package audit
