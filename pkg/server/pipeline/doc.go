// Package pipeline runs every HTTP request through the same stages:
// identification (bearer token, Basic credentials or page session),
// endpoint authorization against the RBAC table, dispatch inside one
// database transaction, and completion, which maps the outcome to a
// response, an access log line, metrics and an audit event.
package pipeline
