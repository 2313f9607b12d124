// Package entity implements the operations shared by every entity type:
// update with relationship resolution and kind coercion, serialization,
// duplication, and access to private properties through the secret store.
//
// The Manager is stateless between calls. Everything that needs the
// database goes through a Backend, which is the transactional session of
// the current request.
package entity
