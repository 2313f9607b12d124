// Package migration exports entities to YAML folders and imports them
// back.
//
// A migration is a folder named after the migration holding one
// {type}.yaml file per entity type, each a list of exported entities
// with relationships given by name, and a manifest.json with the digest
// of every file computed over its canonical JSON form (RFC 8785).
package migration
