// Package model defines the entity types and their schema registry.
//
// Every entity embeds Base (id, name, type tag, owner, access grants) and
// is described by a Schema listing its scalar properties and
// relationships. The Registry maps type tags to schemas; it is built once
// at startup and never modified.
//
// # Entity Types
//
//   - user: login accounts with groups and pools
//   - group: per-type access verbs and per-method endpoint grants
//   - pool: device/link groupings that scope visibility
//   - device, link: the network inventory
//   - service: automation job definitions
//   - changelog: persisted log entries
//
// Private properties (passwords) have no column; they are stored through
// package secrets.
package model
