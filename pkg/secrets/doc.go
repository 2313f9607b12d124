// Package secrets stores private entity properties outside the entity
// tables.
//
// Values are addressed by "{type}/{name}/{property}". VaultStore forwards
// them to a Vault KV v2 engine; LocalStore keeps them in the application
// database, encrypted with AES-256-GCM when a data key is configured and
// base64-encoded otherwise.
package secrets
