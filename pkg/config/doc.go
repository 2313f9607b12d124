// Package config provides configuration management for the eNMS server.
//
// Settings are layered: built-in defaults, then the YAML file at
// $ENMS_CONFIG_PATH/enms.yml, then ENMS_* environment variables. Each
// attribute remembers which layer supplied it.
//
// # Environment
//
// Addresses and credentials are read separately by LoadEnvironment:
//
//   - DATABASE_URL: Database connection
//   - REDIS_ADDR: Worker coordination service
//   - VAULT_ADDR, VAULT_TOKEN, UNSEAL_VAULT_KEY1..5: Secret service
//   - SECRET_KEY: Token and session signing key
//   - ENMS_DATA_KEY: Encryption key for private properties
package config
