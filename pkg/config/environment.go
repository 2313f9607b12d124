package config

import (
	"encoding/base64"
	"fmt"
	"os"
)

const DefaultVaultAddr = "http://127.0.0.1:8200"

// Environment holds process-level addresses and credentials. These never
// come from the config file.
type Environment struct {
	DatabaseURL string
	RedisAddr   string

	VaultAddr  string
	VaultToken string
	UnsealKeys []string

	// SecretKey signs bearer tokens and session cookies
	SecretKey []byte

	// DataKey encrypts private properties at rest; nil means reversible
	// encoding only
	DataKey []byte

	OAuth2TokenURL     string
	OAuth2UserInfoURL  string
	OAuth2ClientID     string
	OAuth2ClientSecret string
}

// LoadEnvironment reads the process environment.
func LoadEnvironment() (*Environment, error) {
	env := &Environment{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		VaultAddr:          os.Getenv("VAULT_ADDR"),
		VaultToken:         os.Getenv("VAULT_TOKEN"),
		OAuth2TokenURL:     os.Getenv("OAUTH2_TOKEN_URL"),
		OAuth2UserInfoURL:  os.Getenv("OAUTH2_USERINFO_URL"),
		OAuth2ClientID:     os.Getenv("OAUTH2_CLIENT_ID"),
		OAuth2ClientSecret: os.Getenv("OAUTH2_CLIENT_SECRET"),
	}
	if env.VaultAddr == "" {
		env.VaultAddr = DefaultVaultAddr
	}
	for i := 1; i <= 5; i++ {
		if key := os.Getenv(fmt.Sprintf("UNSEAL_VAULT_KEY%d", i)); key != "" {
			env.UnsealKeys = append(env.UnsealKeys, key)
		}
	}

	secretKey := os.Getenv("SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY environment variable is required")
	}
	env.SecretKey = []byte(secretKey)

	if encoded := os.Getenv("ENMS_DATA_KEY"); encoded != "" {
		dataKey, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("ENMS_DATA_KEY is not valid base64: %w", err)
		}
		if len(dataKey) != 32 {
			return nil, fmt.Errorf("ENMS_DATA_KEY must decode to 32 bytes, got %d", len(dataKey))
		}
		env.DataKey = dataKey
	}

	return env, nil
}

// OAuth2Configured reports whether the delegated password-grant method can run.
func (e *Environment) OAuth2Configured() bool {
	return e.OAuth2TokenURL != "" && e.OAuth2ClientID != ""
}
