package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/enms"
	ConfigFileName    = "enms.yml"

	// LocalAuthentication is the built-in method checking passwords stored
	// on the user record.
	LocalAuthentication = "database"
)

// Config holds all server settings. It is loaded once at startup and
// passed to the components that need it.
type Config struct {
	// TrustedProxies is a list of CIDR ranges allowed to set X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies" json:"trusted_proxies"`

	// AuthenticationMethods is the list of enabled credential verification methods
	AuthenticationMethods []string `yaml:"authentication_methods" json:"authentication_methods"`

	// DefaultAuthentication is used when neither the request nor the user names a method
	DefaultAuthentication string `yaml:"default_authentication" json:"default_authentication"`

	// HashUserPasswords stores user passwords as argon2id hashes
	HashUserPasswords bool `yaml:"hash_user_passwords" json:"hash_user_passwords"`

	// UseVault routes private properties to the external secret service
	UseVault bool `yaml:"use_vault" json:"use_vault"`

	// UnsealVault submits the configured unseal keys when the vault is sealed
	UnsealVault bool `yaml:"unseal_vault" json:"unseal_vault"`

	// VaultMount is the KV v2 mount holding entity secrets
	VaultMount string `yaml:"vault_mount" json:"vault_mount"`

	// RedisMaxRetries and RedisPoolSize tune the coordination client
	RedisMaxRetries int `yaml:"redis_max_retries" json:"redis_max_retries"`
	RedisPoolSize   int `yaml:"redis_pool_size" json:"redis_pool_size"`

	// RequestsRetries and RequestsPoolSize tune outbound HTTP calls
	RequestsRetries  int `yaml:"requests_retries" json:"requests_retries"`
	RequestsPoolSize int `yaml:"requests_pool_size" json:"requests_pool_size"`

	// SessionTimeoutMinutes is the browser session lifetime
	SessionTimeoutMinutes int `yaml:"session_timeout_minutes" json:"session_timeout_minutes"`

	// TokenTTL is the bearer token lifetime in seconds
	TokenTTL int `yaml:"token_ttl" json:"token_ttl"`

	// RBACPath is the endpoint access table file
	RBACPath string `yaml:"rbac_path" json:"rbac_path"`

	// RBACModels lists the entity types carrying access grants
	RBACModels []string `yaml:"rbac_models" json:"rbac_models"`

	// HelpPath is the directory of markdown help pages
	HelpPath string `yaml:"help_path" json:"help_path"`

	// LogLevel and LogFormat configure the application logger
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Default returns a config with default values
func Default() *Config {
	c := &Config{
		TrustedProxies:        []string{},
		AuthenticationMethods: []string{LocalAuthentication},
		DefaultAuthentication: LocalAuthentication,
		HashUserPasswords:     true,
		VaultMount:            "secret",
		RedisMaxRetries:       3,
		RedisPoolSize:         10,
		RequestsRetries:       3,
		RequestsPoolSize:      10,
		SessionTimeoutMinutes: 90,
		TokenTTL:              3600,
		RBACPath:              filepath.Join(DefaultConfigPath, "rbac.yml"),
		RBACModels:            []string{"device", "link", "pool", "service"},
		LogLevel:              "info",
		LogFormat:             "text",
		sources:               make(map[string]string),
	}
	for _, name := range attributeNames() {
		c.sources[name] = "default"
	}
	return c
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	config := Default()

	configPath := os.Getenv("ENMS_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		var present map[string]interface{}
		if err := yaml.Unmarshal(data, &present); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
		config.applyFileConfig(&fileConfig, present)
	}

	config.applyEnvConfig()

	return config, nil
}

func attributeNames() []string {
	return []string{
		"trusted_proxies", "authentication_methods", "default_authentication",
		"hash_user_passwords", "use_vault", "unseal_vault", "vault_mount",
		"redis_max_retries", "redis_pool_size", "requests_retries",
		"requests_pool_size", "session_timeout_minutes", "token_ttl",
		"rbac_path", "rbac_models", "help_path", "log_level", "log_format",
	}
}

// applyFileConfig copies the values present in the file. Booleans are only
// taken when the key is present so that an omitted key keeps its default.
func (c *Config) applyFileConfig(file *Config, present map[string]interface{}) {
	set := func(name string) bool {
		_, ok := present[name]
		if ok {
			c.sources[name] = "file"
		}
		return ok
	}
	if set("trusted_proxies") {
		c.TrustedProxies = file.TrustedProxies
	}
	if set("authentication_methods") {
		c.AuthenticationMethods = file.AuthenticationMethods
	}
	if set("default_authentication") {
		c.DefaultAuthentication = file.DefaultAuthentication
	}
	if set("hash_user_passwords") {
		c.HashUserPasswords = file.HashUserPasswords
	}
	if set("use_vault") {
		c.UseVault = file.UseVault
	}
	if set("unseal_vault") {
		c.UnsealVault = file.UnsealVault
	}
	if set("vault_mount") {
		c.VaultMount = file.VaultMount
	}
	if set("redis_max_retries") {
		c.RedisMaxRetries = file.RedisMaxRetries
	}
	if set("redis_pool_size") {
		c.RedisPoolSize = file.RedisPoolSize
	}
	if set("requests_retries") {
		c.RequestsRetries = file.RequestsRetries
	}
	if set("requests_pool_size") {
		c.RequestsPoolSize = file.RequestsPoolSize
	}
	if set("session_timeout_minutes") {
		c.SessionTimeoutMinutes = file.SessionTimeoutMinutes
	}
	if set("token_ttl") {
		c.TokenTTL = file.TokenTTL
	}
	if set("rbac_path") {
		c.RBACPath = file.RBACPath
	}
	if set("rbac_models") {
		c.RBACModels = file.RBACModels
	}
	if set("help_path") {
		c.HelpPath = file.HelpPath
	}
	if set("log_level") {
		c.LogLevel = file.LogLevel
	}
	if set("log_format") {
		c.LogFormat = file.LogFormat
	}
}

func (c *Config) applyEnvConfig() {
	envList := func(key, name string, dst *[]string) {
		if val := os.Getenv(key); val != "" {
			*dst = splitAndTrim(val)
			c.sources[name] = "environment"
		}
	}
	envString := func(key, name string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
			c.sources[name] = "environment"
		}
	}
	envInt := func(key, name string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
				c.sources[name] = "environment"
			}
		}
	}
	envBool := func(key, name string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			*dst = val == "true" || val == "1"
			c.sources[name] = "environment"
		}
	}

	envList("ENMS_TRUSTED_PROXIES", "trusted_proxies", &c.TrustedProxies)
	envList("ENMS_AUTHENTICATION_METHODS", "authentication_methods", &c.AuthenticationMethods)
	envString("ENMS_DEFAULT_AUTHENTICATION", "default_authentication", &c.DefaultAuthentication)
	envBool("ENMS_HASH_USER_PASSWORDS", "hash_user_passwords", &c.HashUserPasswords)
	envBool("ENMS_USE_VAULT", "use_vault", &c.UseVault)
	envBool("ENMS_UNSEAL_VAULT", "unseal_vault", &c.UnsealVault)
	envString("ENMS_VAULT_MOUNT", "vault_mount", &c.VaultMount)
	envInt("ENMS_REDIS_MAX_RETRIES", "redis_max_retries", &c.RedisMaxRetries)
	envInt("ENMS_REDIS_POOL_SIZE", "redis_pool_size", &c.RedisPoolSize)
	envInt("ENMS_REQUESTS_RETRIES", "requests_retries", &c.RequestsRetries)
	envInt("ENMS_REQUESTS_POOL_SIZE", "requests_pool_size", &c.RequestsPoolSize)
	envInt("ENMS_SESSION_TIMEOUT_MINUTES", "session_timeout_minutes", &c.SessionTimeoutMinutes)
	envInt("ENMS_TOKEN_TTL", "token_ttl", &c.TokenTTL)
	envString("ENMS_RBAC_PATH", "rbac_path", &c.RBACPath)
	envList("ENMS_RBAC_MODELS", "rbac_models", &c.RBACModels)
	envString("ENMS_HELP_PATH", "help_path", &c.HelpPath)
	envString("ENMS_LOG_LEVEL", "log_level", &c.LogLevel)
	envString("ENMS_LOG_FORMAT", "log_format", &c.LogFormat)
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// SessionTimeout returns the browser session lifetime
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// TokenLifetime returns the bearer token lifetime
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenTTL) * time.Second
}

// IsMethodEnabled reports whether a credential verification method is enabled
func (c *Config) IsMethodEnabled(method string) bool {
	for _, m := range c.AuthenticationMethods {
		if m == method {
			return true
		}
	}
	return false
}

// IsTrustedProxy checks if an IP is from a trusted proxy
func (c *Config) IsTrustedProxy(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range c.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			if net.ParseIP(cidr) != nil && cidr == ip {
				return true
			}
			continue
		}
		if network.Contains(parsedIP) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			if net.ParseIP(cidr) == nil {
				return fmt.Errorf("invalid trusted_proxies value: %s", cidr)
			}
		}
	}
	if len(c.AuthenticationMethods) == 0 {
		return fmt.Errorf("authentication_methods must not be empty")
	}
	if !c.IsMethodEnabled(c.DefaultAuthentication) {
		return fmt.Errorf("default_authentication %q is not an enabled method", c.DefaultAuthentication)
	}
	if c.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("session_timeout_minutes must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format: %s", c.LogFormat)
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	return []Attribute{
		{Name: "trusted_proxies", Value: strings.Join(c.TrustedProxies, ","), Source: c.Source("trusted_proxies")},
		{Name: "authentication_methods", Value: strings.Join(c.AuthenticationMethods, ","), Source: c.Source("authentication_methods")},
		{Name: "default_authentication", Value: c.DefaultAuthentication, Source: c.Source("default_authentication")},
		{Name: "hash_user_passwords", Value: strconv.FormatBool(c.HashUserPasswords), Source: c.Source("hash_user_passwords")},
		{Name: "use_vault", Value: strconv.FormatBool(c.UseVault), Source: c.Source("use_vault")},
		{Name: "unseal_vault", Value: strconv.FormatBool(c.UnsealVault), Source: c.Source("unseal_vault")},
		{Name: "vault_mount", Value: c.VaultMount, Source: c.Source("vault_mount")},
		{Name: "redis_max_retries", Value: strconv.Itoa(c.RedisMaxRetries), Source: c.Source("redis_max_retries")},
		{Name: "redis_pool_size", Value: strconv.Itoa(c.RedisPoolSize), Source: c.Source("redis_pool_size")},
		{Name: "requests_retries", Value: strconv.Itoa(c.RequestsRetries), Source: c.Source("requests_retries")},
		{Name: "requests_pool_size", Value: strconv.Itoa(c.RequestsPoolSize), Source: c.Source("requests_pool_size")},
		{Name: "session_timeout_minutes", Value: strconv.Itoa(c.SessionTimeoutMinutes), Source: c.Source("session_timeout_minutes")},
		{Name: "token_ttl", Value: strconv.Itoa(c.TokenTTL), Source: c.Source("token_ttl")},
		{Name: "rbac_path", Value: c.RBACPath, Source: c.Source("rbac_path")},
		{Name: "rbac_models", Value: strings.Join(c.RBACModels, ","), Source: c.Source("rbac_models")},
		{Name: "help_path", Value: c.HelpPath, Source: c.Source("help_path")},
		{Name: "log_level", Value: c.LogLevel, Source: c.Source("log_level")},
		{Name: "log_format", Value: c.LogFormat, Source: c.Source("log_format")},
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-30s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
