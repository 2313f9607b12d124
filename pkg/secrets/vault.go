package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"
)

var _ Store = (*VaultStore)(nil)

// VaultConfig configures the external secret service client.
type VaultConfig struct {
	Address    string
	Token      string
	Mount      string
	MaxRetries int
	HTTPClient *http.Client
}

// VaultStore keeps values in a KV v2 engine, one secret per path holding a
// single key named after the property.
type VaultStore struct {
	client *api.Client
	mount  string
	log    *logrus.Logger
}

func NewVaultStore(cfg VaultConfig, log *logrus.Logger) (*VaultStore, error) {
	apiConfig := api.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, fmt.Errorf("failed to configure vault client: %w", apiConfig.Error)
	}
	apiConfig.Address = cfg.Address
	apiConfig.MaxRetries = cfg.MaxRetries
	if cfg.HTTPClient != nil {
		apiConfig.HttpClient = cfg.HTTPClient
	}

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VaultStore{client: client, mount: mount, log: log}, nil
}

func (s *VaultStore) dataPath(path string) string {
	return s.mount + "/data/" + path
}

func (s *VaultStore) Read(ctx context.Context, path string) (string, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.dataPath(path))
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrNotFound
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", ErrNotFound
	}
	value, ok := data[property(path)].(string)
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *VaultStore) Write(ctx context.Context, path string, value string) error {
	payload := map[string]interface{}{
		"data": map[string]interface{}{property(path): value},
	}
	if _, err := s.client.Logical().WriteWithContext(ctx, s.dataPath(path), payload); err != nil {
		return fmt.Errorf("failed to write secret %s: %w", path, err)
	}
	return nil
}

// Unseal submits keys until the service reports it is unsealed.
func (s *VaultStore) Unseal(ctx context.Context, keys []string) error {
	status, err := s.client.Sys().SealStatusWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to read seal status: %w", err)
	}
	if !status.Sealed {
		return nil
	}
	for _, key := range keys {
		status, err = s.client.Sys().UnsealWithContext(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to submit unseal key: %w", err)
		}
		if !status.Sealed {
			s.log.Info("vault unsealed")
			return nil
		}
	}
	return fmt.Errorf("vault still sealed after %d keys (progress %d/%d)", len(keys), status.Progress, status.T)
}

func isNotFound(err error) bool {
	var respErr *api.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
