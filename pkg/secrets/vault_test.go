package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault serves the subset of the KV v2 and sys APIs the store uses.
type fakeVault struct {
	mu       sync.Mutex
	data     map[string]map[string]interface{}
	sealed   bool
	unsealed int
	tokens   []string
}

func newFakeVault() *fakeVault {
	return &fakeVault{data: map[string]map[string]interface{}{}}
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, r.Header.Get("X-Vault-Token"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/v1/sys/seal-status":
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sealed": f.sealed, "t": 2, "n": 3, "progress": f.unsealed})
	case r.URL.Path == "/v1/sys/unseal":
		f.unsealed++
		if f.unsealed >= 2 {
			f.sealed = false
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"sealed": f.sealed, "t": 2, "n": 3, "progress": f.unsealed})
	case strings.HasPrefix(r.URL.Path, "/v1/secret/data/"):
		key := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/")
		switch r.Method {
		case http.MethodGet:
			value, ok := f.data[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"data": value, "metadata": map[string]interface{}{"version": 1}},
			})
		case http.MethodPut, http.MethodPost:
			var body struct {
				Data map[string]interface{} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.data[key] = body.Data
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"version": 1}})
		}
	default:
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":["unexpected path"]}`))
	}
}

func newTestVaultStore(t *testing.T, fake *fakeVault) *VaultStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log, _ := test.NewNullLogger()
	store, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "root", Mount: "secret"}, log)
	require.NoError(t, err)
	return store
}

func TestVaultStoreReadWrite(t *testing.T) {
	fake := newFakeVault()
	store := newTestVaultStore(t, fake)
	ctx := context.Background()
	path := Path("device", "R1", "password")

	_, err := store.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Write(ctx, path, "s3cr3t"))
	assert.Equal(t, map[string]interface{}{"password": "s3cr3t"}, fake.data["device/R1/password"])

	value, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", value)
	assert.Contains(t, fake.tokens, "root")
}

func TestVaultStoreServerError(t *testing.T) {
	store := newTestVaultStore(t, newFakeVault())
	store.mount = "broken"

	_, err := store.Read(context.Background(), "device/R1/password")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestVaultStoreUnseal(t *testing.T) {
	fake := newFakeVault()
	fake.sealed = true
	store := newTestVaultStore(t, fake)

	require.NoError(t, store.Unseal(context.Background(), []string{"k1", "k2", "k3"}))
	assert.Equal(t, 2, fake.unsealed)

	require.NoError(t, store.Unseal(context.Background(), []string{"k1"}))
	assert.Equal(t, 2, fake.unsealed)
}

func TestVaultStoreUnsealNotEnoughKeys(t *testing.T) {
	fake := newFakeVault()
	fake.sealed = true
	store := newTestVaultStore(t, fake)

	err := store.Unseal(context.Background(), []string{"k1"})
	assert.Error(t, err)
}
