package oauth2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netops-labs/enms-in-go/pkg/authenticator"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("username") != "alice" || r.Form.Get("password") != "wonderland" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":   "42",
			"email": "alice@example.com",
			"theme": nil,
		})
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAuthenticate(t *testing.T) {
	server := newServer(t)
	auth, err := New(Config{
		TokenURL:    server.URL + "/token",
		UserInfoURL: server.URL + "/userinfo",
		ClientID:    "enms",
		Attributes:  map[string]string{"email": "email", "theme": "theme"},
		HTTPClient:  server.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, "oauth2", auth.Name())

	attrs, err := auth.Authenticate(context.Background(), authenticator.Input{Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	assert.Equal(t, authenticator.Attributes{"email": "alice@example.com"}, attrs)

	_, err = auth.Authenticate(context.Background(), authenticator.Input{Username: "alice", Password: "nope"})
	assert.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
}

func TestAuthenticateWithoutUserInfo(t *testing.T) {
	server := newServer(t)
	auth, err := New(Config{TokenURL: server.URL + "/token", HTTPClient: server.Client()})
	require.NoError(t, err)

	attrs, err := auth.Authenticate(context.Background(), authenticator.Input{Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	assert.NotNil(t, attrs)
	assert.Empty(t, attrs)
}

func TestAuthenticateServerFailure(t *testing.T) {
	server := newServer(t)
	auth, err := New(Config{TokenURL: server.URL + "/broken", HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), authenticator.Input{Username: "alice", Password: "wonderland"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, authenticator.ErrInvalidCredentials)
}

func TestNewRequiresTokenURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
