// Package oauth2 provides a credential method that delegates password
// checks to an OAuth2 authorization server through the resource owner
// password grant.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/netops-labs/enms-in-go/pkg/authenticator"
)

// Name is the method name users and configuration refer to.
const Name = "oauth2"

// Config describes the authorization server.
type Config struct {
	TokenURL     string
	UserInfoURL  string // optional; no attributes are returned without it
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Attributes maps user info claims to user properties. Defaults to
	// email -> email.
	Attributes map[string]string

	// HTTPClient is used for both the token and user info requests.
	HTTPClient *http.Client
}

// Authenticator implements authenticator.Authenticator
type Authenticator struct {
	config       Config
	oauth2Config *oauth2.Config
}

var _ authenticator.Authenticator = (*Authenticator)(nil)

// New creates the oauth2 method.
func New(config Config) (*Authenticator, error) {
	if config.TokenURL == "" {
		return nil, errors.New("oauth2 token url is required")
	}
	if config.Attributes == nil {
		config.Attributes = map[string]string{"email": "email"}
	}
	return &Authenticator{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: config.TokenURL},
			Scopes:       config.Scopes,
		},
	}, nil
}

func (a *Authenticator) Name() string {
	return Name
}

// Authenticate exchanges the credentials for a token and reads the user's
// attributes with it.
func (a *Authenticator) Authenticate(ctx context.Context, input authenticator.Input) (authenticator.Attributes, error) {
	if a.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.config.HTTPClient)
	}

	token, err := a.oauth2Config.PasswordCredentialsToken(ctx, input.Username, input.Password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %s", authenticator.ErrInvalidCredentials, retrieveErr.ErrorCode)
		}
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}

	if a.config.UserInfoURL == "" {
		return authenticator.Attributes{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.oauth2Config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("user info request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	attrs := authenticator.Attributes{}
	for claim, property := range a.config.Attributes {
		if value, ok := userInfo[claim]; ok && value != nil {
			attrs[property] = value
		}
	}
	return attrs, nil
}
