package main

import (
	"context"
	"fmt"

	"github.com/netops-labs/enms-in-go/pkg/authenticator/oauth2"
	"github.com/netops-labs/enms-in-go/pkg/config"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// appOptions are the command line settings shared by the commands that
// assemble a server.
type appOptions struct {
	Addr          string
	SecureCookies bool
	MigrationRoot string
}

// loadServer reads enms.yml and the environment and assembles the server.
func loadServer(ctx context.Context, app appOptions) (*server.Server, *config.Environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	env, err := config.LoadEnvironment()
	if err != nil {
		return nil, nil, err
	}
	log, err := server.NewLogger(cfg, nil)
	if err != nil {
		return nil, nil, err
	}

	opts := server.Options{
		Config:        cfg,
		Log:           log,
		DatabaseURL:   env.DatabaseURL,
		SecretKey:     env.SecretKey,
		DataKey:       env.DataKey,
		RedisAddr:     env.RedisAddr,
		UnsealKeys:    env.UnsealKeys,
		Addr:          app.Addr,
		SecureCookies: app.SecureCookies,
		MigrationRoot: app.MigrationRoot,
		Vault: secrets.VaultConfig{
			Address: env.VaultAddr,
			Token:   env.VaultToken,
		},
	}
	if env.OAuth2Configured() {
		opts.OAuth2 = &oauth2.Config{
			TokenURL:     env.OAuth2TokenURL,
			UserInfoURL:  env.OAuth2UserInfoURL,
			ClientID:     env.OAuth2ClientID,
			ClientSecret: env.OAuth2ClientSecret,
		}
	}

	s, err := server.New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return s, env, nil
}

// withSession runs fn in one transaction as the system actor.
func withSession(ctx context.Context, s *server.Server, fn func(store.Session) error) error {
	return s.Store.Transaction(ctx, nil, fn)
}

func fetchUser(ctx context.Context, session store.Session, name string) (*model.User, error) {
	user, err := session.FetchUser(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", name, err)
	}
	return user, nil
}
