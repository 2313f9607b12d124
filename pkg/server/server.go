package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/authenticator"
	"github.com/netops-labs/enms-in-go/pkg/authenticator/oauth2"
	"github.com/netops-labs/enms-in-go/pkg/config"
	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/httpclient"
	"github.com/netops-labs/enms-in-go/pkg/metrics"
	"github.com/netops-labs/enms-in-go/pkg/migration"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/render"
	"github.com/netops-labs/enms-in-go/pkg/secrets"
	"github.com/netops-labs/enms-in-go/pkg/server/middleware"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
	gormstore "github.com/netops-labs/enms-in-go/pkg/server/store/gorm"
	"github.com/netops-labs/enms-in-go/pkg/token"
	"github.com/netops-labs/enms-in-go/pkg/workers"
)

// Options carries what the configuration file does not: connection
// strings, keys and process wiring.
type Options struct {
	Config *config.Config
	Log    *logrus.Logger

	// DB is used as is when set; otherwise DatabaseURL is opened. SQLite
	// schemas are created automatically, Postgres ones by migrations.
	DB          *gorm.DB
	DatabaseURL string

	// SecretKey signs bearer tokens and session cookies.
	SecretKey []byte
	// DataKey encrypts private properties kept in the database.
	DataKey []byte

	Vault      secrets.VaultConfig
	UnsealKeys []string

	// RedisAddr selects the shared worker coordinator.
	RedisAddr string

	// OAuth2 installs the delegated password method when set.
	OAuth2 *oauth2.Config
	// Methods are additional credential methods.
	Methods []authenticator.Authenticator

	// Executor runs services; the recorder is used when nil.
	Executor workers.Executor

	Addr          string
	SecureCookies bool
	MigrationRoot string
	AuditOutput   io.Writer
	Registry      *prometheus.Registry
}

// Server holds the assembled components. Endpoints register their routes
// on Router.
type Server struct {
	Config      *config.Config
	Log         *logrus.Logger
	Router      *mux.Router
	DB          *gorm.DB
	Models      *model.Registry
	Engine      *rbac.Engine
	Manager     *entity.Manager
	Store       store.Store
	Secrets     secrets.Store
	Table       *rbac.TableHolder
	Gateway     *authenticator.Gateway
	Tokens      *token.Signer
	Sessions    *token.Sessions
	Pipeline    *pipeline.Pipeline
	Renderer    render.Renderer
	Forms       *forms.Registry
	Coordinator workers.Coordinator
	Executor    workers.Executor
	Migrator    *migration.Migrator
	Audit       *audit.Logger
	Metrics     *metrics.Metrics
	Clients     *httpclient.Clients

	srv *http.Server
}

// New builds the server in dependency order: configuration, logger,
// database, secret store, entity model, RBAC, entity manager, store,
// authentication, tokens, coordinator, pipeline and router.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		var err error
		if log, err = NewLogger(cfg, nil); err != nil {
			return nil, err
		}
	}

	s := &Server{Config: cfg, Log: log}

	if err := s.openDatabase(opts); err != nil {
		return nil, err
	}

	s.Clients = httpclient.New(httpclient.Options{
		Retries:  cfg.RequestsRetries,
		PoolSize: cfg.RequestsPoolSize,
	}, log)

	s.Audit = audit.NewLogger(log)
	if opts.AuditOutput != nil {
		s.Audit.SetWriter(opts.AuditOutput)
	}
	s.Audit.SetSink(audit.NewStore(s.DB))

	if err := s.openSecrets(ctx, opts); err != nil {
		return nil, err
	}

	s.Models = model.DefaultRegistry()
	if s.DB.Dialector.Name() == "sqlite" {
		if err := enmsdb.AutoMigrate(s.DB, s.Models); err != nil {
			return nil, err
		}
	}

	s.Engine = rbac.NewEngine(cfg.RBACModels)

	var hasher *authenticator.Hasher
	managerOpts := entity.DefaultHooks()
	if cfg.HashUserPasswords {
		hasher = authenticator.NewHasher(authenticator.DefaultArgon2Params)
		managerOpts = append(managerOpts, entity.WithHasher(hasher))
	}
	s.Manager = entity.NewManager(s.Models, s.Engine, log, managerOpts...)
	s.Store = gormstore.NewStore(s.DB, s.Manager, s.Engine, s.Secrets)

	table, err := rbac.LoadTableOrDefault(cfg.RBACPath, log)
	if err != nil {
		return nil, err
	}
	s.Table = rbac.NewTableHolder(table)
	s.Metrics = metrics.New(opts.Registry)
	s.Table.OnReload(func(err error) { s.Metrics.ObserveRBACReload(err == nil) })

	if err := s.setupAuthentication(opts, hasher); err != nil {
		return nil, err
	}
	if err := s.setupTokens(opts); err != nil {
		return nil, err
	}

	if opts.RedisAddr != "" {
		coordinator, err := workers.NewRedisCoordinator(ctx, workers.RedisOptions{
			Addr:       opts.RedisAddr,
			MaxRetries: cfg.RedisMaxRetries,
			PoolSize:   cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, err
		}
		s.Coordinator = coordinator
	} else {
		log.Warn("REDIS_ADDR not set: worker state is kept in this process only")
		s.Coordinator = workers.NewMemoryCoordinator()
	}
	s.Executor = opts.Executor
	if s.Executor == nil {
		s.Executor = workers.NewRecorder(s.Coordinator, log)
	}

	if s.Renderer, err = render.New(cfg.HelpPath); err != nil {
		return nil, err
	}
	validator, err := forms.NewValidator(128)
	if err != nil {
		return nil, err
	}
	if s.Forms, err = forms.NewRegistry(validator); err != nil {
		return nil, err
	}
	root := opts.MigrationRoot
	if root == "" {
		root = "migrations"
	}
	s.Migrator = migration.New(root)

	s.Pipeline = pipeline.New(pipeline.Options{
		Store:    s.Store,
		Table:    s.Table,
		Gateway:  s.Gateway,
		Tokens:   s.Tokens,
		Sessions: s.Sessions,
		Renderer: s.Renderer,
		Audit:    s.Audit,
		Metrics:  s.Metrics,
		Log:      log,
	})

	s.Router = mux.NewRouter()
	s.Router.Use(middleware.TrustedProxies(cfg.IsTrustedProxy))

	addr := opts.Addr
	if addr == "" {
		addr = "0.0.0.0:5000"
	}
	s.srv = &http.Server{
		Handler: handlers.RecoveryHandler(
			handlers.RecoveryLogger(log),
			handlers.PrintRecoveryStack(true),
		)(handlers.CompressHandler(s.Router)),
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return s, nil
}

func (s *Server) openDatabase(opts Options) error {
	if opts.DB != nil {
		s.DB = opts.DB
		return nil
	}
	db, err := enmsdb.Connect(enmsdb.Config{
		URL:   opts.DatabaseURL,
		Debug: s.Config.LogLevel == "debug",
	})
	if err != nil {
		return err
	}
	s.DB = db
	return nil
}

func (s *Server) openSecrets(ctx context.Context, opts Options) error {
	if !s.Config.UseVault {
		codec, err := secrets.NewCodec(opts.DataKey, s.Log)
		if err != nil {
			return err
		}
		s.Secrets = secrets.NewLocalStore(s.DB, codec)
		return nil
	}

	vaultCfg := opts.Vault
	if vaultCfg.Address == "" {
		vaultCfg.Address = "http://127.0.0.1:8200"
	}
	if vaultCfg.Mount == "" {
		vaultCfg.Mount = s.Config.VaultMount
	}
	if vaultCfg.HTTPClient == nil {
		vaultCfg.HTTPClient = s.Clients.Pooled()
	}
	vaultCfg.MaxRetries = s.Config.RequestsRetries
	vault, err := secrets.NewVaultStore(vaultCfg, s.Log)
	if err != nil {
		return err
	}
	if s.Config.UnsealVault {
		if err := vault.Unseal(ctx, opts.UnsealKeys); err != nil {
			return err
		}
	}
	s.Secrets = vault
	return nil
}

func (s *Server) setupAuthentication(opts Options, hasher *authenticator.Hasher) error {
	methods := authenticator.NewRegistry()
	methods.Register(authenticator.NewLocal(hasher))
	if opts.OAuth2 != nil {
		oauthCfg := *opts.OAuth2
		if oauthCfg.HTTPClient == nil {
			oauthCfg.HTTPClient = s.Clients.Retrying()
		}
		method, err := oauth2.New(oauthCfg)
		if err != nil {
			return err
		}
		methods.Register(method)
	}
	for _, method := range opts.Methods {
		methods.Register(method)
	}
	if err := methods.EnableAll(s.Config.AuthenticationMethods); err != nil {
		return err
	}
	s.Gateway = authenticator.NewGateway(methods, s.Config.DefaultAuthentication, s.Audit, s.Log)
	return nil
}

func (s *Server) setupTokens(opts Options) error {
	if len(opts.SecretKey) == 0 {
		return errors.New("SECRET_KEY is required to sign tokens and sessions")
	}
	var err error
	if s.Tokens, err = token.NewSigner(opts.SecretKey, s.Config.TokenLifetime(), token.AudienceAPI); err != nil {
		return err
	}
	sessionSigner, err := token.NewSigner(opts.SecretKey, s.Config.SessionTimeout(), token.AudienceSession)
	if err != nil {
		return err
	}
	s.Sessions = token.NewSessions(sessionSigner, opts.SecureCookies)
	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.Log.WithField("addr", s.srv.Addr).Info("starting server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WatchRBAC reloads the endpoint table when its file changes, until ctx
// is done.
func (s *Server) WatchRBAC(ctx context.Context) error {
	return s.Table.Watch(ctx, s.Config.RBACPath, s.Log)
}

// Shutdown stops accepting requests and releases the coordinator and the
// database.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.srv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Coordinator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close coordinator: %w", err))
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
