// Package server assembles the eNMS control plane.
//
// New builds the components in dependency order: configuration, logger,
// database, secret store, entity model, RBAC engine and endpoint table,
// entity manager, store, authentication gateway, token signers, worker
// coordinator, request pipeline and router.
//
// # Server Setup
//
//	s, err := server.New(ctx, server.Options{
//	    Config:      cfg,
//	    DatabaseURL: os.Getenv("DATABASE_URL"),
//	    SecretKey:   []byte(os.Getenv("SECRET_KEY")),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	endpoints.RegisterAll(s)
//	log.Fatal(s.Start())
//
// # Endpoints
//
// Routes are registered by the endpoints subpackage. Every route except
// /metrics goes through the pipeline, which identifies the caller, checks
// the endpoint table and runs the handler in one database transaction:
//
//   - /rest/...: the JSON API, authenticated by basic credentials or a bearer token
//   - /get, /update, /delete_instance, ...: POST routes used by the pages
//   - /login, /logout, /dashboard, /<type>_table, /<type>_form: HTML pages
package server
