package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/server/endpoints"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "5000"
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the eNMS application server",
	Long: `Run the eNMS application server.

The server requires SECRET_KEY and DATABASE_URL. PostgreSQL migrations are
applied on startup unless --no-migrate is given.

Example:
  enmsctl server
  enmsctl server --port 8080 --watch-rbac`,
	Run: func(cmd *cobra.Command, args []string) {
		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		watch, _ := cmd.Flags().GetBool("watch-rbac")
		secure, _ := cmd.Flags().GetBool("secure-cookies")
		root, _ := cmd.Flags().GetString("migration-root")

		if err := runServer(serverOptions{
			app: appOptions{
				Addr:          net.JoinHostPort(host, port),
				SecureCookies: secure,
				MigrationRoot: root,
			},
			migrate:   !noMigrate,
			watchRBAC: watch,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
	serverCmd.Flags().Bool("watch-rbac", false, "reload the endpoint table when its file changes")
	serverCmd.Flags().Bool("secure-cookies", false, "mark session cookies Secure")
	serverCmd.Flags().String("migration-root", "migrations", "directory of export folders")
}

type serverOptions struct {
	app       appOptions
	migrate   bool
	watchRBAC bool
}

func runServer(opts serverOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.migrate {
		if url := os.Getenv("DATABASE_URL"); url != "" && !enmsdb.IsSQLite(url) {
			if err := migrateUp(url); err != nil {
				return err
			}
		}
	}

	s, _, err := loadServer(ctx, opts.app)
	if err != nil {
		return err
	}
	endpoints.RegisterAll(s)

	if opts.watchRBAC {
		go func() {
			if err := s.WatchRBAC(ctx); err != nil {
				s.Log.WithError(err).Error("rbac watcher stopped")
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errc
}
