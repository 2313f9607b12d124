package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
	Long:  `Manage the PostgreSQL schema and migrations. SQLite schemas are created by the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'db' requires a subcommand (migrate, down, status)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and/or upgrade the database schema",
	Long: `Create and/or upgrade the database schema.

Example:
  enmsctl db migrate`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := migrateUp(os.Getenv("DATABASE_URL")); err != nil {
			fmt.Println("Migration failed:", err)
			os.Exit(1)
		}
	},
}

var dbDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback database migrations",
	Long: `Rollback database migrations (default: 1).

Example:
  enmsctl db down
  enmsctl db down 2`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				fmt.Fprintf(os.Stderr, "Invalid number of steps %q\n", args[0])
				os.Exit(1)
			}
			steps = n
		}
		if err := migrateDown(os.Getenv("DATABASE_URL"), steps); err != nil {
			fmt.Println("Rollback failed:", err)
			os.Exit(1)
		}
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current migration version",
	Run: func(cmd *cobra.Command, args []string) {
		if err := migrationStatus(os.Getenv("DATABASE_URL")); err != nil {
			fmt.Println("Failed to get status:", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbDownCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

func migrateUp(url string) error {
	m, err := enmsdb.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)

	ran, err := m.Up()
	if err != nil {
		return err
	}
	if !ran {
		fmt.Println("No migrations to run - database is up to date")
		return nil
	}
	version, _, _ = m.Version()
	fmt.Printf("Migrated to version: %d\n", version)
	return nil
}

func migrateDown(url string, steps int) error {
	m, err := enmsdb.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	fmt.Printf("Rolling back %d migration(s)...\n", steps)
	if err := m.Down(steps); err != nil {
		return err
	}
	version, _, _ := m.Version()
	fmt.Printf("Rolled back to version: %d\n", version)
	return nil
}

func migrationStatus(url string) error {
	m, err := enmsdb.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Println("No migrations have been applied yet")
		return nil
	}
	fmt.Printf("Current version: %d\n", version)
	if dirty {
		fmt.Println("Warning: Database is in a dirty state")
	}
	files, err := enmsdb.MigrationFiles()
	if err != nil {
		return err
	}
	fmt.Printf("Known migrations: %d\n", len(files))
	return nil
}
