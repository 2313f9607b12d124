package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'user' requires a subcommand (create, reset-password)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a user",
	Long: `Create a user. A password is generated and printed unless --password
is given.

Example:
  enmsctl user create admin --admin`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		admin, _ := cmd.Flags().GetBool("admin")
		password, _ := cmd.Flags().GetString("password")
		groups, _ := cmd.Flags().GetStringSlice("group")

		generated, err := createUser(cmd.Context(), args[0], password, admin, groups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create user %s: %v\n", args[0], err)
			os.Exit(1)
		}
		if generated != "" {
			fmt.Println(generated)
		}
	},
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <name>",
	Short: "Set a new password for a user",
	Long: `Set a new password for an existing user. The new password is printed.

Example:
  enmsctl user reset-password admin`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		password, err := resetPassword(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to reset password for %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Println(password)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userResetPasswordCmd)
	userCreateCmd.Flags().Bool("admin", false, "grant administrator rights")
	userCreateCmd.Flags().String("password", "", "password (generated when empty)")
	userCreateCmd.Flags().StringSlice("group", nil, "group to join (repeatable)")
}

func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// createUser returns the generated password, if any.
func createUser(ctx context.Context, name, password string, admin bool, groups []string) (string, error) {
	var generated string
	if password == "" {
		var err error
		if password, err = generatePassword(); err != nil {
			return "", err
		}
		generated = password
	}

	s, _, err := loadServer(ctx, appOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Shutdown(context.Background()) }()

	err = withSession(ctx, s, func(session store.Session) error {
		if _, err := session.FetchUser(ctx, name); err == nil {
			return fmt.Errorf("user %q already exists", name)
		}
		fields := map[string]interface{}{
			"name":     name,
			"password": password,
			"is_admin": admin,
		}
		if len(groups) > 0 {
			fields["groups"] = groups
		}
		if _, err := session.Factory(ctx, "user", fields, entity.UpdateOptions{}); err != nil {
			return err
		}
		return session.Log(ctx, "info", fmt.Sprintf("USER '%s' created from the command line", name))
	})
	return generated, err
}

func resetPassword(ctx context.Context, name string) (string, error) {
	password, err := generatePassword()
	if err != nil {
		return "", err
	}
	s, _, err := loadServer(ctx, appOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Shutdown(context.Background()) }()

	err = withSession(ctx, s, func(session store.Session) error {
		if _, err := fetchUser(ctx, session, name); err != nil {
			return err
		}
		_, err := session.Factory(ctx, "user", map[string]interface{}{
			"name":     name,
			"password": password,
		}, entity.UpdateOptions{})
		return err
	})
	return password, err
}
