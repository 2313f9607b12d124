package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user>",
	Short: "Issue a bearer token for a user",
	Long: `Issue a bearer token for the REST API, signed with SECRET_KEY.

Example:
  curl -H "Authorization: Bearer $(enmsctl token admin)" http://localhost:5000/rest/workers`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := issueToken(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token for %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Println(raw)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(ctx context.Context, name string) (string, error) {
	s, _, err := loadServer(ctx, appOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Shutdown(context.Background()) }()

	var raw string
	err = withSession(ctx, s, func(session store.Session) error {
		user, err := fetchUser(ctx, session, name)
		if err != nil {
			return err
		}
		raw, err = s.Tokens.Issue(user.ID)
		return err
	})
	return raw, err
}
