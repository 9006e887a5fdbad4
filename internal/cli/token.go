package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// TokenCmd creates the token command.
func TokenCmd(env *Env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain the CSRF token and print it",
		Long: `Run the CSRF bootstrap against the backend and print the token held in
the cookie jar. A token persisted from an earlier run is reused unless
--force is given.`,
		Example: `  griha token
  griha token --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd.Context(), env, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "always call the cookie endpoint")
	return cmd
}

func runToken(ctx context.Context, env *Env, force bool) (err error) {
	rt, err := env.Open(ctx, "")
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	token, err := rt.EnsureToken(ctx, force)
	if err != nil {
		return fmt.Errorf("obtain csrf token: %w", err)
	}
	fmt.Fprintln(env.Stdout, token)
	return nil
}
