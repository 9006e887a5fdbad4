package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the griha command tree.
func NewRootCmd(env *Env, version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "griha",
		Short:   "CSRF-aware client for the griha backend API",
		Version: version,
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	root.AddCommand(TokenCmd(env))
	root.AddCommand(RequestCmd(env))
	return root
}
