package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pixwebhook/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixwebhook %s (built %s, commit %s)\n",
				version.Version, version.BuildTime, version.GitCommit)
		},
	}
}
