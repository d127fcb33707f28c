// Package cli implements the pixwebhook command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pixwebhook",
		Short: "Settle Pix payment notifications against open invoices",
		Long: `pixwebhook reads bank Pix notifications, maps the payer to a billing
account and records the payment against that account's open invoices.

Run it once per message with "process" or as a webhook receiver with "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file (default $PIXWEBHOOK_CONFIG)")

	rootCmd.AddCommand(newProcessCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newClientsCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	rootCmd := newRootCmd()
	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
