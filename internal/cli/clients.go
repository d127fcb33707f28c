package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pixwebhook/internal/clients"
)

func newClientsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Inspect and correct the payer name to account map",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known payers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClientsList(cmd, opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-id NAME ACCOUNT_ID",
		Short: "Set the billing account id of a known payer",
		Long: `Set-id records the billing account id for a payer that was created
without one. An id already held by another payer is refused.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClientsSetID(cmd, opts, args[0], args[1])
		},
	})
	return cmd
}

func runClientsList(cmd *cobra.Command, opts *options) error {
	a, err := loadApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := a.repository()
	if err != nil {
		return err
	}
	recs, err := repo.ListAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tACCOUNT ID")
	for _, r := range recs {
		id := "-"
		if r.HasID() {
			id = strconv.FormatInt(*r.AccountID, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, id)
	}
	return tw.Flush()
}

func runClientsSetID(cmd *cobra.Command, opts *options, name, rawID string) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("account id must be a positive integer, got %q", rawID)
	}

	a, err := loadApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := a.repository()
	if err != nil {
		return err
	}
	res, err := clients.NewResolver(repo).SetID(cmd.Context(), name, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %d\n", res.Name, *res.AccountID)
	return nil
}
