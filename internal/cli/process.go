package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pixwebhook/internal/pipeline"
)

func newProcessCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Process one payment notification",
		Long: `Process reads one raw notification from file, or stdin when no file is
given, and runs extraction, client resolution and settlement.

The exit status is 1 only when the payer or amount cannot be extracted or the
client store fails. Settlement problems are reported but still exit 0.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, opts, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run result as JSON")
	return cmd
}

func runProcess(cmd *cobra.Command, opts *options, args []string, asJSON bool) error {
	raw, err := readMessage(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	a, err := loadApp(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(cmd.Context())
	if err != nil {
		return err
	}

	res, runErr := p.Process(cmd.Context(), raw)
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printResult(out, res)
	}
	return runErr
}

func readMessage(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return raw, nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "Run:         %s\n", res.RunID)
	if res.ArchivePath != "" {
		fmt.Fprintf(w, "Archived:    %s\n", res.ArchivePath)
	}
	if res.Payment == nil {
		return
	}
	fmt.Fprintf(w, "Payer:       %s\n", res.Payment.PayerName)
	fmt.Fprintf(w, "Amount:      %s\n", res.Payment.Amount.BRL())

	if res.Client == nil {
		return
	}
	if res.Client.AccountID != nil {
		fmt.Fprintf(w, "Client:      %s (account %d)\n", res.Client.Status, *res.Client.AccountID)
	} else {
		fmt.Fprintf(w, "Client:      %s\n", res.Client.Status)
	}

	switch {
	case res.AlreadySettled != nil:
		fmt.Fprintf(w, "Settlement:  already settled as %s in run %s\n",
			res.AlreadySettled.Reference, res.AlreadySettled.RunID)
	case res.Settlement != nil:
		s := res.Settlement
		fmt.Fprintf(w, "Settlement:  %s", s.Status)
		if s.Reference != "" {
			fmt.Fprintf(w, ", reference %s", s.Reference)
		}
		if s.TransactionID != nil {
			fmt.Fprintf(w, ", transaction %d", *s.TransactionID)
		}
		fmt.Fprintln(w)
		if res.SettlementError != "" {
			fmt.Fprintf(w, "Error:       %s\n", res.SettlementError)
		}
	}
}
