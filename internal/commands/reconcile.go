package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "reconcile <accountID>",
		Short: "Compare an account's stored balance with its transaction log",
		Long: "Recomputes opening balance plus the effect of every transaction touching the account and reports the drift. " +
			"With --fix the stored balance is corrected through the ledger.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID := args[0]

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			// Operators act on behalf of the owner.
			account, err := a.repos.AccountRepo.FindAccountByID(cmd.Context(), accountID)
			if err != nil {
				return fmt.Errorf("looking up account %s: %w", accountID, err)
			}

			report, err := a.services.Account.ReconcileAccount(cmd.Context(), accountID, account.UserID, fix)
			if err != nil {
				return err
			}

			if !report.Drift.IsZero() && !report.Corrected {
				opts.logger.Warn("Balance drift detected, re-run with --fix to correct it",
					slog.String("account_id", accountID),
					slog.String("drift", report.Drift.String()))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "write the recomputed balance back")

	return cmd
}
