package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/pfm_backend/internal/core/domain"
	"github.com/SscSPs/pfm_backend/internal/platform/scheduler"
	"github.com/spf13/cobra"
)

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the recurring-transaction sweep once and print its counters",
		Long: "Materializes every recurring template due on or before the given date. " +
			"Safe to re-run: occurrences already emitted are detected by their idempotency key.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if date != "" {
				parsed, err := domain.ParseDate(date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				now = parsed
			}

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := scheduler.New(opts.cfg.SweepCron, a.services.Recurrence, opts.logger,
				scheduler.WithClock(func() time.Time { return now }))
			if err != nil {
				return err
			}

			result, err := sched.RunOnce(cmd.Context())
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(result); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "sweep as of this date (YYYY-MM-DD, default today in UTC)")

	return cmd
}
