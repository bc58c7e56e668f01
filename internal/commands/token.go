package commands

import (
	"fmt"
	"time"

	"github.com/SscSPs/pfm_backend/internal/utils"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "token <userID>",
		Short: "Mint an API bearer token for a user (development and operations)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.IsProduction {
				return fmt.Errorf("token minting is disabled in production")
			}
			if expiry <= 0 {
				expiry = opts.cfg.JWTExpiryDuration
			}
			token, err := utils.GenerateJWT(args[0], opts.cfg.JWTSecret, expiry, opts.cfg.JWTIssuer)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default JWT_EXPIRY_DURATION)")

	return cmd
}
