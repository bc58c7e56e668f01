package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/SscSPs/pfm_backend/internal/platform/config"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/SscSPs/pfm_backend/internal/commands.Version=...".
var Version = "dev"

// rootOptions is shared by every subcommand once the persistent pre-run has loaded it.
type rootOptions struct {
	logLevel   string
	cfg        *config.Config
	logger     *slog.Logger
	loadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.LoadConfig)
}

func newRootCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	opts := &rootOptions{loadConfig: loadConfig}

	rootCmd := &cobra.Command{
		Use:     "pfm_backend",
		Short:   "Personal finance ledger backend",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newSweepCommand(opts),
		newMigrateCommand(opts),
		newReconcileCommand(opts),
		newTokenCommand(opts),
	)

	return rootCmd
}

func (o *rootOptions) init(logOutput io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", o.logLevel, err)
	}
	o.logger = slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)

	cfg, err := o.loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	o.cfg = cfg
	return nil
}
