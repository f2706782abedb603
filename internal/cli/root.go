package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "log-shipper",
		Short: "A durable log shipper with batched, at-least-once delivery",
		Long: `log-shipper reads logs from local sources (file, syslog, journal, stdin),
stores them durably in per-channel buffers and ships them in batches to one
backend (stdout, file, loki, victorialogs, elasticsearch, kafka).

Events survive restarts: anything not acknowledged by the backend is sent
again on the next run.

Hot-reload: When a config file is specified, enabling or disabling a channel
or an ingestor is applied without a restart.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config file")

	rootCmd.AddCommand(
		NewRunCmd(&cfgFile, &logLevel),
		NewValidateCmd(&cfgFile),
		NewStatusCmd(&cfgFile, &logLevel),
		NewPurgeCmd(&cfgFile, &logLevel),
		NewVersionCmd(),
	)

	return rootCmd
}
