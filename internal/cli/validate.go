package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/pipeline"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			// Create a silent logger for validation (discards output)
			log := logger.NewConsoleLogger(io.Discard)

			p, err := pipeline.New(cfg, log)
			if err != nil {
				return fmt.Errorf("pipeline configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid:\n")
			fmt.Fprintf(out, "  Channels:  %d configured\n", p.ChannelCount())
			fmt.Fprintf(out, "  Ingestors: %d enabled\n", p.IngestorCount())
			fmt.Fprintf(out, "  Sender:    %s\n", p.SenderName())
			return nil
		},
	}
}
