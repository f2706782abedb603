package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(cfgFile, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many events each channel holds in storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := SetupLogging(effectiveLevel(*logLevel, cfg))

			store, err := storage.OpenSQLite(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tENABLED\tPRIORITY\tSTORED")
			for _, name := range cfg.ChannelNames() {
				cc := cfg.Channels[name]
				n, err := store.Count(withCommandContext(cmd), name)
				if err != nil {
					return fmt.Errorf("counting channel %s: %w", name, err)
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%d\n", name, cc.Enabled, priorityName(cc.Priority), n)
			}
			return w.Flush()
		},
	}
}

func priorityName(p string) string {
	if p == "" {
		return "default"
	}
	return p
}

// withCommandContext returns the command's context, or Background when the
// command runs outside ExecuteContext.
func withCommandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
