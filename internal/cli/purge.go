package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/log-shipper/internal/channel"
	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/sender"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
)

// NewPurgeCmd creates the purge command. It refuses channels with batches in
// flight, since a running shipper would still reconcile them.
func NewPurgeCmd(cfgFile, logLevel *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "purge <channel>...",
		Short: "Disable channels and delete their stored events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := SetupLogging(effectiveLevel(*logLevel, cfg))

			snd, err := sender.New(cfg.Sender, log)
			if err != nil {
				return fmt.Errorf("creating sender: %w", err)
			}
			store, err := storage.OpenSQLite(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			ctx := withCommandContext(cmd)
			reg := channel.NewRegistry(store, snd, log)
			for _, name := range args {
				cc, ok := cfg.Channels[name]
				if !ok {
					return fmt.Errorf("unknown channel: %s", name)
				}
				leased, err := store.Leased(ctx, name)
				if err != nil {
					return fmt.Errorf("checking channel %s: %w", name, err)
				}
				if leased > 0 && !force {
					return fmt.Errorf("channel %s has %d events in flight: stop the shipper first, or use --force if it crashed", name, leased)
				}
				chCfg, err := channel.NewConfig(name, cc)
				if err != nil {
					return err
				}
				// Suspended units never hand batches to the sender.
				if _, err := reg.Add(chCfg, channel.WithSuspended()); err != nil {
					return err
				}
			}
			if err := reg.Start(ctx); err != nil {
				return fmt.Errorf("starting channels: %w", err)
			}
			defer func() { _ = reg.Stop(ctx) }()

			for _, name := range args {
				unit, _ := reg.Get(name)
				before, err := store.Count(ctx, name)
				if err != nil {
					return fmt.Errorf("counting channel %s: %w", name, err)
				}
				if err := unit.Disable(ctx, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %s: %d events\n", name, before)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "purge even when batches are in flight (only after a crash)")
	return cmd
}
