package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"applimon/internal/config"
	"applimon/internal/history"
	"applimon/internal/statelog"

	"github.com/spf13/cobra"
)

func newStatusCommand(opts *options) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			entry, err := statelog.Load(cfg.Log.Path, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(entry); err != nil {
				return err
			}

			if recent <= 0 || cfg.History.DSN == "" {
				return nil
			}

			store, err := history.New(cmd.Context(), cfg.History.DSN)
			if err != nil {
				return fmt.Errorf("failed to connect to history: %w", err)
			}
			defer store.Close(cmd.Context())

			rows, err := store.Recent(cmd.Context(), recent)
			if err != nil {
				return err
			}
			for _, o := range rows {
				fmt.Fprintf(out, "%s  marker=%d  %-8s  %.2f  notified=%t  %s\n",
					o.ObservedAt.Local().Format(statelog.DatetimeLayout), o.MarkerID, o.Status, o.Ratio, o.Notified, o.RunID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&recent, "history", 0, "also list this many recent observations from the history database")
	return cmd
}
