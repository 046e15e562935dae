package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Sync(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "synced revision %s (view generation %d)\n",
				svc.LastSynced(), svc.ViewGeneration())
			return nil
		},
	}
}
