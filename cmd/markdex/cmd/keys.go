package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newKeysCmd creates the keys command.
func newKeysCmd() *cobra.Command {
	var (
		prefix string
		after  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List document keys in lexicographic order",
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

			for _, key := range svc.ListKeys(prefix, after, limit) {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Restrict to keys with this prefix")
	cmd.Flags().StringVar(&after, "after", "", "Start strictly after this key")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum keys to print (default from config)")

	return cmd
}
