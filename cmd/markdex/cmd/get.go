package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newGetCmd creates the get command.
func newGetCmd() *cobra.Command {
	var (
		rendered   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get <key>...",
		Short: "Print one or more documents by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Sync(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if jsonOutput || len(args) > 1 {
				docs := svc.GetMany(ctx, args)
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"items": docs})
			}

			doc, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if rendered {
				fmt.Fprintln(out, doc.Rendered)
			} else {
				fmt.Fprintln(out, doc.Content)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rendered, "rendered", false, "Print rendered HTML instead of raw markdown")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print documents as JSON")

	return cmd
}
