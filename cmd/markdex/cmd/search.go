package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdex/markdex/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var (
		prefix     string
		keyword    string
		count      int
		cursor     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search documents and print one result page",
		Long: `Search syncs the local clone, then runs one page of the search
protocol. Without --keyword it lists keys in lexicographic order;
with --keyword it ranks by relevance. Pass the printed cursor back
via --cursor to fetch the next page.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := search.Cursor{Prefix: prefix, Keyword: keyword, Count: count}
			if cursor != "" {
				decoded, err := search.DecodeCursor(cursor)
				if err != nil {
					return err
				}
				c = decoded
			}

			ctx := cmd.Context()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Sync(ctx); err != nil {
				return err
			}

			result, err := svc.Search(ctx, c)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			for _, doc := range result.Items {
				fmt.Fprintln(out, doc.Key)
			}
			if result.NextCursor != "" {
				fmt.Fprintf(out, "\nnext: --cursor %s\n", result.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Restrict results to keys with this prefix")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Full-text keyword (empty lists keys in order)")
	cmd.Flags().IntVar(&count, "count", 0, "Page size (default from config)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Resume token from a previous page")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result page as JSON")

	return cmd
}
