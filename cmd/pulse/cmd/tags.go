package cmd

import (
	"github.com/spf13/cobra"
)

func newTagsCmd() *cobra.Command {
	var limit int
	var search []string
	var matchAll bool

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags or find items carrying them",
		Long: `Without flags, lists tags by usage count. With --find, ranks the
items carrying the given tags.

Examples:
  pulse tags
  pulse tags --find finance --find q3 --match-all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(search) > 0 {
				resp, err := a.engine.SearchByTags(ctx, search, matchAll, a.engine.DefaultTopK())
				if err != nil {
					return err
				}
				a.printer.SearchResponse(resp)
				return nil
			}

			counts, err := a.store.Metadata.TagCounts(ctx, limit)
			if err != nil {
				return err
			}
			a.printer.TagCounts(counts)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum tags to list")
	cmd.Flags().StringSliceVar(&search, "find", nil, "Find items with this tag (repeatable)")
	cmd.Flags().BoolVar(&matchAll, "match-all", false, "Require every tag instead of any")
	return cmd
}
