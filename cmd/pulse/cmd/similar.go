package cmd

import (
	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/search"
)

func newSimilarCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "similar <unit-id>",
		Short: "Find content similar to an indexed unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if topK <= 0 {
				topK = a.engine.DefaultTopK()
			}
			results, err := a.engine.Similar(ctx, args[0], topK)
			if err != nil {
				return err
			}
			a.printer.SearchResponse(&search.Response{
				Results: results,
				Total:   len(results),
			})
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum results (default from config)")
	return cmd
}
