package cmd

import (
	"github.com/spf13/cobra"
)

func newRecentCmd() *cobra.Command {
	var days, topK int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently indexed items",
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
			items, total, err := a.engine.Recent(ctx, days, topK)
			if err != nil {
				return err
			}
			a.printer.Items(items, total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "Look back this many days")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum items (default from config)")
	return cmd
}
