package cmd

import (
	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/store"
)

func newStatsCmd() *cobra.Command {
	var checkConsistency bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.store.Metadata.CountItems(ctx, store.ItemFilter{})
			if err != nil {
				return err
			}
			units, err := a.store.Metadata.CountUnits(ctx)
			if err != nil {
				return err
			}
			_, totalArtifacts, err := a.registry.List(ctx, 1)
			if err != nil {
				return err
			}

			stats := map[string]any{
				"data_dir":  a.cfg.Storage.DataDir,
				"items":     items,
				"units":     units,
				"vectors":   a.store.Vectors.Count(),
				"artifacts": totalArtifacts,
				"embedder":  a.embedder.ModelName(),
			}

			if checkConsistency {
				onlyMeta, onlyVec, err := a.store.CheckConsistency(ctx)
				if err != nil {
					return err
				}
				stats["orphan_metadata"] = len(onlyMeta)
				stats["orphan_vectors"] = len(onlyVec)
			}

			a.printer.Stats(stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkConsistency, "check", false, "Cross-check metadata against the vector index")
	return cmd
}
