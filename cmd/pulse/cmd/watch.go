package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		includeGlobs []string
		excludeGlobs []string
		tags         []string
		debounce     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory and keep the index current",
		Long: `Watch a directory for changes. New and modified files are
re-ingested, deleted files leave the index. Runs until interrupted.

Example:
  pulse watch ./docs --include "*.md" --tag docs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := watch.NewWatcher(args[0], watch.Options{
				Debounce:     debounce,
				IncludeGlobs: includeGlobs,
				ExcludeGlobs: excludeGlobs,
			}, a.logger)
			if err != nil {
				return err
			}

			if !flags.jsonOutput {
				a.printer.Successf("watching %s", w.Root())
			}

			runner := watch.NewRunner(w, a.pipeline, a.store, ingest.FileOptions{Tags: tags}, a.logger)
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&includeGlobs, "include", nil, "Only watch matching files (repeatable)")
	cmd.Flags().StringSliceVar(&excludeGlobs, "exclude", nil, "Ignore matching files (repeatable)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Attach a tag to every re-indexed file (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "Settle window before applying changes")
	return cmd
}
