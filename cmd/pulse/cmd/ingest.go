package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/output"
)

type ingestOptions struct {
	recursive    bool
	includeGlobs []string
	excludeGlobs []string
	tags         []string
	declaredType string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index files or directories",
		Long: `Index files into the local store. Directories are scanned;
unchanged files are skipped by content hash, so re-running is cheap.

Examples:
  pulse ingest ./docs --recursive
  pulse ingest report.xlsx --tag finance --tag q3
  pulse ingest ./src -r --include "*.go" --exclude "**/testdata/*"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringSliceVar(&opts.includeGlobs, "include", nil, "Only index matching files (repeatable)")
	cmd.Flags().StringSliceVar(&opts.excludeGlobs, "exclude", nil, "Skip matching files (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Attach a tag to every indexed file (repeatable)")
	cmd.Flags().StringVar(&opts.declaredType, "type", "", "Force an extractor category for extension-less files")

	return cmd
}

func runIngest(cmd *cobra.Command, paths []string, opts ingestOptions) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fileOpts := ingest.FileOptions{
		DeclaredType: opts.declaredType,
		Tags:         opts.tags,
	}

	start := time.Now()
	combined := &ingest.Report{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot stat %s: %w", path, err)
		}
		var report *ingest.Report
		if info.IsDir() {
			report, err = a.pipeline.IngestDirectory(ctx, path, opts.recursive,
				opts.includeGlobs, opts.excludeGlobs, fileOpts)
			if err != nil {
				return err
			}
		} else {
			report = a.pipeline.IngestBatch(ctx, []string{path}, fileOpts)
		}
		combined.Total += report.Total
		combined.Successful += report.Successful
		combined.Failed += report.Failed
		combined.Results = append(combined.Results, report.Results...)
	}
	combined.BatchID = "combined"
	if len(paths) == 1 {
		combined.BatchID = ""
	}

	a.printer.IngestReport(combined)
	if !flags.jsonOutput {
		a.printer.Successf("done in %s", output.Elapsed(time.Since(start)))
	}
	if combined.Failed > 0 && combined.Successful == 0 {
		return fmt.Errorf("all %d files failed", combined.Failed)
	}
	return nil
}
