package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/search"
)

func newFacetsCmd() *cobra.Command {
	var fileTypes, tags []string

	cmd := &cobra.Command{
		Use:   "facets [query]",
		Short: "Summarize the index by file type, kind, tag, and age",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			facets, err := a.engine.Facets(ctx, strings.Join(args, " "), search.Options{
				FileTypes: fileTypes,
				Tags:      tags,
			})
			if err != nil {
				return err
			}
			a.printer.Facets(facets)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&fileTypes, "file-type", nil, "Restrict to file extensions (repeatable)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Restrict to tags (repeatable)")
	return cmd
}
