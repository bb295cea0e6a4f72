// Package cmd provides the CLI commands for pulse.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/pkg/version"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	dataDir    string
	jsonOutput bool
	debug      bool
}

var flags rootFlags

// NewRootCmd creates the root command for the pulse CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Local context processing and retrieval engine",
		Long: `Pulse ingests heterogeneous files (documents, spreadsheets,
structured data, source code) into a searchable local index and serves
semantic queries over it. A versioned model registry tracks the
artifacts trained on that data.

All state lives under a single data directory (~/.pulse by default).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("pulse version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Override the data directory")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Emit JSON instead of styled text")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSimilarCmd())
	cmd.AddCommand(newRecentCmd())
	cmd.AddCommand(newFacetsCmd())
	cmd.AddCommand(newTagsCmd())
	cmd.AddCommand(newTypesCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newArtifactsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI and prints any terminal error.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
