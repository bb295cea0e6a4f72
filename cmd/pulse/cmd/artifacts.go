package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/registry"
)

func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"models"},
		Short:   "Manage the versioned model artifact registry",
	}

	cmd.AddCommand(newArtifactsRegisterCmd())
	cmd.AddCommand(newArtifactsListCmd())
	cmd.AddCommand(newArtifactsGetCmd())
	cmd.AddCommand(newArtifactsUpdateCmd())
	cmd.AddCommand(newArtifactsDeleteCmd())

	return cmd
}

func newArtifactsRegisterCmd() *cobra.Command {
	var req registry.RegisterRequest
	var metrics map[string]string

	cmd := &cobra.Command{
		Use:   "register <file>",
		Short: "Register a model artifact version",
		Long: `Register a model binary under a name and version. The file is
copied into the models directory; the same name/version pair can only
be registered once.

Example:
  pulse artifacts register clf.bin --name spam-clf --version 1.2.0 \
      --model-type classification --framework pytorch --metric f1=0.91`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			req.FilePath = args[0]
			req.Metrics = make(map[string]float64, len(metrics))
			for name, raw := range metrics {
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("metric %s: %w", name, err)
				}
				req.Metrics[name] = v
			}

			artifact, err := a.registry.Register(ctx, req)
			if err != nil {
				return err
			}
			a.printer.Artifact(artifact)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Artifact name (required)")
	cmd.Flags().StringVar(&req.Version, "version", "", "Artifact version (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "What this artifact does")
	cmd.Flags().StringVar(&req.UseCase, "use-case", "", "Intended use case")
	cmd.Flags().StringVar(&req.ModelType, "model-type", "", "Model type (classification, embedding, ...)")
	cmd.Flags().StringVar(&req.Framework, "framework", "", "Training framework")
	cmd.Flags().StringVar(&req.CreatedBy, "created-by", "", "Author")
	cmd.Flags().StringSliceVarP(&req.Tags, "tag", "t", nil, "Tag (repeatable)")
	cmd.Flags().StringToStringVar(&metrics, "metric", nil, "Metric as name=value (repeatable)")
	cmd.Flags().StringToStringVar(&req.Metadata, "meta", nil, "Metadata as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newArtifactsListCmd() *cobra.Command {
	var q registry.SearchQuery

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List or search registered artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) > 0 {
				q.Query = args[0]
			}
			artifacts, total, err := a.registry.Search(ctx, q)
			if err != nil {
				return err
			}
			a.printer.Artifacts(artifacts, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&q.UseCase, "use-case", "", "Filter by use case")
	cmd.Flags().StringVar(&q.ModelType, "model-type", "", "Filter by model type")
	cmd.Flags().StringVar(&q.Framework, "framework", "", "Filter by framework")
	cmd.Flags().StringSliceVarP(&q.Tags, "tag", "t", nil, "Require this tag (repeatable)")
	cmd.Flags().BoolVar(&q.IncludeInactive, "all", false, "Include deactivated artifacts")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 0, "Maximum results")

	return cmd
}

func newArtifactsGetCmd() *cobra.Command {
	var name, version string

	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one artifact by ID or by name and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			artifact, err := resolveArtifact(cmd, args, a, name, version)
			if err != nil {
				return err
			}
			a.printer.Artifact(artifact)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Artifact name (with --version)")
	cmd.Flags().StringVar(&version, "version", "", "Artifact version (with --name)")
	return cmd
}

func newArtifactsUpdateCmd() *cobra.Command {
	var (
		description, useCase string
		tags                 []string
		metrics              map[string]string
		metadata             map[string]string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an artifact's mutable fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid artifact id %q", args[0])
			}

			var req registry.UpdateRequest
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if cmd.Flags().Changed("use-case") {
				req.UseCase = &useCase
			}
			if cmd.Flags().Changed("tag") {
				req.Tags = tags
			}
			if len(metrics) > 0 {
				req.Metrics = make(map[string]float64, len(metrics))
				for name, raw := range metrics {
					v, err := strconv.ParseFloat(raw, 64)
					if err != nil {
						return fmt.Errorf("metric %s: %w", name, err)
					}
					req.Metrics[name] = v
				}
			}
			if len(metadata) > 0 {
				req.Metadata = metadata
			}

			artifact, err := a.registry.Update(ctx, id, req)
			if err != nil {
				return err
			}
			a.printer.Artifact(artifact)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Replace the description")
	cmd.Flags().StringVar(&useCase, "use-case", "", "Replace the use case")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Replace the tag set (repeatable)")
	cmd.Flags().StringToStringVar(&metrics, "metric", nil, "Replace metrics as name=value")
	cmd.Flags().StringToStringVar(&metadata, "meta", nil, "Replace metadata as key=value")
	return cmd
}

func newArtifactsDeleteCmd() *cobra.Command {
	var hard bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Deactivate an artifact, or remove it with --hard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid artifact id %q", args[0])
			}

			if hard {
				if err := a.registry.Delete(ctx, id); err != nil {
					return err
				}
				a.printer.Successf("artifact %d deleted", id)
				return nil
			}
			if err := a.registry.Deactivate(ctx, id); err != nil {
				return err
			}
			a.printer.Successf("artifact %d deactivated", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&hard, "hard", false, "Remove the row and the stored file")
	return cmd
}

func resolveArtifact(cmd *cobra.Command, args []string, a *app, name, version string) (*registry.Artifact, error) {
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact id %q", args[0])
		}
		return a.registry.Get(cmd.Context(), id)
	}
	if name == "" || version == "" {
		return nil, fmt.Errorf("provide an id argument or both --name and --version")
	}
	return a.registry.GetByNameVersion(cmd.Context(), name, version)
}
