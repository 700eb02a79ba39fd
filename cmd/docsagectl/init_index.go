package main

import (
	"github.com/spf13/cobra"
)

func newInitIndexCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "init-index",
		Short: "Create the vector index, or verify an existing one",
		Long: `Create the configured vector index (1536 dimensions, cosine by default).

Running it again is harmless. It fails when an index with the same name
exists with a different dimension or metric.

Examples:
  docsagectl init-index
  docsagectl --config config/prod.yaml init-index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.EnsureIndex(ctx); err != nil {
				return err
			}
			spec := a.IndexSpec()
			cmd.Printf("Index %s ready (%d dimensions, %s)\n", spec.Name, spec.Dimension, spec.Metric)
			return nil
		},
	}
}
