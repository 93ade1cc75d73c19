package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the selectable model choices.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := root.backendFor(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			ms, err := b.Models(ctx)
			if err != nil {
				return err
			}
			return printModels(cmd.OutOrStdout(), root.output, ms)
		},
	}
}
