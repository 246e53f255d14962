package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/simonswine/jsonnet-exporter/internal/server"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Validate all modules and serve /probe and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return server.Run(ctx, opts.serverOptions())
}
