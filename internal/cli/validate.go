package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simonswine/jsonnet-exporter/internal/server"
	"github.com/simonswine/jsonnet-exporter/pkg/modules"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every module and run its tests; output mismatches are warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(opts.serverOptions())
			if err != nil {
				return err
			}
			reg, err := server.NewRegistry(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sum, err := modules.Validate(cmd.Context(), reg, func(r modules.TestResult) {
				if r.Result() == modules.ResultFail {
					_, _ = fmt.Fprintf(out, "WARNING module %q test %d: output mismatch\n", r.Module, r.Index)
				}
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "ok: %d modules, %d tests passed, %d mismatched\n", sum.Modules, sum.Passed, sum.Failed)
			return err
		},
	}
}
