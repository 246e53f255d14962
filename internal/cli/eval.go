package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonswine/jsonnet-exporter/internal/server"
)

type evalOptions struct {
	module string
	input  string
}

func newEvalCmd(opts *globalOptions) *cobra.Command {
	eopts := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate one module against a JSON input and print the metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(eopts.module) == "" {
				return errors.New("--module is required")
			}
			input, err := readInput(cmd.InOrStdin(), eopts.input)
			if err != nil {
				return err
			}
			cfg, err := server.LoadConfig(opts.serverOptions())
			if err != nil {
				return err
			}
			reg, err := server.NewRegistry(cfg)
			if err != nil {
				return err
			}
			mod, err := reg.Module(eopts.module)
			if err != nil {
				return err
			}
			out, err := mod.Evaluate(cmd.Context(), input)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&eopts.module, "module", "m", "", "module name")
	fs.StringVarP(&eopts.input, "input", "i", "-", "input JSON file, '-' for stdin")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	// #nosec G304 -- path is provided by the operator.
	b, err := os.ReadFile(path)
	return string(b), err
}
