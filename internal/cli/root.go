package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonswine/jsonnet-exporter/internal/server"
)

type globalOptions struct {
	cfgPath  string
	bindAddr string
	jpath    []string
}

func (o *globalOptions) serverOptions() server.Options {
	return server.Options{
		ConfigFile:   strings.TrimSpace(o.cfgPath),
		ListenAddr:   strings.TrimSpace(o.bindAddr),
		LibraryPaths: append([]string(nil), o.jpath...),
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "jsonnet-exporter",
		Short:         "Prometheus exporter turning JSON endpoints into metrics with Jsonnet",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.cfgPath, "config-file", "c", "config.yaml", "config yaml path")
	fs.StringVar(&opts.bindAddr, "bind-addr", "", "listen address (overrides server.listen)")
	fs.StringArrayVarP(&opts.jpath, "jpath", "J", nil, "additional Jsonnet library search path, repeatable")

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newTestCmd(opts),
		newEvalCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTestsFailed) {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
		}
		return 1
	}
	return 0
}
