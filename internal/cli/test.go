package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/simonswine/jsonnet-exporter/internal/server"
	"github.com/simonswine/jsonnet-exporter/pkg/modules"
)

var errTestsFailed = errors.New("module tests failed")

var (
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

type testOptions struct {
	modules []string
}

func newTestCmd(opts *globalOptions) *cobra.Command {
	topts := &testOptions{}
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run module tests and fail on any mismatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts, topts)
		},
	}
	cmd.Flags().StringSliceVarP(&topts.modules, "module", "m", nil, "only test these modules")
	return cmd
}

func runTest(cmd *cobra.Command, opts *globalOptions, topts *testOptions) error {
	cfg, err := server.LoadConfig(opts.serverOptions())
	if err != nil {
		return err
	}
	reg, err := server.NewRegistry(cfg)
	if err != nil {
		return err
	}
	names := reg.Names()
	if len(topts.modules) > 0 {
		names = topts.modules
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		mod, err := reg.Module(name)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("ERROR"), name, err)
			continue
		}
		for _, r := range modules.RunTests(cmd.Context(), mod, mod.Spec()) {
			if r.Passed {
				_, _ = fmt.Fprintf(out, "%s %s[%d]\n", passStyle.Render("PASS"), r.Module, r.Index)
				continue
			}
			failed++
			if r.Err != nil {
				_, _ = fmt.Fprintf(out, "%s %s[%d]: %v\n", failStyle.Render("ERROR"), r.Module, r.Index, r.Err)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s %s[%d]\n", failStyle.Render("FAIL"), r.Module, r.Index)
			writeDiff(out, r.Diff)
		}
	}
	if failed > 0 {
		_, _ = fmt.Fprintf(out, "%d failing\n", failed)
		return errTestsFailed
	}
	return nil
}

func writeDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"), strings.HasPrefix(text, "@@"):
			text = hunkStyle.Render(text)
		case strings.HasPrefix(text, "+"):
			text = addedStyle.Render(text)
		case strings.HasPrefix(text, "-"):
			text = removedStyle.Render(text)
		}
		_, _ = fmt.Fprintln(w, "    "+text)
	}
}
