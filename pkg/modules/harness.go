package modules

import (
	"context"
	"errors"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/simonswine/jsonnet-exporter/pkg/config"
)

const (
	ResultPass  = "pass"
	ResultFail  = "fail"
	ResultError = "error"
)

type TestResult struct {
	Module   string
	Index    int
	Passed   bool
	Actual   string
	Expected string
	// Diff is a unified diff from Expected to Actual, empty when Passed.
	Diff string
	Err  error
}

func (r TestResult) Result() string {
	switch {
	case r.Err != nil:
		return ResultError
	case r.Passed:
		return ResultPass
	default:
		return ResultFail
	}
}

// RunTests evaluates every test case of spec with mod and compares the
// output byte for byte.
func RunTests(ctx context.Context, mod *Module, spec config.ModuleSpec) []TestResult {
	out := make([]TestResult, 0, len(spec.Tests))
	for i, tc := range spec.Tests {
		res := TestResult{Module: mod.Name(), Index: i, Expected: tc.Output}
		actual, err := mod.Evaluate(ctx, tc.Input)
		if err != nil {
			res.Err = err
			out = append(out, res)
			continue
		}
		res.Actual = string(actual)
		res.Passed = res.Actual == res.Expected
		if !res.Passed {
			res.Diff = unifiedDiff(res.Expected, res.Actual)
		}
		out = append(out, res)
	}
	return out
}

func unifiedDiff(expected, actual string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// Summary counts test results across all validated modules.
type Summary struct {
	Modules int
	Passed  int
	Failed  int
	Errored int
}

func (s *Summary) add(r TestResult) {
	switch r.Result() {
	case ResultPass:
		s.Passed++
	case ResultFail:
		s.Failed++
	default:
		s.Errored++
	}
}

// Validate loads every module of reg and runs its tests. Each result is
// passed to report when it is non-nil. Load failures and test evaluation
// errors are returned joined as *ValidationIssue values; mismatching output
// is only reported.
func Validate(ctx context.Context, reg *Registry, report func(TestResult)) (Summary, error) {
	var (
		sum    Summary
		issues []error
	)
	for _, name := range reg.Names() {
		if err := ctx.Err(); err != nil {
			issues = append(issues, err)
			break
		}
		sum.Modules++
		mod, err := reg.Module(name)
		if err != nil {
			issues = append(issues, validationIssue(err, name, -1))
			continue
		}
		for _, res := range RunTests(ctx, mod, mod.Spec()) {
			sum.add(res)
			if report != nil {
				report(res)
			}
			if res.Err != nil {
				issues = append(issues, validationIssue(res.Err, name, res.Index))
			}
		}
	}
	return sum, errors.Join(issues...)
}
