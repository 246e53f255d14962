package modules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonswine/jsonnet-exporter/pkg/config"
	"github.com/simonswine/jsonnet-exporter/pkg/engine"
	"github.com/simonswine/jsonnet-exporter/pkg/exposition"
	"github.com/simonswine/jsonnet-exporter/pkg/manifest"
)

const requestsProgram = `{
  process(input):: {
    requests_total: {
      type: 'gauge',
      help: 'Total requests.',
      series: [{ value: input.count }],
    },
  },
}`

const requestsOutput = "# HELP requests_total Total requests.\n" +
	"# TYPE requests_total gauge\n" +
	"requests_total 5\n"

func newTestRegistry(t *testing.T, mods map[string]config.ModuleSpec) *Registry {
	t.Helper()
	reg, err := NewRegistry(&config.Config{Modules: mods}, engine.New(engine.Options{}), Options{CacheSize: 4})
	require.NoError(t, err)
	return reg
}

func TestModule_EvaluateEndToEnd(t *testing.T) {
	spec := config.ModuleSpec{
		Jsonnet: requestsProgram,
		Tests:   []config.ModuleTest{{Input: `{"count": 5}`, Output: requestsOutput}},
	}
	mod, err := Load(engine.New(engine.Options{}), "requests", spec)
	require.NoError(t, err)
	assert.Equal(t, "requests", mod.Name())

	out, err := mod.Evaluate(context.Background(), `{"count": 5}`)
	require.NoError(t, err)
	assert.Equal(t, requestsOutput, string(out))

	results := RunTests(context.Background(), mod, spec)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, ResultPass, results[0].Result())
	assert.Empty(t, results[0].Diff)
}

func TestModule_EvaluateValue(t *testing.T) {
	mod, err := Load(engine.New(engine.Options{}), "requests", config.ModuleSpec{Jsonnet: requestsProgram})
	require.NoError(t, err)

	out, err := mod.EvaluateValue(context.Background(), map[string]any{"count": 5})
	require.NoError(t, err)
	assert.Equal(t, requestsOutput, string(out))
}

func TestModule_IndependentInstancesAgree(t *testing.T) {
	eng := engine.New(engine.Options{})
	spec := config.ModuleSpec{Jsonnet: requestsProgram}
	a, err := Load(eng, "a", spec)
	require.NoError(t, err)
	b, err := Load(eng, "b", spec)
	require.NoError(t, err)

	for _, input := range []string{`{"count": 5}`, `{"count": 7.25}`, `{"count": 5}`} {
		outA, err := a.Evaluate(context.Background(), input)
		require.NoError(t, err)
		outB, err := b.Evaluate(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, string(outA), string(outB))
	}
}

func TestModule_PipelineStages(t *testing.T) {
	cases := []struct {
		name  string
		code  string
		stage Stage
		is    error
	}{
		{
			name:  "evaluate",
			code:  `{ process(input):: error 'boom' }`,
			stage: StageEvaluate,
		},
		{
			name:  "decode",
			code:  `{ process(input):: { m: { type: 'summary' } } }`,
			stage: StageDecode,
			is:    manifest.ErrUnknownMetricType,
		},
		{
			name:  "render",
			code:  `{ process(input):: { m: { type: 'gauge', label_names: ['a'], series: [{ value: 1 }] } } }`,
			stage: StageRender,
			is:    exposition.ErrLabelArityMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mod, err := Load(engine.New(engine.Options{}), "m", config.ModuleSpec{Jsonnet: tc.code})
			require.NoError(t, err)
			_, err = mod.Evaluate(context.Background(), `{}`)
			require.Error(t, err)

			var pe *PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "m", pe.Module)
			assert.Equal(t, tc.stage, pe.Stage)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	eng := engine.New(engine.Options{})

	_, err := Load(eng, "both", config.ModuleSpec{Jsonnet: "{}", JsonnetPath: "x.jsonnet"})
	assert.ErrorIs(t, err, config.ErrAmbiguousOrMissingSource)

	_, err = Load(eng, "syntax", config.ModuleSpec{Jsonnet: "{ process(input): "})
	var pe *PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageLoad, pe.Stage)
	var le *engine.LoadError
	assert.True(t, errors.As(err, &le))
}

func TestModule_DebugWalk(t *testing.T) {
	var lines []string
	reg, err := NewRegistry(&config.Config{Modules: map[string]config.ModuleSpec{
		"requests": {Jsonnet: requestsProgram},
	}}, engine.New(engine.Options{}), Options{Debugf: func(format string, args ...any) {
		lines = append(lines, format)
	}})
	require.NoError(t, err)

	mod, err := reg.Module("requests")
	require.NoError(t, err)
	_, err = mod.Evaluate(context.Background(), `{"count": 1}`)
	require.NoError(t, err)
	assert.NotEmpty(t, lines)
}

func TestRunTests_MismatchDiff(t *testing.T) {
	spec := config.ModuleSpec{
		Jsonnet: requestsProgram,
		Tests: []config.ModuleTest{
			{Input: `{"count": 6}`, Output: requestsOutput},
			{Input: `not json`, Output: requestsOutput},
		},
	}
	mod, err := Load(engine.New(engine.Options{}), "requests", spec)
	require.NoError(t, err)

	results := RunTests(context.Background(), mod, spec)
	require.Len(t, results, 2)

	assert.False(t, results[0].Passed)
	assert.Equal(t, ResultFail, results[0].Result())
	assert.Contains(t, results[0].Diff, "--- expected")
	assert.Contains(t, results[0].Diff, "+++ actual")
	assert.Contains(t, results[0].Diff, "-requests_total 5")
	assert.Contains(t, results[0].Diff, "+requests_total 6")

	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, ResultError, results[1].Result())
	assert.Error(t, results[1].Err)
}

func TestRegistry_LookupAndCache(t *testing.T) {
	reg := newTestRegistry(t, map[string]config.ModuleSpec{
		"zeta":  {Jsonnet: requestsProgram},
		"alpha": {Jsonnet: requestsProgram},
	})
	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	_, err := reg.Lookup("missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	_, err = reg.Module("missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	m1, err := reg.Module("alpha")
	require.NoError(t, err)
	m2, err := reg.Module("alpha")
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func TestRegistry_FileModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.libsonnet"), []byte(`{ help: 'Total requests.' }`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requests.jsonnet"), []byte(`
local lib = import 'lib.libsonnet';
{
  process(input):: {
    requests_total: { type: 'gauge', help: lib.help, series: [{ value: input.count }] },
  },
}`), 0o600))

	reg := newTestRegistry(t, map[string]config.ModuleSpec{
		"requests": {JsonnetPath: filepath.Join(dir, "requests.jsonnet")},
	})
	mod, err := reg.Module("requests")
	require.NoError(t, err)
	out, err := mod.Evaluate(context.Background(), `{"count": 5}`)
	require.NoError(t, err)
	assert.Equal(t, requestsOutput, string(out))
}

func TestValidate(t *testing.T) {
	reg := newTestRegistry(t, map[string]config.ModuleSpec{
		"good": {
			Jsonnet: requestsProgram,
			Tests: []config.ModuleTest{
				{Input: `{"count": 5}`, Output: requestsOutput},
				{Input: `{"count": 1}`, Output: requestsOutput},
			},
		},
		"broken": {Jsonnet: `{ process: 1 }`},
		"erroring": {
			Jsonnet: `{ process(input):: error 'nope' }`,
			Tests:   []config.ModuleTest{{Input: `{}`, Output: ""}},
		},
	})

	var reported []TestResult
	sum, err := Validate(context.Background(), reg, func(r TestResult) { reported = append(reported, r) })
	require.Error(t, err)

	assert.Equal(t, Summary{Modules: 3, Passed: 1, Failed: 1, Errored: 1}, sum)
	assert.Len(t, reported, 3)

	msg := err.Error()
	assert.True(t, strings.Index(msg, `"broken"`) < strings.Index(msg, `"erroring"`), msg)
	assert.NotContains(t, msg, `"good"`)

	var vi *ValidationIssue
	require.True(t, errors.As(err, &vi))
	assert.Equal(t, "broken", vi.Module)
	assert.Equal(t, -1, vi.Test)
}

func TestValidate_AllPass(t *testing.T) {
	reg := newTestRegistry(t, map[string]config.ModuleSpec{
		"a": {Jsonnet: requestsProgram, Tests: []config.ModuleTest{{Input: `{"count": 5}`, Output: requestsOutput}}},
		"b": {Jsonnet: requestsProgram},
	})
	sum, err := Validate(context.Background(), reg, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Modules: 2, Passed: 1}, sum)
}
