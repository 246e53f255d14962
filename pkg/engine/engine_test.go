package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterModule = `
{
  process(input):: {
    requests_total: {
      type: 'gauge',
      series: [{ value: input.body.count }],
    },
  },
}
`

func decode(t *testing.T, b []byte) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func TestLoadInline_Evaluate(t *testing.T) {
	p, err := New(Options{}).Load(Inline(counterModule))
	require.NoError(t, err)
	assert.Equal(t, InlineIdentity, p.Identity())

	out, err := p.Evaluate(context.Background(), `{"body": {"count": 5}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"requests_total": map[string]any{
			"type":   "gauge",
			"series": []any{map[string]any{"value": 5.0}},
		},
	}, decode(t, out))
}

func TestEvaluate_FreshBindingPerCall(t *testing.T) {
	p, err := New(Options{}).Load(Inline(`{ process(input):: { v: input.body } }`))
	require.NoError(t, err)

	a, err := p.EvaluateInput(context.Background(), map[string]any{"body": "first"})
	require.NoError(t, err)
	b, err := p.EvaluateInput(context.Background(), map[string]any{"body": "second"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"v": "first"}, decode(t, a))
	assert.Equal(t, map[string]any{"v": "second"}, decode(t, b))
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		src  Source
	}{
		{name: "empty", src: Source{}},
		{name: "both set", src: Source{Code: "{}", Path: "x.jsonnet"}},
		{name: "syntax error", src: Inline(`{ process(input):: `)},
		{name: "unknown identifier", src: Inline(`{ process(input):: missingVar }`)},
		{name: "no process field", src: Inline(`{ other: 1 }`)},
		{name: "process not a function", src: Inline(`{ process: 1 }`)},
		{name: "not an object", src: Inline(`[1, 2]`)},
		{name: "missing file", src: File(filepath.Join(t.TempDir(), "missing.jsonnet"))},
	}
	e := New(Options{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Load(tc.src)
			require.Error(t, err)
			var le *LoadError
			assert.True(t, errors.As(err, &le), "err=%v", err)
			assert.NotEmpty(t, err.Error())
		})
	}
}

func TestInline_OnlySelfImport(t *testing.T) {
	e := New(Options{})

	p, err := e.Load(Inline(`
local self_ = import 'inline.jsonnet';
{ answer:: 42, process(input):: { v: self_.answer } }
`))
	require.NoError(t, err)
	out, err := p.Evaluate(context.Background(), `null`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 42.0}, decode(t, out))

	p, err = e.Load(Inline(`
local lib = import 'other.libsonnet';
{ process(input):: lib.x }
`))
	require.NoError(t, err)
	_, err = p.Evaluate(context.Background(), `null`)
	require.Error(t, err)
	var ee *EvalError
	assert.True(t, errors.As(err, &ee))
	assert.Contains(t, err.Error(), "other.libsonnet")
}

func TestModuleImporter_RejectsOtherPaths(t *testing.T) {
	imp := &moduleImporter{identity: InlineIdentity}
	_, foundAt, err := imp.Import("eval.jsonnet", InlineIdentity)
	require.NoError(t, err)
	assert.Equal(t, InlineIdentity, foundAt)

	_, _, err = imp.Import(InlineIdentity, "other.jsonnet")
	var nf *ImportNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "other.jsonnet", nf.Path)
	assert.Equal(t, InlineIdentity, nf.From)
}

func TestLoadFile_RelativeAndLibraryImports(t *testing.T) {
	dir := t.TempDir()
	libDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helpers.libsonnet"), []byte(`{ gauge(v):: { type: 'gauge', series: [{ value: v }] } }`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "shared.libsonnet"), []byte(`{ help: 'from library' }`), 0o600))
	main := filepath.Join(dir, "main.jsonnet")
	require.NoError(t, os.WriteFile(main, []byte(`
local h = import 'helpers.libsonnet';
local shared = import 'shared.libsonnet';
{ process(input):: { up: h.gauge(1) + { help: shared.help } } }
`), 0o600))

	p, err := New(Options{LibraryPaths: []string{libDir}}).Load(File(main))
	require.NoError(t, err)
	assert.Equal(t, main, p.Identity())

	out, err := p.Evaluate(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"up": map[string]any{
			"type":   "gauge",
			"help":   "from library",
			"series": []any{map[string]any{"value": 1.0}},
		},
	}, decode(t, out))
}

func TestEvaluate_RuntimeErrorAndCancel(t *testing.T) {
	p, err := New(Options{}).Load(Inline(`{ process(input):: error 'boom' }`))
	require.NoError(t, err)
	_, err = p.Evaluate(context.Background(), `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Evaluate(ctx, `{}`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_StdlibAvailable(t *testing.T) {
	p, err := New(Options{}).Load(Inline(`{ process(input):: { n: std.length(std.split(input.body, ',')) } }`))
	require.NoError(t, err)
	out, err := p.Evaluate(context.Background(), `{"body": "a,b,c"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 3.0}, decode(t, out))
}
