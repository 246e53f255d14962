package modules

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/simonswine/jsonnet-exporter/pkg/config"
	"github.com/simonswine/jsonnet-exporter/pkg/engine"
	"github.com/simonswine/jsonnet-exporter/pkg/exposition"
	"github.com/simonswine/jsonnet-exporter/pkg/manifest"
)

type Module struct {
	name    string
	spec    config.ModuleSpec
	program *engine.Program
	debugf  func(format string, args ...any)
}

// Load compiles the program of spec. Errors are returned as *PipelineError
// with StageLoad.
func Load(eng *engine.Engine, name string, spec config.ModuleSpec) (*Module, error) {
	return load(eng, name, spec, nil)
}

func load(eng *engine.Engine, name string, spec config.ModuleSpec, debugf func(string, ...any)) (*Module, error) {
	if err := spec.Validate(); err != nil {
		return nil, pipelineError(name, StageLoad, err)
	}
	src := engine.File(strings.TrimSpace(spec.JsonnetPath))
	if strings.TrimSpace(spec.Jsonnet) != "" {
		src = engine.Inline(spec.Jsonnet)
	}
	prog, err := eng.Load(src)
	if err != nil {
		return nil, pipelineError(name, StageLoad, err)
	}
	return &Module{name: name, spec: spec, program: prog, debugf: debugf}, nil
}

func (m *Module) Name() string { return m.name }

func (m *Module) Spec() config.ModuleSpec { return m.spec }

// Evaluate runs the program with input, a JSON document, and renders the
// resulting metrics as exposition text.
func (m *Module) Evaluate(ctx context.Context, input string) ([]byte, error) {
	out, err := m.program.Evaluate(ctx, input)
	return m.render(out, err)
}

// EvaluateValue is Evaluate for an input that still has to be encoded.
func (m *Module) EvaluateValue(ctx context.Context, input any) ([]byte, error) {
	out, err := m.program.EvaluateInput(ctx, input)
	return m.render(out, err)
}

func (m *Module) render(out []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, pipelineError(m.name, StageEvaluate, err)
	}
	m.logDocument(out)

	mf, err := manifest.DecodeJSON(out)
	if err != nil {
		return nil, pipelineError(m.name, StageDecode, err)
	}
	text, err := exposition.Render(mf)
	if err != nil {
		return nil, pipelineError(m.name, StageRender, err)
	}
	return text, nil
}

func (m *Module) logDocument(out []byte) {
	if m.debugf == nil {
		return
	}
	var doc any
	if err := json.Unmarshal(out, &doc); err != nil {
		return
	}
	for path, obj := range manifest.Walk(doc) {
		b, _ := json.Marshal(obj)
		m.debugf("module=%q path=%s object=%s", m.name, path, b)
	}
}
