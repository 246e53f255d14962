package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonnet "github.com/google/go-jsonnet"
)

const (
	// InlineIdentity is the import path of inline programs.
	InlineIdentity = "inline.jsonnet"
	// InputVar is the external variable holding the runtime input.
	InputVar = "input"
	// EntryPoint is the function every module must define.
	EntryPoint = "process"

	entryFilename = "eval.jsonnet"
)

// Options configures every VM built by an Engine.
type Options struct {
	// LibraryPaths are searched for imports not found relative to the importing file.
	LibraryPaths []string
	// MaxStack bounds the Jsonnet call depth; zero keeps the evaluator default.
	MaxStack int
	// Natives defaults to DefaultNatives() when nil.
	Natives []NativeFunc
}

type Engine struct {
	libraryPaths []string
	maxStack     int
	natives      []NativeFunc
}

func New(opts Options) *Engine {
	natives := opts.Natives
	if natives == nil {
		natives = DefaultNatives()
	}
	paths := make([]string, 0, len(opts.LibraryPaths))
	for _, p := range opts.LibraryPaths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return &Engine{
		libraryPaths: paths,
		maxStack:     opts.MaxStack,
		natives:      append([]NativeFunc(nil), natives...),
	}
}

// Source is either inline program text or a path to a program file.
type Source struct {
	Code string
	Path string
}

func Inline(code string) Source { return Source{Code: code} }

func File(path string) Source { return Source{Path: path} }

// Program is a loaded module. It is immutable and safe for concurrent use.
type Program struct {
	engine   *Engine
	identity string
	code     string
	files    bool
	entry    string
}

func (p *Program) Identity() string { return p.identity }

// Load reads and parses src and checks that it defines the process entry point.
func (e *Engine) Load(src Source) (*Program, error) {
	p := &Program{engine: e}
	switch {
	case src.Path != "" && src.Code != "":
		return nil, &LoadError{Identity: src.Path, Err: errors.New("both inline code and path are set")}
	case src.Path != "":
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			return nil, &LoadError{Identity: src.Path, Err: err}
		}
		// #nosec G304 -- module paths come from the trusted config file.
		b, err := os.ReadFile(abs)
		if err != nil {
			return nil, &LoadError{Identity: abs, Err: err}
		}
		p.identity = abs
		p.code = string(b)
		p.files = true
	case src.Code != "":
		p.identity = InlineIdentity
		p.code = src.Code
	default:
		return nil, &LoadError{Identity: InlineIdentity, Err: errors.New("empty program source")}
	}

	if _, err := jsonnet.SnippetToAST(p.identity, p.code); err != nil {
		return nil, &LoadError{Identity: p.identity, Err: err}
	}

	quoted, err := json.Marshal(p.identity)
	if err != nil {
		return nil, &LoadError{Identity: p.identity, Err: err}
	}
	p.entry = fmt.Sprintf("local s = import %s;\n\ns.%s(std.extVar(%q))\n", quoted, EntryPoint, InputVar)

	check := fmt.Sprintf("std.isFunction((import %s).%s)", quoted, EntryPoint)
	out, err := p.newVM().EvaluateAnonymousSnippet(entryFilename, check)
	if err != nil {
		return nil, &LoadError{Identity: p.identity, Err: err}
	}
	if strings.TrimSpace(out) != "true" {
		return nil, &LoadError{Identity: p.identity, Err: fmt.Errorf("field %q must be a function", EntryPoint)}
	}
	return p, nil
}

// Evaluate runs process(input) in a fresh VM. inputCode is Jsonnet (or JSON)
// source bound as std.extVar("input"). The result is the manifested JSON text.
func (p *Program) Evaluate(ctx context.Context, inputCode string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &EvalError{Identity: p.identity, Err: err}
	}
	vm := p.newVM()
	vm.ExtCode(InputVar, inputCode)
	out, err := vm.EvaluateAnonymousSnippet(entryFilename, p.entry)
	if err != nil {
		return nil, &EvalError{Identity: p.identity, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &EvalError{Identity: p.identity, Err: err}
	}
	return []byte(out), nil
}

// EvaluateInput JSON-encodes input and evaluates it.
func (p *Program) EvaluateInput(ctx context.Context, input any) ([]byte, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return nil, &EvalError{Identity: p.identity, Err: fmt.Errorf("encode input: %w", err)}
	}
	return p.Evaluate(ctx, string(b))
}

func (p *Program) newVM() *jsonnet.VM {
	vm := jsonnet.MakeVM()
	if p.engine.maxStack > 0 {
		vm.MaxStack = p.engine.maxStack
	}
	imp := &moduleImporter{
		identity: p.identity,
		contents: jsonnet.MakeContents(p.code),
	}
	if p.files {
		// FileImporter keeps an unsynchronized cache, so each VM gets its own.
		imp.fallback = &jsonnet.FileImporter{JPaths: p.engine.libraryPaths}
	}
	vm.Importer(imp)
	for _, f := range p.engine.natives {
		vm.NativeFunction(f.jsonnet())
	}
	return vm
}
