package engine

import "fmt"

// LoadError reports a program that could not be read, parsed or resolved.
type LoadError struct {
	Identity string
	Err      error
}

func (e *LoadError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("load jsonnet %q: %v", e.Identity, e.Err)
}

func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvalError carries the engine diagnostic of a failed evaluation.
type EvalError struct {
	Identity string
	Err      error
}

func (e *EvalError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("evaluate jsonnet %q: %v", e.Identity, e.Err)
}

func (e *EvalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ImportNotFoundError is returned by importers that refuse a path.
type ImportNotFoundError struct {
	From string
	Path string
}

func (e *ImportNotFoundError) Error() string {
	return fmt.Sprintf("import %q from %q: not found", e.Path, e.From)
}
