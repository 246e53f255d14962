package modules

import "fmt"

// ValidationIssue is a fatal problem found while validating a module.
// Test is the index of the failing test case, or -1 when the module itself
// could not be loaded.
type ValidationIssue struct {
	Module string
	Test   int
	Err    error
}

func (e *ValidationIssue) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.Test < 0 {
		return fmt.Sprintf("module %q: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %q test %d: %v", e.Module, e.Test, e.Err)
}

func (e *ValidationIssue) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func validationIssue(err error, module string, test int) error {
	if err == nil {
		return nil
	}
	return &ValidationIssue{Module: module, Test: test, Err: err}
}
