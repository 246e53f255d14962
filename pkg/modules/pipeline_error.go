package modules

import "fmt"

type Stage string

const (
	StageLoad     Stage = "load"
	StageEvaluate Stage = "evaluate"
	StageDecode   Stage = "decode"
	StageRender   Stage = "render"
)

// PipelineError reports the module and pipeline stage an error occurred in.
type PipelineError struct {
	Module string
	Stage  Stage
	Err    error
}

func (e *PipelineError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("module %q: %s: %v", e.Module, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func pipelineError(module string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Module: module, Stage: stage, Err: err}
}
