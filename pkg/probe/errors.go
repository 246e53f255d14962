package probe

import (
	"errors"
	"net/http"
	"strings"
)

type Kind string

const (
	KindMissingParameter      Kind = "missing_parameter"
	KindModuleNotFound        Kind = "module_not_found"
	KindInvalidTargetURL      Kind = "invalid_target_url"
	KindTargetFetchFailed     Kind = "target_fetch_failed"
	KindTargetJSONParseFailed Kind = "target_json_parse_failed"
	KindEvaluationFailed      Kind = "evaluation_failed"
)

// StatusCode maps a failure kind to the HTTP status returned to the scraper.
func (k Kind) StatusCode() int {
	switch k {
	case KindMissingParameter, KindInvalidTargetURL:
		return http.StatusBadRequest
	case KindModuleNotFound:
		return http.StatusNotFound
	case KindTargetFetchFailed, KindTargetJSONParseFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string { return string(k) }

// Error is the single error type returned by Probe and ParseParams.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{strings.ReplaceAll(string(e.Kind), "_", " ")}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) StatusCode() int {
	if e == nil {
		return http.StatusOK
	}
	return e.Kind.StatusCode()
}

// KindOf returns the failure kind of err, or KindEvaluationFailed when err
// is not a probe error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindEvaluationFailed
}

func newError(kind Kind, detail string, err error) error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
