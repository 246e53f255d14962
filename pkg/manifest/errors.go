package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDocument   = errors.New("manifest document must be a JSON object")
	ErrUnknownMetricType = errors.New("unknown metric type")
	ErrInvalidValue      = errors.New("series value must be a number")
	ErrInvalidField      = errors.New("invalid field")
)

// DecodeError locates a schema violation inside the manifest document.
// Series is -1 when the error is not tied to a series entry.
type DecodeError struct {
	Metric string
	Series int
	Field  string
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("decode manifest")
	if e.Metric != "" {
		fmt.Fprintf(&b, ": metric %q", e.Metric)
	}
	if e.Series >= 0 {
		fmt.Fprintf(&b, " series[%d]", e.Series)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
