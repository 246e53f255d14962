// Package exposition renders a metric manifest as Prometheus text exposition.
package exposition

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/simonswine/jsonnet-exporter/pkg/manifest"
)

// ContentType is the media type of the bytes returned by Render.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var (
	ErrLabelArityMismatch  = errors.New("label value count does not match label names")
	ErrDuplicateMetricName = errors.New("duplicate metric name")
	ErrInvalidMetric       = errors.New("invalid metric")
	ErrUnsupportedKind     = errors.New("unsupported metric kind")
)

// RenderError reports which metric (and series, when >= 0) could not be rendered.
type RenderError struct {
	Metric string
	Series int
	Err    error
	Detail string
}

func (e *RenderError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	msg := fmt.Sprintf("render metric %q", e.Metric)
	if e.Series >= 0 {
		msg += fmt.Sprintf(" series[%d]", e.Series)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Render builds one labeled vector per metric in a fresh registry, sets a data
// point per series and encodes the gathered families as text exposition.
func Render(m manifest.Manifest) ([]byte, error) {
	entries := make([]entry, 0, len(m))
	for _, name := range m.Names() {
		entries = append(entries, entry{name: name, def: m[name]})
	}
	return render(entries)
}

type entry struct {
	name string
	def  manifest.MetricDef
}

func render(entries []entry) ([]byte, error) {
	reg := prometheus.NewRegistry()
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.name]; dup {
			return nil, &RenderError{Metric: e.name, Series: -1, Err: ErrDuplicateMetricName}
		}
		seen[e.name] = struct{}{}
		if err := register(reg, e.name, e.def); err != nil {
			return nil, err
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather rendered metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode metric family %q: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

func register(reg *prometheus.Registry, name string, def manifest.MetricDef) error {
	switch def.Kind {
	case manifest.KindGauge:
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: def.Help}, def.LabelNames)
		if err := registerCollector(reg, name, vec); err != nil {
			return err
		}
		for i, s := range def.Series {
			if len(s.LabelValues) != len(def.LabelNames) {
				return &RenderError{
					Metric: name,
					Series: i,
					Err:    ErrLabelArityMismatch,
					Detail: fmt.Sprintf("got %d values for %d names", len(s.LabelValues), len(def.LabelNames)),
				}
			}
			g, err := vec.GetMetricWithLabelValues(s.LabelValues...)
			if err != nil {
				return &RenderError{Metric: name, Series: i, Err: ErrInvalidMetric, Detail: err.Error()}
			}
			g.Set(s.Value)
		}
		return nil
	default:
		return &RenderError{Metric: name, Series: -1, Err: ErrUnsupportedKind, Detail: fmt.Sprintf("%q", def.Kind)}
	}
}

func registerCollector(reg *prometheus.Registry, name string, c prometheus.Collector) error {
	err := reg.Register(c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return &RenderError{Metric: name, Series: -1, Err: ErrDuplicateMetricName}
	}
	return &RenderError{Metric: name, Series: -1, Err: ErrInvalidMetric, Detail: err.Error()}
}
