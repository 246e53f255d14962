// Package manifest holds the typed metric manifest produced by a module and the
// decoder that builds it from the JSON document a module evaluates to.
package manifest

import "sort"

// DefaultHelp is substituted when a metric does not declare a help text.
const DefaultHelp = "jsonnet-exporter: Metric help is missing, consider adding a help text to the module config."

// Kind is the metric type declared by a module. The set is open: new kinds are
// added to knownKinds and handled by the renderer.
type Kind string

const (
	KindGauge Kind = "gauge"
)

var knownKinds = map[Kind]struct{}{
	KindGauge: {},
}

// ParseKind returns the Kind for s, or ErrUnknownMetricType.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := knownKinds[k]; !ok {
		return "", ErrUnknownMetricType
	}
	return k, nil
}

func (k Kind) String() string { return string(k) }

// Manifest maps metric names to their definitions.
type Manifest map[string]MetricDef

type MetricDef struct {
	Kind       Kind
	Help       string
	LabelNames []string
	Series     []SeriesPoint
}

// SeriesPoint is one sample. LabelValues are positional against the metric's
// LabelNames.
type SeriesPoint struct {
	LabelValues []string
	Value       float64
}

// Names returns the metric names in lexical order.
func (m Manifest) Names() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Document returns the generic JSON form of the manifest, the same shape
// Decode accepts.
func (m Manifest) Document() map[string]any {
	out := make(map[string]any, len(m))
	for name, def := range m {
		labelNames := make([]any, 0, len(def.LabelNames))
		for _, n := range def.LabelNames {
			labelNames = append(labelNames, n)
		}
		series := make([]any, 0, len(def.Series))
		for _, s := range def.Series {
			values := make([]any, 0, len(s.LabelValues))
			for _, v := range s.LabelValues {
				values = append(values, v)
			}
			series = append(series, map[string]any{
				"label_values": values,
				"value":        s.Value,
			})
		}
		out[name] = map[string]any{
			"type":        string(def.Kind),
			"help":        def.Help,
			"label_names": labelNames,
			"series":      series,
		}
	}
	return out
}
