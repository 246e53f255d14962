package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeJSON parses raw JSON and decodes it with Decode.
func DecodeJSON(b []byte) (Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &DecodeError{Series: -1, Detail: err.Error(), Err: ErrInvalidDocument}
	}
	return Decode(doc)
}

// Decode converts a generic JSON document (as produced by encoding/json) into a
// Manifest. Label arity is not checked here; the renderer rejects mismatches.
func Decode(doc any) (Manifest, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, &DecodeError{Series: -1, Detail: fmt.Sprintf("got %s", typeName(doc)), Err: ErrInvalidDocument}
	}
	out := make(Manifest, len(root))
	for name, raw := range root {
		def, err := decodeMetric(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = def
	}
	return out, nil
}

func decodeMetric(name string, raw any) (MetricDef, error) {
	fail := func(field string, err error, detail string) (MetricDef, error) {
		return MetricDef{}, &DecodeError{Metric: name, Series: -1, Field: field, Detail: detail, Err: err}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return fail("", ErrInvalidField, fmt.Sprintf("metric must be an object, got %s", typeName(raw)))
	}

	var def MetricDef
	rawType, ok := obj["type"].(string)
	if !ok {
		return fail("type", ErrInvalidField, "required string")
	}
	kind, err := ParseKind(rawType)
	if err != nil {
		return fail("type", err, fmt.Sprintf("%q", rawType))
	}
	def.Kind = kind

	def.Help = DefaultHelp
	switch h := obj["help"].(type) {
	case nil:
	case string:
		def.Help = h
	default:
		return fail("help", ErrInvalidField, fmt.Sprintf("expected string, got %s", typeName(h)))
	}

	labelNames, err := stringList(obj["label_names"])
	if err != nil {
		return fail("label_names", ErrInvalidField, err.Error())
	}
	def.LabelNames = labelNames

	var rawSeries []any
	switch s := obj["series"].(type) {
	case nil:
	case []any:
		rawSeries = s
	default:
		return fail("series", ErrInvalidField, fmt.Sprintf("expected array, got %s", typeName(s)))
	}
	def.Series = make([]SeriesPoint, 0, len(rawSeries))
	for i, item := range rawSeries {
		p, err := decodeSeries(name, i, item)
		if err != nil {
			return MetricDef{}, err
		}
		def.Series = append(def.Series, p)
	}
	return def, nil
}

func decodeSeries(metric string, idx int, raw any) (SeriesPoint, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return SeriesPoint{}, &DecodeError{Metric: metric, Series: idx, Err: ErrInvalidField, Detail: fmt.Sprintf("series entry must be an object, got %s", typeName(raw))}
	}
	values, err := stringList(obj["label_values"])
	if err != nil {
		return SeriesPoint{}, &DecodeError{Metric: metric, Series: idx, Field: "label_values", Err: ErrInvalidField, Detail: err.Error()}
	}
	v, ok := number(obj["value"])
	if !ok {
		detail := "missing"
		if rv, present := obj["value"]; present {
			detail = fmt.Sprintf("got %s", typeName(rv))
		}
		return SeriesPoint{}, &DecodeError{Metric: metric, Series: idx, Field: "value", Err: ErrInvalidValue, Detail: detail}
	}
	return SeriesPoint{LabelValues: values, Value: v}, nil
}

func stringList(raw any) ([]string, error) {
	switch t := raw.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %s", i, typeName(item))
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return append([]string{}, t...), nil
	default:
		return nil, fmt.Errorf("expected array of strings, got %s", typeName(raw))
	}
}

func number(raw any) (float64, bool) {
	switch t := raw.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
