package manifest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON_Defaults(t *testing.T) {
	m, err := DecodeJSON([]byte(`{"requests_total": {"type": "gauge", "series": [{"value": 5}]}}`))
	require.NoError(t, err)
	require.Contains(t, m, "requests_total")

	def := m["requests_total"]
	assert.Equal(t, KindGauge, def.Kind)
	assert.Equal(t, DefaultHelp, def.Help)
	assert.Empty(t, def.LabelNames)
	require.Len(t, def.Series, 1)
	assert.Empty(t, def.Series[0].LabelValues)
	assert.Equal(t, 5.0, def.Series[0].Value)
}

func TestDecodeJSON_AbsentEqualsEmpty(t *testing.T) {
	absent, err := DecodeJSON([]byte(`{"up": {"type": "gauge"}}`))
	require.NoError(t, err)
	empty, err := DecodeJSON([]byte(`{"up": {"type": "gauge", "label_names": [], "series": []}}`))
	require.NoError(t, err)
	nulls, err := DecodeJSON([]byte(`{"up": {"type": "gauge", "label_names": null, "series": null, "help": null}}`))
	require.NoError(t, err)

	assert.Equal(t, empty, absent)
	assert.Equal(t, empty, nulls)
}

func TestDecodeJSON_LabelsAndHelp(t *testing.T) {
	m, err := DecodeJSON([]byte(`{
	  "temperature_celsius": {
	    "type": "gauge",
	    "help": "Room temperature.",
	    "label_names": ["room", "floor"],
	    "series": [
	      {"label_values": ["kitchen", "1"], "value": 21.5},
	      {"label_values": ["attic", "3"], "value": -2}
	    ]
	  }
	}`))
	require.NoError(t, err)
	def := m["temperature_celsius"]
	assert.Equal(t, "Room temperature.", def.Help)
	assert.Equal(t, []string{"room", "floor"}, def.LabelNames)
	assert.Equal(t, []SeriesPoint{
		{LabelValues: []string{"kitchen", "1"}, Value: 21.5},
		{LabelValues: []string{"attic", "3"}, Value: -2},
	}, def.Series)
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name   string
		doc    string
		want   error
		metric string
		series int
	}{
		{name: "not an object", doc: `[1,2]`, want: ErrInvalidDocument, series: -1},
		{name: "invalid json", doc: `{`, want: ErrInvalidDocument, series: -1},
		{name: "unknown type", doc: `{"x": {"type": "histogram"}}`, want: ErrUnknownMetricType, metric: "x", series: -1},
		{name: "missing type", doc: `{"x": {"series": []}}`, want: ErrInvalidField, metric: "x", series: -1},
		{name: "metric not object", doc: `{"x": 3}`, want: ErrInvalidField, metric: "x", series: -1},
		{name: "missing value", doc: `{"x": {"type": "gauge", "series": [{"label_values": []}]}}`, want: ErrInvalidValue, metric: "x", series: 0},
		{name: "string value", doc: `{"x": {"type": "gauge", "series": [{"value": 1}, {"value": "2"}]}}`, want: ErrInvalidValue, metric: "x", series: 1},
		{name: "bool value", doc: `{"x": {"type": "gauge", "series": [{"value": true}]}}`, want: ErrInvalidValue, metric: "x", series: 0},
		{name: "label name not string", doc: `{"x": {"type": "gauge", "label_names": [1]}}`, want: ErrInvalidField, metric: "x", series: -1},
		{name: "label value not string", doc: `{"x": {"type": "gauge", "label_names": ["a"], "series": [{"label_values": [1], "value": 1}]}}`, want: ErrInvalidField, metric: "x", series: 0},
		{name: "series not array", doc: `{"x": {"type": "gauge", "series": {}}}`, want: ErrInvalidField, metric: "x", series: -1},
		{name: "help not string", doc: `{"x": {"type": "gauge", "help": 1}}`, want: ErrInvalidField, metric: "x", series: -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "err=%v", err)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.metric, de.Metric)
			assert.Equal(t, tc.series, de.Series)
		})
	}
}

func TestDecode_NoArityCheck(t *testing.T) {
	m, err := DecodeJSON([]byte(`{"x": {"type": "gauge", "label_names": ["a", "b"], "series": [{"label_values": ["only"], "value": 1}]}}`))
	require.NoError(t, err)
	assert.Len(t, m["x"].Series[0].LabelValues, 1)
}

func TestManifest_DocumentRoundTrip(t *testing.T) {
	orig := Manifest{
		"requests_total": {
			Kind:       KindGauge,
			Help:       "Requests.",
			LabelNames: []string{"method", "code"},
			Series: []SeriesPoint{
				{LabelValues: []string{"GET", "200"}, Value: 10},
				{LabelValues: []string{"POST", "500"}, Value: 0.25},
				{LabelValues: []string{"GET", "404"}, Value: 1e9},
			},
		},
		"up": {
			Kind:       KindGauge,
			Help:       DefaultHelp,
			LabelNames: []string{},
			Series:     []SeriesPoint{{LabelValues: []string{}, Value: 1}},
		},
		"empty": {
			Kind:       KindGauge,
			Help:       "No series.",
			LabelNames: []string{},
			Series:     []SeriesPoint{},
		},
	}

	direct, err := Decode(orig.Document())
	require.NoError(t, err)
	assert.Equal(t, orig, direct)

	b, err := json.Marshal(orig.Document())
	require.NoError(t, err)
	viaJSON, err := DecodeJSON(b)
	require.NoError(t, err)
	assert.Equal(t, orig, viaJSON)
}

func TestManifest_Names(t *testing.T) {
	m := Manifest{"b": {}, "a": {}, "c": {}}
	assert.Equal(t, []string{"a", "b", "c"}, m.Names())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("gauge")
	require.NoError(t, err)
	assert.Equal(t, KindGauge, k)

	_, err = ParseKind("Gauge")
	assert.ErrorIs(t, err, ErrUnknownMetricType)
}
