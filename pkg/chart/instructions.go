// Package chart holds the chart instruction model, the row transform engine
// and the Plotly trace builder.
package chart

import (
	"encoding/json"

	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Kind is a supported chart type
type Kind string

const (
	KindLine      Kind = "line"
	KindBar       Kind = "bar"
	KindScatter   Kind = "scatter"
	KindHeatmap   Kind = "heatmap"
	KindBox       Kind = "box"
	KindViolin    Kind = "violin"
	KindHistogram Kind = "histogram"
	KindSunburst  Kind = "sunburst"
	KindTreemap   Kind = "treemap"
)

// Kinds lists every supported chart type
var Kinds = []Kind{
	KindLine, KindBar, KindScatter, KindHeatmap, KindBox,
	KindViolin, KindHistogram, KindSunburst, KindTreemap,
}

// Op is a comparison operator used by filters
type Op string

const (
	OpGT Op = ">"
	OpLT Op = "<"
	OpGE Op = ">="
	OpLE Op = "<="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// Reducer is an aggregate function
type Reducer string

const (
	ReduceSum Reducer = "sum"
	ReduceAvg Reducer = "avg"
	ReduceMin Reducer = "min"
	ReduceMax Reducer = "max"
)

// TransformType selects the transform variant
type TransformType string

const (
	TransformFilter    TransformType = "filter"
	TransformAggregate TransformType = "aggregate"
	// TransformGroupBy is accepted in instructions but has no effect
	TransformGroupBy TransformType = "groupby"
)

// Instruction declares one chart: its kind, traces and layout
type Instruction struct {
	Type   Kind        `json:"type"`
	Traces []TraceSpec `json:"traces"`
	Layout Layout      `json:"layout"`
	Desc   string      `json:"desc"`
}

// TraceSpec binds columns to one trace and lists its transforms
type TraceSpec struct {
	X          string      `json:"x"`
	Y          string      `json:"y"`
	Z          string      `json:"z,omitempty"`
	Name       string      `json:"name,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	Marker     *Marker     `json:"marker,omitempty"`
	Line       *LineStyle  `json:"line,omitempty"`
	Groups     string      `json:"groups,omitempty"`
	Transforms []Transform `json:"transforms,omitempty"`
}

// Transform is either a filter list or an aggregate list
type Transform struct {
	Type         TransformType `json:"type"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Filters      []Filter      `json:"filters,omitempty"`
}

// Aggregation reduces Target with Func within each group
type Aggregation struct {
	Target  string  `json:"target"`
	Func    Reducer `json:"func"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// Filter keeps rows whose Target cell compares true against Value
type Filter struct {
	Target    string       `json:"target"`
	Operation Op           `json:"operation"`
	Value     *table.Value `json:"value,omitempty"`
}

// GlobalFilter is a dashboard level filter applied before any trace transform
type GlobalFilter struct {
	Field string       `json:"field"`
	Op    Op           `json:"op"`
	Value *table.Value `json:"value,omitempty"`
}

// DashboardSpec declares several charts sharing one row set
type DashboardSpec struct {
	Title         string         `json:"title"`
	Charts        []Instruction  `json:"charts"`
	GlobalFilters []GlobalFilter `json:"globalFilters,omitempty"`
	Desc          string         `json:"desc"`
}

// Marker styles trace markers. Color may be a single color or a list.
type Marker struct {
	Color interface{} `json:"color,omitempty"`
	Size  float64     `json:"size,omitempty"`
}

// LineStyle styles line traces
type LineStyle struct {
	Shape string  `json:"shape,omitempty"`
	Width float64 `json:"width,omitempty"`
}

// Layout is the Plotly layout of a figure
type Layout struct {
	Title        Text     `json:"title"`
	XAxis        Axis     `json:"xaxis"`
	YAxis        Axis     `json:"yaxis"`
	PaperBgcolor string   `json:"paper_bgcolor"`
	PlotBgcolor  string   `json:"plot_bgcolor"`
	Font         *Font    `json:"font,omitempty"`
	Margin       *Margin  `json:"margin,omitempty"`
	Barmode      string   `json:"barmode,omitempty"`
	Bargap       *float64 `json:"bargap,omitempty"`
	Grid         *Grid    `json:"grid,omitempty"`
}

// Axis is a Plotly axis
type Axis struct {
	Title       Text         `json:"title"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

// RangeSlider enables the brush-to-zoom strip under an x axis
type RangeSlider struct {
	Visible bool `json:"visible"`
}

// Font is a Plotly font
type Font struct {
	Color string `json:"color"`
}

// Margin is the plot margin in pixels
type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

// Grid lays out subplots
type Grid struct {
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
	Pattern string `json:"pattern"`
}

// Text is a title. It decodes from either a plain string or {"text": "..."}.
type Text string

// UnmarshalJSON accepts both title encodings Plotly understands
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}

	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = Text(obj.Text)
	return nil
}

// Default cosmetic values forced onto every layout
const (
	Transparent = "transparent"
	FontColor   = "#fff"
)

// DefaultMargin is used for every side the instruction leaves unset
var DefaultMargin = Margin{L: 60, R: 20, T: 40, B: 60}

// Sanitize overwrites cosmetic layout fields so the figure matches the
// embedding UI whatever the model returned.
func (l *Layout) Sanitize() {
	l.PaperBgcolor = Transparent
	l.PlotBgcolor = Transparent
	l.Font = &Font{Color: FontColor}

	m := DefaultMargin
	if l.Margin != nil {
		if l.Margin.L != 0 {
			m.L = l.Margin.L
		}
		if l.Margin.R != 0 {
			m.R = l.Margin.R
		}
		if l.Margin.T != 0 {
			m.T = l.Margin.T
		}
		if l.Margin.B != 0 {
			m.B = l.Margin.B
		}
	}
	l.Margin = &m
}

// aggregate returns the first aggregate transform of the trace
func (t TraceSpec) aggregate() (Transform, bool) {
	for _, tx := range t.Transforms {
		if tx.Type == TransformAggregate {
			return tx, true
		}
	}
	return Transform{}, false
}

// Bound returns the column bindings used after transforms ran. A trace that
// aggregates by a group column plots the group on x and the first aggregated
// target on y.
func (t TraceSpec) Bound() TraceSpec {
	agg, ok := t.aggregate()
	if !ok || t.Groups == "" {
		return t
	}

	out := t
	out.X = t.Groups
	if len(agg.Aggregations) > 0 && agg.Aggregations[0].Target != "" {
		out.Y = agg.Aggregations[0].Target
	}
	return out
}
