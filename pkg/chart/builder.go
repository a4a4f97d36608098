package chart

import (
	"fmt"

	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// MaxRows caps the rows a figure is built from
const MaxRows = table.DefaultMaxRows

// UnsupportedTypeError is returned for a chart type outside Kinds
type UnsupportedTypeError struct {
	Type Kind
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unknown plot type: %q", string(e.Type))
}

// Trace is a Plotly trace object
type Trace struct {
	Type       string        `json:"type"`
	Mode       string        `json:"mode,omitempty"`
	Name       string        `json:"name,omitempty"`
	X          []table.Value `json:"x,omitempty"`
	Y          []table.Value `json:"y,omitempty"`
	Z          []table.Value `json:"z,omitempty"`
	Labels     []table.Value `json:"labels,omitempty"`
	Parents    []table.Value `json:"parents,omitempty"`
	Values     []table.Value `json:"values,omitempty"`
	Marker     *Marker       `json:"marker,omitempty"`
	Line       *LineStyle    `json:"line,omitempty"`
	Colorscale string        `json:"colorscale,omitempty"`
}

// Figure is a render-ready Plotly figure
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Validate reports whether k is a supported chart type
func (k Kind) Validate() error {
	switch k {
	case KindLine, KindBar, KindScatter, KindHeatmap, KindBox,
		KindViolin, KindHistogram, KindSunburst, KindTreemap:
		return nil
	default:
		return &UnsupportedTypeError{Type: k}
	}
}

// BuildFigure turns an instruction and its rows into a figure. Rows beyond
// MaxRows are ignored; each trace runs its own transforms on the capped rows.
func BuildFigure(ins *Instruction, rows []table.Row) (*Figure, error) {
	if err := ins.Type.Validate(); err != nil {
		return nil, err
	}

	capped := rows
	if len(capped) > MaxRows {
		capped = capped[:MaxRows]
	}

	data := make([]Trace, 0, len(ins.Traces))
	for _, spec := range ins.Traces {
		transformed := ApplyTransforms(capped, spec)
		trace, err := buildTrace(ins.Type, spec.Bound(), transformed)
		if err != nil {
			return nil, err
		}
		data = append(data, trace)
	}

	return &Figure{
		Data:   data,
		Layout: ins.Layout,
	}, nil
}

func buildTrace(kind Kind, t TraceSpec, rows []table.Row) (Trace, error) {
	switch kind {
	case KindLine:
		mode := t.Mode
		if mode == "" {
			mode = "lines+markers"
		}
		return Trace{
			Type:   "scatter",
			Mode:   mode,
			Name:   t.Name,
			X:      table.Column(rows, t.X),
			Y:      table.Column(rows, t.Y),
			Marker: t.Marker,
			Line:   t.Line,
		}, nil
	case KindBar:
		return Trace{
			Type:   "bar",
			Name:   t.Name,
			X:      table.Column(rows, t.X),
			Y:      table.Column(rows, t.Y),
			Marker: t.Marker,
		}, nil
	case KindScatter:
		return Trace{
			Type:   "scatter",
			Mode:   "markers",
			Name:   t.Name,
			X:      table.Column(rows, t.X),
			Y:      table.Column(rows, t.Y),
			Marker: t.Marker,
		}, nil
	case KindHeatmap:
		z := table.Column(rows, t.Z)
		for i, v := range z {
			if v.IsNull() {
				z[i] = table.Number(0)
			}
		}
		return Trace{
			Type:       "heatmap",
			Name:       t.Name,
			X:          table.Column(rows, t.X),
			Y:          table.Column(rows, t.Y),
			Z:          z,
			Colorscale: "Viridis",
		}, nil
	case KindBox, KindViolin:
		trace := Trace{
			Type:   string(kind),
			Name:   t.Name,
			Y:      table.Column(rows, t.Y),
			Marker: t.Marker,
		}
		if t.X != "" {
			trace.X = table.Column(rows, t.X)
		}
		return trace, nil
	case KindHistogram:
		return Trace{
			Type:   "histogram",
			Name:   t.Name,
			X:      table.Column(rows, t.X),
			Marker: t.Marker,
		}, nil
	case KindSunburst, KindTreemap:
		return Trace{
			Type:    string(kind),
			Name:    t.Name,
			Labels:  table.Column(rows, t.X),
			Parents: table.Column(rows, t.Y),
			Values:  table.Column(rows, t.Z),
		}, nil
	default:
		return Trace{}, &UnsupportedTypeError{Type: kind}
	}
}
