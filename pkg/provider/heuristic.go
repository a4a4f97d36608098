package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Recipe names a built-in chart recipe
type Recipe string

const (
	RecipeLine      Recipe = "lineChart"
	RecipeBar       Recipe = "barChart"
	RecipeScatter   Recipe = "scatter"
	RecipeHeatMap   Recipe = "heatMap"
	RecipeTimeBrush Recipe = "timeBrush"
)

var plotKeywords = []string{
	"plot", "graph", "chart", "visualize", "draw", "show me",
	"line", "bar", "scatter", "heat", "brush", "zoom",
}

// recipeKeywords is checked in order, first match wins
var recipeKeywords = []struct {
	recipe Recipe
	words  []string
}{
	{RecipeBar, []string{"bar", "compare", "distribution"}},
	{RecipeHeatMap, []string{"heat", "matrix"}},
	{RecipeScatter, []string{"scatter", "correlation"}},
	{RecipeTimeBrush, []string{"brush", "zoom", "interactive"}},
}

var sampleData = map[Recipe]string{
	RecipeBar:       "category,value\nAlpha,28\nBravo,55\nCharlie,43\nDelta,91\nEcho,81\nFoxtrot,53",
	RecipeScatter:   "x,y,size\n10,20,5\n15,35,12\n22,18,8\n30,50,20\n35,25,10",
	RecipeHeatMap:   "x,y,value\n-1,-1,5\n-1,1,10\n1,-1,15\n1,1,2",
	RecipeTimeBrush: "date,value\n2023-01-01,10\n2023-02-01,13\n2023-03-01,20\n2023-04-01,15\n2023-05-01,25\n2023-06-01,22",
	RecipeLine:      "date,value\n2023-01-01,10\n2023-02-01,13\n2023-03-01,20\n2023-04-01,15\n2023-05-01,25\n2023-06-01,22",
}

// IsPlotRequest reports whether the prompt asks for a visualization
func IsPlotRequest(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, kw := range plotKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

// ChooseRecipe maps a prompt to a recipe by keyword priority. It only looks
// at the prompt, never at the data.
func ChooseRecipe(prompt string) Recipe {
	p := strings.ToLower(prompt)
	for _, rk := range recipeKeywords {
		for _, w := range rk.words {
			if strings.Contains(p, w) {
				return rk.recipe
			}
		}
	}
	return RecipeLine
}

// Heuristic proposes charts from local recipes without any network call
type Heuristic struct{}

// NewHeuristic creates a new Heuristic provider
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Propose picks a recipe for the prompt and runs it on the request rows, or on
// the recipe's sample data when the request carries none.
func (h *Heuristic) Propose(_ context.Context, req Request) (*Proposal, error) {
	recipe := ChooseRecipe(req.Prompt)

	headers, rows := req.Headers, req.Rows
	if len(rows) == 0 {
		tbl, err := table.Parse(sampleData[recipe], table.ParseOptions{})
		if err != nil {
			return nil, err
		}
		headers, rows = tbl.Headers, tbl.Rows
	}

	if len(rows) > table.RecipeMaxRows {
		rows = rows[:table.RecipeMaxRows]
	}

	ins, plotted, err := RunRecipe(recipe, headers, rows)
	if err != nil {
		return nil, err
	}
	return &Proposal{Mode: ModeSingle, Single: ins, Rows: plotted}, nil
}

// RunRecipe builds the instruction for a named recipe and returns the rows it
// is drawn from. Most recipes plot rows as given; heatMap plots one summed
// row per cell.
func RunRecipe(recipe Recipe, headers []string, rows []table.Row) (*chart.Instruction, []table.Row, error) {
	types := table.Profile(headers, rows)
	b := table.SelectColumns(headers, types)

	var ins *chart.Instruction
	plotted := rows
	switch recipe {
	case RecipeLine:
		ins = lineChart(b, rows)
	case RecipeBar:
		ins = barChart(b, rows)
	case RecipeScatter:
		ins = scatterChart(b, rows)
	case RecipeHeatMap:
		ins, plotted = heatMap(headers, types, b, rows)
	case RecipeTimeBrush:
		ins = timeBrush(b, rows)
	default:
		return nil, nil, fmt.Errorf("unknown recipe: %s", recipe)
	}

	ins.Layout.Sanitize()
	return ins, plotted, nil
}

func lineChart(b table.Bindings, rows []table.Row) *chart.Instruction {
	avg := mean(numbers(rows, b.Numeric))
	return &chart.Instruction{
		Type: chart.KindLine,
		Traces: []chart.TraceSpec{{
			X:      b.Time,
			Y:      b.Numeric,
			Name:   b.Numeric,
			Mode:   "lines+markers",
			Marker: &chart.Marker{Color: Palette[1], Size: 8},
		}},
		Layout: axisLayout(b.Numeric+" over "+b.Time, b.Time, b.Numeric),
		Desc:   fmt.Sprintf("Average **%.1f** over **%d** data points.", avg, len(rows)),
	}
}

func barChart(b table.Bindings, rows []table.Row) *chart.Instruction {
	total := sum(numbers(rows, b.Numeric))

	seen := map[string]struct{}{}
	for _, v := range table.Column(rows, b.Category) {
		seen[v.Text()] = struct{}{}
	}

	return &chart.Instruction{
		Type: chart.KindBar,
		Traces: []chart.TraceSpec{{
			X:      b.Category,
			Y:      b.Numeric,
			Name:   b.Numeric,
			Marker: &chart.Marker{Color: Palette[2]},
		}},
		Layout: axisLayout(b.Numeric+" by "+b.Category, b.Category, b.Numeric),
		Desc: fmt.Sprintf("Total of **%s** is **%.1f** across %d categories.",
			b.Numeric, total, len(seen)),
	}
}

func scatterChart(b table.Bindings, rows []table.Row) *chart.Instruction {
	return &chart.Instruction{
		Type: chart.KindScatter,
		Traces: []chart.TraceSpec{{
			X:      b.Numeric,
			Y:      b.Numeric2,
			Mode:   "markers",
			Marker: &chart.Marker{Color: Palette[3], Size: 10},
		}},
		Layout: axisLayout(b.Numeric2+" vs "+b.Numeric, b.Numeric, b.Numeric2),
		Desc: fmt.Sprintf("Correlation plot between **%s** and **%s** (mean %s **%.1f**).",
			b.Numeric, b.Numeric2, b.Numeric2, mean(numbers(rows, b.Numeric2))),
	}
}

// heatMap sums the numeric column per (category, y) cell, so repeated pairs
// land in one cell instead of overdrawing each other.
func heatMap(headers []string, types table.ColumnTypes, b table.Bindings, rows []table.Row) (*chart.Instruction, []table.Row) {
	yCol := b.Numeric2
	for _, k := range types.Keys(headers) {
		if k != b.Category && types[k] == table.KindString {
			yCol = k
			break
		}
	}

	ins := &chart.Instruction{
		Type: chart.KindHeatmap,
		Traces: []chart.TraceSpec{{
			X:    b.Category,
			Y:    yCol,
			Z:    b.Numeric,
			Name: "Sum of " + b.Numeric,
		}},
		Layout: axisLayout(b.Category+" vs "+yCol, b.Category, yCol),
		Desc: fmt.Sprintf("Heatmap of **%s** vs. **%s** by **%s** (total **%.1f**).",
			b.Category, yCol, b.Numeric, sum(numbers(rows, b.Numeric))),
	}
	return ins, sumCells(rows, b.Category, yCol, b.Numeric)
}

// sumCells groups rows by the (x, y) pair and sums z within each group.
// Groups keep the order of their first row; non-numeric z adds nothing.
// When z is also an axis column there is nothing to sum into, and the rows
// are returned as they are.
func sumCells(rows []table.Row, x, y, z string) []table.Row {
	if z == x || z == y {
		return rows
	}

	type cell struct{ x, y string }

	index := map[cell]int{}
	var out []table.Row
	for _, r := range rows {
		key := cell{r[x].Text(), r[y].Text()}
		n, ok := index[key]
		if !ok {
			n = len(out)
			index[key] = n
			out = append(out, table.Row{x: r[x], y: r[y], z: table.Number(0)})
		}
		if v := r[z]; v.Kind == table.KindNumber {
			out[n][z] = table.Number(out[n][z].Num + v.Num)
		}
	}
	return out
}

func timeBrush(b table.Bindings, rows []table.Row) *chart.Instruction {
	ins := lineChart(b, rows)
	ins.Traces[0].Mode = "lines"
	ins.Layout.XAxis.RangeSlider = &chart.RangeSlider{Visible: true}
	ins.Desc = fmt.Sprintf("Interactive time-series for **%s** (mean **%.1f**). Drag the range slider to zoom.",
		b.Numeric, mean(numbers(rows, b.Numeric)))
	return ins
}

func axisLayout(title, x, y string) chart.Layout {
	return chart.Layout{
		Title: chart.Text(title),
		XAxis: chart.Axis{Title: chart.Text(x)},
		YAxis: chart.Axis{Title: chart.Text(y)},
	}
}

// numbers returns the cells of column that were parsed as numbers. Numeric
// looking strings are not counted.
func numbers(rows []table.Row, column string) []float64 {
	var out []float64
	for _, v := range table.Column(rows, column) {
		if v.Kind == table.KindNumber {
			out = append(out, v.Num)
		}
	}
	return out
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}
