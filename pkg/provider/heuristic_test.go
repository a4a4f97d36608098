package provider

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

func TestIsPlotRequest(t *testing.T) {
	for prompt, want := range map[string]bool{
		"Plot revenue":                 true,
		"show me the trend":            true,
		"Can you VISUALIZE this?":      true,
		"zoom into March":              true,
		"what is the average revenue?": false,
		"":                             false,
	} {
		assert.Equal(t, want, IsPlotRequest(prompt), prompt)
	}
}

func TestChooseRecipe(t *testing.T) {
	tests := []struct {
		prompt string
		want   Recipe
	}{
		{"show me a bar chart", RecipeBar},
		{"bar chart of the heat matrix with scatter", RecipeBar},
		{"compare regions", RecipeBar},
		{"heatmap please", RecipeHeatMap},
		{"correlation matrix", RecipeHeatMap},
		{"scatter of price and units", RecipeScatter},
		{"interactive view", RecipeTimeBrush},
		{"zoomable series", RecipeTimeBrush},
		{"plot it", RecipeLine},
		{"", RecipeLine},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ChooseRecipe(tt.prompt), tt.prompt)
	}
}

func parsed(t *testing.T, csv string) (*table.Table, Request) {
	t.Helper()
	tbl, err := table.Parse(csv, table.ParseOptions{})
	require.NoError(t, err)
	return tbl, Request{Headers: tbl.Headers, Rows: tbl.Rows}
}

func TestHeuristicBarChart(t *testing.T) {
	_, req := parsed(t, "category,value\nA,10\nB,20")
	req.Prompt = "show me a bar chart"

	p, err := NewHeuristic().Propose(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, ModeSingle, p.Mode)

	ins := p.Single
	assert.Equal(t, chart.KindBar, ins.Type)
	assert.Equal(t, "category", ins.Traces[0].X)
	assert.Equal(t, "value", ins.Traces[0].Y)
	assert.Equal(t, "Total of **value** is **30.0** across 2 categories.", ins.Desc)
	assert.Equal(t, chart.Transparent, ins.Layout.PaperBgcolor)
	assert.Len(t, p.Rows, 2)
}

func TestHeuristicRecipeDescriptions(t *testing.T) {
	_, req := parsed(t, "date,region,units,price\n"+
		"2024-01-01,north,4,1.5\n"+
		"2024-02-01,south,6,2.5\n"+
		"2024-03-01,north,oops,3.5\n")

	tests := []struct {
		recipe Recipe
		kind   chart.Kind
		desc   string
	}{
		{RecipeLine, chart.KindLine, "Average **5.0** over **3** data points."},
		{RecipeScatter, chart.KindScatter, "Correlation plot between **units** and **price** (mean price **2.5**)."},
		{RecipeHeatMap, chart.KindHeatmap, "Heatmap of **region** vs. **price** by **units** (total **10.0**)."},
		{RecipeTimeBrush, chart.KindLine, "Interactive time-series for **units** (mean **5.0**). Drag the range slider to zoom."},
	}

	for _, tt := range tests {
		t.Run(string(tt.recipe), func(t *testing.T) {
			ins, _, err := RunRecipe(tt.recipe, req.Headers, req.Rows)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ins.Type)
			assert.Equal(t, tt.desc, ins.Desc)
		})
	}
}

func TestTimeBrushHasRangeSlider(t *testing.T) {
	_, req := parsed(t, "date,value\n2023-01-01,10\n2023-02-01,13")
	ins, plotted, err := RunRecipe(RecipeTimeBrush, req.Headers, req.Rows)
	require.NoError(t, err)
	require.NotNil(t, ins.Layout.XAxis.RangeSlider)
	assert.True(t, ins.Layout.XAxis.RangeSlider.Visible)
	assert.Equal(t, "date", ins.Traces[0].X)
	assert.Equal(t, req.Rows, plotted)
}

func TestHeatMapSumsRepeatedCells(t *testing.T) {
	_, req := parsed(t, "region,product,units\nnorth,a,10\nnorth,a,5\nsouth,b,7\n")
	req.Prompt = "heatmap of units"

	p, err := NewHeuristic().Propose(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, chart.KindHeatmap, p.Single.Type)

	tr := p.Single.Traces[0]
	assert.Equal(t, "region", tr.X)
	assert.Equal(t, "product", tr.Y)
	assert.Equal(t, "units", tr.Z)
	assert.Equal(t, "Sum of units", tr.Name)

	want := []table.Row{
		{"region": table.String("north"), "product": table.String("a"), "units": table.Number(15)},
		{"region": table.String("south"), "product": table.String("b"), "units": table.Number(7)},
	}
	assert.Equal(t, want, p.Rows)
	assert.Equal(t, "Heatmap of **region** vs. **product** by **units** (total **22.0**).", p.Single.Desc)

	fig, err := chart.BuildFigure(p.Single, p.Rows)
	require.NoError(t, err)
	require.Len(t, fig.Data, 1)
	assert.Equal(t, "Sum of units", fig.Data[0].Name)
	assert.Equal(t, []table.Value{table.Number(15), table.Number(7)}, fig.Data[0].Z)
	assert.Equal(t, []table.Value{table.String("north"), table.String("south")}, fig.Data[0].X)
}

func TestRunRecipeUnknown(t *testing.T) {
	_, _, err := RunRecipe("pieChart", nil, nil)
	assert.EqualError(t, err, "unknown recipe: pieChart")
}

func TestHeuristicUsesSampleDataWithoutRows(t *testing.T) {
	p, err := NewHeuristic().Propose(context.Background(), Request{Prompt: "bar chart"})
	require.NoError(t, err)

	assert.Len(t, p.Rows, 6)
	assert.Equal(t, "Total of **value** is **351.0** across 6 categories.", p.Single.Desc)
}

func TestHeuristicCapsRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("category,value\n")
	for i := 0; i < table.RecipeMaxRows+50; i++ {
		fmt.Fprintf(&b, "c%d,1\n", i)
	}
	_, req := parsed(t, b.String())
	req.Prompt = "bar"

	p, err := NewHeuristic().Propose(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, p.Rows, table.RecipeMaxRows)
	assert.Equal(t, fmt.Sprintf("Total of **value** is **%d.0** across %d categories.",
		table.RecipeMaxRows, table.RecipeMaxRows), p.Single.Desc)
}
