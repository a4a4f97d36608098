package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestRemoteProposeSingle(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n" + `{
		"mode": "single",
		"single": {
			"type": "bar",
			"traces": [{"x": "category", "y": "value"}],
			"layout": {"title": "Totals", "paper_bgcolor": "#000"},
			"desc": "Totals per category"
		}
	}` + "\n```"}

	p, err := NewRemote(gen).Propose(context.Background(), Request{
		Prompt:  "compare totals",
		Headers: []string{"category", "value"},
	})
	require.NoError(t, err)

	assert.Contains(t, gen.prompt, `User request: "compare totals"`)
	assert.Contains(t, gen.prompt, "CSV Headers:\ncategory, value")
	assert.True(t, strings.HasPrefix(gen.prompt, ChartSystemPrompt))

	assert.Equal(t, ModeSingle, p.Mode)
	require.NotNil(t, p.Single)
	assert.Equal(t, chart.KindBar, p.Single.Type)
	assert.Equal(t, "Totals per category", p.Single.Desc)
	assert.Equal(t, chart.Transparent, p.Single.Layout.PaperBgcolor)
	assert.Equal(t, &chart.DefaultMargin, p.Single.Layout.Margin)
}

func TestRemoteProposeNoHeaders(t *testing.T) {
	_, err := NewRemote(&fakeGenerator{}).Propose(context.Background(), Request{Prompt: "plot"})
	assert.ErrorIs(t, err, table.ErrHeaderMissing)
}

func TestRemoteProposeNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := NewRemote(&fakeGenerator{err: cause}).Propose(context.Background(), Request{
		Prompt:  "plot",
		Headers: []string{"a"},
	})

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.ErrorIs(t, err, cause)
}

func TestParseReplyDashboard(t *testing.T) {
	p, err := ParseReply(`{
		"mode": "dashboard",
		"single": {"type": "line", "traces": []},
		"dashboard": {
			"title": "Overview",
			"charts": [
				{"type": "bar", "traces": [{"x": "region", "y": "units"}], "layout": {"title": {"text": "By region"}}},
				{"type": "line", "traces": [{"x": "month", "y": "units"}], "layout": {"plot_bgcolor": "red"}}
			],
			"globalFilters": [{"field": "units", "op": ">", "value": 2}],
			"desc": "Two views"
		}
	}`)
	require.NoError(t, err)

	assert.Equal(t, ModeDashboard, p.Mode)
	require.NotNil(t, p.Dashboard)
	assert.Nil(t, p.Single)
	assert.Equal(t, "Overview", p.Dashboard.Title)
	require.Len(t, p.Dashboard.Charts, 2)
	assert.Equal(t, chart.Text("By region"), p.Dashboard.Charts[0].Layout.Title)
	for _, c := range p.Dashboard.Charts {
		assert.Equal(t, chart.Transparent, c.Layout.PlotBgcolor)
		assert.Equal(t, &chart.Font{Color: chart.FontColor}, c.Layout.Font)
	}
	require.Len(t, p.Dashboard.GlobalFilters, 1)
	assert.Equal(t, table.Number(2), *p.Dashboard.GlobalFilters[0].Value)
}

func TestParseReplyEmptyDashboardFallsBackToSingle(t *testing.T) {
	p, err := ParseReply(`{"mode": "dashboard", "dashboard": {"charts": []},
		"single": {"type": "histogram", "traces": [{"x": "a"}]}}`)
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, p.Mode)
	assert.Equal(t, chart.KindHistogram, p.Single.Type)
}

func TestParseReplyErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "Here is your chart!"},
		{"empty envelope", `{"mode": "single"}`},
		{"truncated fence", "```json\n{\"mode\": \"single\", \"single\": {\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.reply)
			var ie *InstructionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.reply, ie.Reply)
		})
	}
}

func TestParseReplyKeepsUnknownChartType(t *testing.T) {
	// unknown types are rejected at build time, not here
	p, err := ParseReply(`{"mode": "single", "single": {"type": "pie", "traces": [{"x": "a", "y": "b"}]}}`)
	require.NoError(t, err)
	assert.Equal(t, chart.Kind("pie"), p.Single.Type)
}
