package provider

// DefaultPrompt replaces an empty user prompt
const DefaultPrompt = "Summarize the data in this file with a suitable chart."

// Palette is the midnight color set used by charts
var Palette = []string{"#fff", "#22d3ee", "#a78bfa", "#f472b6", "#fbbf24", "#34d499"}

// ChartSystemPrompt asks the model for the single/dashboard envelope
const ChartSystemPrompt = `You are Plotly-Dashboard-Builder 4.0.
You receive:
- User request
- CSV column headers

Reply **only** JSON of shape:
{
  "mode": "single" | "dashboard",
  "single": {
    "type": "line" | "bar" | "scatter" | "heatmap" | "box" | "violin" | "histogram" | "sunburst" | "treemap",
    "traces": [{
      "x": "column", "y": "column", "z": "column (optional)",
      "name": "string", "mode": "lines" | "markers" | "lines+markers",
      "marker": {"color": "#hex", "size": number},
      "line": {"shape": "linear" | "spline", "width": number},
      "groups": "column used to group aggregations (optional)",
      "transforms": [
        {"type": "filter", "filters": [{"target": "column", "operation": ">" | "<" | ">=" | "<=" | "==" | "!=", "value": "string or number"}]},
        {"type": "aggregate", "aggregations": [{"target": "column", "func": "sum" | "avg" | "min" | "max"}]}
      ]
    }],
    "layout": {
      "title": "string",
      "xaxis": {"title": "string"},
      "yaxis": {"title": "string"},
      "barmode": "group" | "stack" | "overlay",
      "bargap": number
    },
    "desc": "one sentence describing the chart"
  },
  "dashboard": {
    "title": "string",
    "charts": [ {...same shape as single}, ... ],
    "globalFilters": [{"field": "column", "op": ">" | "<" | "==" | "!=", "value": "string or number"}],
    "desc": "string"
  }
}

Rules:
- Use **only column names that exist** in the header.
- If user asks for **multiple views**, **comparisons**, **by region**, **over time**, **summary + detail**, etc. -> set mode:"dashboard".
- If user asks for **one chart** -> set mode:"single".
- Colours: midnight palette (#fff #22d3ee #a78bfa #f472b6 #fbbf24 #34d499).
- Reply **only JSON**, no markdown.`
