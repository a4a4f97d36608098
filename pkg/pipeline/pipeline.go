// Package pipeline runs prompt + table text through a provider, the transform
// engine and the trace builder, and keeps the latest result per session.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"golang.org/x/sync/errgroup"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Options controls Run
type Options struct {
	// MaxRows caps parsed rows (0 = table.DefaultMaxRows)
	MaxRows int
}

// Chart is one render-ready figure with its description
type Chart struct {
	Figure      *chart.Figure `json:"figure"`
	Description string        `json:"description"`
}

// Dashboard is an ordered list of figures under a shared title
type Dashboard struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Charts      []Chart `json:"charts"`
}

// Result is the output of a pipeline run
type Result struct {
	ID        string        `json:"id"`
	Mode      provider.Mode `json:"mode"`
	Single    *Chart        `json:"single,omitempty"`
	Dashboard *Dashboard    `json:"dashboard,omitempty"`
}

// Description returns the text shown next to the result
func (r *Result) Description() string {
	switch {
	case r.Single != nil:
		return r.Single.Description
	case r.Dashboard != nil:
		return r.Dashboard.Description
	}
	return ""
}

// Run turns a prompt and CSV text into a Result. Empty csvText is passed to
// the provider as a request without data.
func Run(ctx context.Context, p provider.Provider, prompt, csvText string, opts Options) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = provider.DefaultPrompt
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = table.DefaultMaxRows
	}

	var req provider.Request
	req.Prompt = prompt

	if strings.TrimSpace(csvText) != "" {
		if _, err := table.Headers(csvText); err != nil {
			return nil, err
		}
		tbl, err := table.Parse(csvText, table.ParseOptions{MaxRows: opts.MaxRows})
		if err != nil {
			return nil, err
		}
		req.Headers, req.Rows = tbl.Headers, tbl.Rows
	}

	proposal, err := p.Propose(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := req.Rows
	if proposal.Rows != nil {
		rows = proposal.Rows
	}

	return Assemble(ctx, proposal, rows)
}

// Assemble builds the figures of a proposal. Dashboard charts are built
// concurrently against the globally filtered rows; the result keeps their
// declaration order and any failing chart fails the whole dashboard.
func Assemble(ctx context.Context, p *provider.Proposal, rows []table.Row) (*Result, error) {
	res := &Result{ID: uuid.NewString(), Mode: p.Mode}

	switch p.Mode {
	case provider.ModeSingle:
		if p.Single == nil {
			return nil, fmt.Errorf("single proposal without instruction")
		}
		fig, err := chart.BuildFigure(p.Single, rows)
		if err != nil {
			return nil, err
		}
		res.Single = &Chart{Figure: fig, Description: p.Single.Desc}
		return res, nil

	case provider.ModeDashboard:
		if p.Dashboard == nil {
			return nil, fmt.Errorf("dashboard proposal without charts")
		}
		charts, err := buildDashboard(ctx, p.Dashboard, rows)
		if err != nil {
			return nil, err
		}
		res.Dashboard = &Dashboard{
			Title:       p.Dashboard.Title,
			Description: p.Dashboard.Desc,
			Charts:      charts,
		}
		return res, nil
	}

	return nil, fmt.Errorf("unknown proposal mode: %q", p.Mode)
}

func buildDashboard(ctx context.Context, spec *chart.DashboardSpec, rows []table.Row) ([]Chart, error) {
	filtered := chart.ApplyFilters(rows, spec.GlobalFilters)
	charts := make([]Chart, len(spec.Charts))

	g, ctx := errgroup.WithContext(ctx)
	for i := range spec.Charts {
		ins := &spec.Charts[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fig, err := chart.BuildFigure(ins, filtered)
			if err != nil {
				log.DefaultLogger.Warn("Dashboard chart failed", "index", i, "type", ins.Type, "error", err)
				return fmt.Errorf("chart %d: %w", i+1, err)
			}
			charts[i] = Chart{Figure: fig, Description: ins.Desc}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return charts, nil
}
