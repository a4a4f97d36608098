package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Generator produces a JSON reply for a prompt
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Remote asks a text-generation model for chart instructions
type Remote struct {
	gen Generator
}

// NewRemote creates a new Remote provider
func NewRemote(gen Generator) *Remote {
	return &Remote{gen: gen}
}

// Propose sends the prompt and headers to the model and decodes its reply
func (r *Remote) Propose(ctx context.Context, req Request) (*Proposal, error) {
	if len(req.Headers) == 0 {
		return nil, table.ErrHeaderMissing
	}

	reply, err := r.gen.GenerateJSON(ctx, BuildChartPrompt(req.Prompt, req.Headers))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	return ParseReply(reply)
}

// BuildChartPrompt assembles the system instruction, the user request and the
// header list into one prompt
func BuildChartPrompt(prompt string, headers []string) string {
	return fmt.Sprintf("%s\n\nUser request: %q\n\nCSV Headers:\n%s",
		ChartSystemPrompt, prompt, strings.Join(headers, ", "))
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.+?)\\s*```")

// envelope is the reply shape requested by ChartSystemPrompt
type envelope struct {
	Mode      Mode                 `json:"mode"`
	Single    *chart.Instruction   `json:"single"`
	Dashboard *chart.DashboardSpec `json:"dashboard"`
}

// ParseReply decodes a model reply, tolerating a fenced code block around the
// JSON, and forces the layout cosmetics of every chart.
func ParseReply(reply string) (*Proposal, error) {
	text := strings.TrimSpace(reply)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, &InstructionError{Reply: reply, Err: err}
	}

	if env.Mode == ModeDashboard && env.Dashboard != nil && len(env.Dashboard.Charts) > 0 {
		for i := range env.Dashboard.Charts {
			env.Dashboard.Charts[i].Layout.Sanitize()
		}
		return &Proposal{Mode: ModeDashboard, Dashboard: env.Dashboard}, nil
	}

	if env.Single != nil {
		env.Single.Layout.Sanitize()
		return &Proposal{Mode: ModeSingle, Single: env.Single}, nil
	}

	return nil, &InstructionError{
		Reply: reply,
		Err:   errors.New("reply contains neither a single chart nor a dashboard"),
	}
}
