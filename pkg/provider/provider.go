// Package provider turns a user prompt plus table headers into chart
// instructions, either by asking a text-generation model or by picking a
// built-in recipe.
package provider

import (
	"context"
	"fmt"

	"github.com/sabio/datlas-chat-plugin/pkg/chart"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Mode says which payload a Proposal carries
type Mode string

const (
	ModeSingle    Mode = "single"
	ModeDashboard Mode = "dashboard"
)

// Kind names a provider strategy
type Kind string

const (
	KindRemote    Kind = "remote"
	KindHeuristic Kind = "heuristic"
)

// Request is the input of Propose
type Request struct {
	Prompt  string
	Headers []string
	// Rows are only read by strategies that profile the data locally
	Rows []table.Row
}

// Proposal is a single chart or a dashboard of charts
type Proposal struct {
	Mode      Mode
	Single    *chart.Instruction
	Dashboard *chart.DashboardSpec
	// Rows, when set, replace the request rows for building (recipes
	// truncate their input and fall back to sample data)
	Rows []table.Row
}

// Provider proposes chart instructions for a prompt
type Provider interface {
	Propose(ctx context.Context, req Request) (*Proposal, error)
}

// InstructionError means the model reply was not a usable instruction envelope
type InstructionError struct {
	Reply string
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("AI failed to generate valid plot instructions: %v", e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// NetworkError means the remote call itself failed
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("AI analysis failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
