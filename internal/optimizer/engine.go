// Package optimizer is the boundary to the microgrid sizing optimizer.
package optimizer

import (
	"context"

	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/models"
)

// Heuristic operators handed to the optimizer. They are fixed policy, not
// request parameters.
const (
	ConstructionGRASP = "GRASP"
	DestructionRandom = "RANDOM"

	// Accepted by the reference engine only.
	ConstructionGreedy = "GREEDY"
	DestructionWorst   = "WORST"
)

// Engine runs the sizing optimizer. Both entry points are synchronous, may
// run for a long time and may write report files into Request.Workspace.
// Any returned error fails the run.
type Engine interface {
	Name() string
	RunSingleYear(ctx context.Context, req *Request) (*Result, error)
	RunMultiYear(ctx context.Context, req *Request) (*Result, error)
}

// Request is the full input of one optimizer call.
type Request struct {
	Demand       *models.Series         `json:"demand"`
	Forecast     *models.Series         `json:"forecast"`
	Generators   []models.Generator     `json:"generators"`
	Batteries    []models.Battery       `json:"batteries"`
	Config       *models.InstanceConfig `json:"config"`
	Fiscal       models.FiscalData      `json:"fiscal"`
	Cost         models.CostData        `json:"cost"`
	Multiyear    *models.MultiyearData  `json:"multiyear,omitempty"`
	Construction string                 `json:"construction"`
	Destruction  string                 `json:"destruction"`
	Workspace    string                 `json:"workspace"`
}

// NewRequest builds a request from prepared inputs with the fixed operators.
func NewRequest(in *inputs.Inputs, workspace string) *Request {
	return &Request{
		Demand:       in.Demand,
		Forecast:     in.Forecast,
		Generators:   in.Generators,
		Batteries:    in.Batteries,
		Config:       in.Config,
		Fiscal:       in.Fiscal,
		Cost:         in.Cost,
		Multiyear:    in.Multiyear,
		Construction: ConstructionGRASP,
		Destruction:  DestructionRandom,
		Workspace:    workspace,
	}
}

// Result holds the five result tables. Manifest optionally lists the files
// the engine wrote into the workspace.
type Result struct {
	Percent  *models.Table `json:"percent"`
	Energy   *models.Table `json:"energy"`
	Renew    *models.Table `json:"renew"`
	Total    *models.Table `json:"total"`
	Brand    *models.Table `json:"brand"`
	Manifest []string      `json:"manifest,omitempty"`
}

// Run dispatches to the entry point for mode.
func Run(ctx context.Context, e Engine, mode models.Mode, req *Request) (*Result, error) {
	if mode == models.ModeMultiyear {
		return e.RunMultiYear(ctx, req)
	}
	return e.RunSingleYear(ctx, req)
}
