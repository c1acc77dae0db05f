package optimizer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

// Default output names of the reference engine.
const (
	DefaultReportFile = "Results.xlsx"
	DefaultPlotFile   = "temp-plot.html"
)

// ReferenceOptions tunes the reference engine's search.
type ReferenceOptions struct {
	// Seed of the random operators; zero draws a fresh seed per run.
	Seed uint64
	// Iterations of destruction and reconstruction after the first build.
	Iterations int
	// Alpha is the GRASP restricted candidate list width, 0 greedy to 1 random.
	Alpha float64
	// MaxUnits bounds the size of a solution.
	MaxUnits int

	ReportFile string
	PlotFile   string
}

// ReferenceEngine is a small built-in sizing heuristic. It builds a solution
// with a GRASP construction, perturbs it with random destruction and keeps
// the cheapest configuration that meets the LPSP and area limits. It writes
// a KPI workbook and an HTML dispatch plot into the workspace.
type ReferenceEngine struct {
	opts ReferenceOptions
	log  logger.Logger
}

// NewReferenceEngine creates a ReferenceEngine with defaults filled in.
func NewReferenceEngine(opts ReferenceOptions, log logger.Logger) *ReferenceEngine {
	if opts.Iterations < 0 {
		opts.Iterations = 0
	}
	if opts.Alpha < 0 || opts.Alpha > 1 {
		opts.Alpha = 0.3
	}
	if opts.MaxUnits <= 0 {
		opts.MaxUnits = 200
	}
	if opts.ReportFile == "" {
		opts.ReportFile = DefaultReportFile
	}
	if opts.PlotFile == "" {
		opts.PlotFile = DefaultPlotFile
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &ReferenceEngine{opts: opts, log: log}
}

func (e *ReferenceEngine) Name() string { return "reference" }

func (e *ReferenceEngine) RunSingleYear(ctx context.Context, req *Request) (*Result, error) {
	return e.run(ctx, req, false)
}

func (e *ReferenceEngine) RunMultiYear(ctx context.Context, req *Request) (*Result, error) {
	if req.Multiyear == nil {
		return nil, fmt.Errorf("%w: multiyear data missing", models.ErrOptimizerFailure)
	}
	return e.run(ctx, req, true)
}

func (e *ReferenceEngine) run(ctx context.Context, req *Request, multiyear bool) (*Result, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	rng := e.newRand()
	p := newPlant(req, multiyear)
	s := &search{
		plant: p,
		rng:   rng,
		alpha: e.opts.Alpha,
		limit: e.opts.MaxUnits,
		add:   req.Construction,
		drop:  req.Destruction,
	}

	best, bestOut, err := s.construct(ctx, s.empty())
	if err != nil {
		return nil, err
	}
	for it := 0; it < e.opts.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrOptimizerFailure, err)
		}
		cand, candOut, err := s.construct(ctx, s.destroy(best))
		if err != nil {
			return nil, err
		}
		if candOut.score < bestOut.score {
			best, bestOut = cand, candOut
		}
	}
	e.log.Infof("sizing done: units=%d lcoe=%.4f lpsp=%.4f feasible=%t",
		best.units(), bestOut.lcoe, bestOut.lpsp, bestOut.feasible)

	res := buildTables(p, best, bestOut)

	report := filepath.Join(req.Workspace, e.opts.ReportFile)
	if err := writeReport(report, p, bestOut); err != nil {
		return nil, fmt.Errorf("%w: writing report: %v", models.ErrOptimizerFailure, err)
	}
	plot := filepath.Join(req.Workspace, e.opts.PlotFile)
	if err := writePlot(plot, p, bestOut); err != nil {
		return nil, fmt.Errorf("%w: writing plot: %v", models.ErrOptimizerFailure, err)
	}
	res.Manifest = []string{e.opts.ReportFile, e.opts.PlotFile}
	return res, nil
}

func (e *ReferenceEngine) newRand() *rand.Rand {
	seed := e.opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func checkRequest(req *Request) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: nil request", models.ErrOptimizerFailure)
	case req.Demand == nil || !req.Demand.Has(models.ColumnDemand):
		return fmt.Errorf("%w: demand series missing", models.ErrOptimizerFailure)
	case req.Forecast == nil:
		return fmt.Errorf("%w: forecast series missing", models.ErrOptimizerFailure)
	case len(req.Generators) == 0 && len(req.Batteries) == 0:
		return fmt.Errorf("%w: no candidate equipment", models.ErrOptimizerFailure)
	case req.Workspace == "":
		return fmt.Errorf("%w: workspace not set", models.ErrOptimizerFailure)
	}
	switch req.Construction {
	case ConstructionGRASP, ConstructionGreedy:
	default:
		return fmt.Errorf("%w: unknown construction operator %q", models.ErrOptimizerFailure, req.Construction)
	}
	switch req.Destruction {
	case DestructionRandom, DestructionWorst:
	default:
		return fmt.Errorf("%w: unknown destruction operator %q", models.ErrOptimizerFailure, req.Destruction)
	}
	return nil
}
