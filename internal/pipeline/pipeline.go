// Package pipeline runs one optimization request end to end: it ingests the
// uploaded artifacts into a fresh workspace, prepares the optimizer inputs,
// invokes the engine and collects the reports it left behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/ingest"
	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/optimizer"
	"github.com/microgrid-sizing/backend/internal/runs"
	"github.com/microgrid-sizing/backend/internal/serialize"
	"github.com/microgrid-sizing/backend/internal/summary"
	"github.com/microgrid-sizing/backend/internal/workspace"
	"github.com/microgrid-sizing/backend/internal/wsdiff"
)

// Response messages per workflow.
const (
	MessageDeterministic = "Modelo determinístico ejecutado correctamente."
	MessageMultiyear     = "Modelo multiyear ejecutado correctamente."
)

// observerTimeout bounds each side-channel call after a run.
const observerTimeout = 10 * time.Second

// Observer receives the record of every run that reached a workspace.
type Observer interface {
	Observe(ctx context.Context, rec *models.RunRecord) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec *models.RunRecord) error

func (f ObserverFunc) Observe(ctx context.Context, rec *models.RunRecord) error { return f(ctx, rec) }

// Request is one optimization request.
type Request struct {
	Mode       models.Mode
	Instance   ingest.Artifact
	Parameters ingest.Artifact
	Demand     ingest.Artifact
	Forecast   ingest.Artifact
	// Scalars holds the raw form values; missing or blank entries take the
	// service defaults.
	Scalars map[string]string
}

func (r *Request) artifacts() []ingest.Artifact {
	return []ingest.Artifact{r.Instance, r.Parameters, r.Demand, r.Forecast}
}

// Response is the body returned to the caller.
type Response struct {
	Message          string               `json:"message" msgpack:"message"`
	RunID            string               `json:"run_id" msgpack:"run_id"`
	Summary          models.ReportSummary `json:"summary" msgpack:"summary"`
	Percent          any                  `json:"percent" msgpack:"percent"`
	Energy           any                  `json:"energy" msgpack:"energy"`
	Renew            any                  `json:"renew" msgpack:"renew"`
	Total            any                  `json:"total" msgpack:"total"`
	Brand            any                  `json:"brand" msgpack:"brand"`
	InstanceDataUsed map[string]any       `json:"instance_data_used" msgpack:"instance_data_used"`
	Reports          []string             `json:"reports" msgpack:"reports"`
}

// Options holds the per-service settings of the pipeline.
type Options struct {
	Auxiliary inputs.Auxiliary
	Defaults  augment.Overrides
	// OptimizerTimeout bounds the engine call; zero means unbounded.
	OptimizerTimeout time.Duration
}

// Service runs optimization requests.
type Service struct {
	workspaces *workspace.Manager
	engine     optimizer.Engine
	extractor  summary.Extractor
	costs      augment.CostDeriver
	opts       Options
	tracker    *runs.Tracker
	observers  []Observer
	log        logger.Logger
}

// New creates a Service. A nil extractor, cost deriver or tracker gets the
// default implementation.
func New(ws *workspace.Manager, engine optimizer.Engine, extractor summary.Extractor,
	costs augment.CostDeriver, opts Options, tracker *runs.Tracker, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if extractor == nil {
		extractor = summary.NewSpreadsheetExtractor(log)
	}
	if costs == nil {
		costs = augment.AnnuityCostModel{}
	}
	if tracker == nil {
		tracker = runs.NewTracker(log)
	}
	return &Service{
		workspaces: ws,
		engine:     engine,
		extractor:  extractor,
		costs:      costs,
		opts:       opts,
		tracker:    tracker,
		log:        log,
	}
}

// AddObserver registers a side channel notified after every run.
func (s *Service) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Tracker returns the run tracker.
func (s *Service) Tracker() *runs.Tracker {
	return s.tracker
}

// Workspaces returns the workspace manager.
func (s *Service) Workspaces() *workspace.Manager {
	return s.workspaces
}

// Defaults returns the overrides applied to omitted form scalars.
func (s *Service) Defaults() augment.Overrides {
	return s.opts.Defaults
}

// Run executes one request. Errors wrap the sentinels in models so callers
// can map them to client or server failures.
func (s *Service) Run(ctx context.Context, req *Request) (*Response, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", models.ErrConfig, req.Mode)
	}
	artifacts := req.artifacts()
	if err := ingest.Validate(artifacts...); err != nil {
		return nil, err
	}
	overrides, err := augment.ParseOverrides(req.Scalars, s.opts.Defaults)
	if err != nil {
		return nil, err
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}

	ws, err := s.workspaces.Create()
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	defer s.workspaces.Release(ws)

	started := time.Now()
	s.tracker.Start(ws.ID, req.Mode, ws.Dir())
	s.log.Infof("run %s: %s model started in %s", ws.ID, req.Mode, ws.Dir())

	resp, err := s.execute(ctx, ws, req, artifacts, overrides)

	rec := &models.RunRecord{
		ID:         ws.ID,
		Mode:       req.Mode,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
		Summary:    models.ReportSummary{},
		Reports:    []string{},
	}
	if err != nil {
		s.tracker.Fail(ws.ID, err)
		rec.Status = models.RunStatusError
		rec.Error = err.Error()
		s.log.Errorf("run %s failed after %dms: %v", ws.ID, rec.DurationMs, err)
	} else {
		s.tracker.Complete(ws.ID, resp.Reports)
		rec.Status = models.RunStatusComplete
		rec.Summary = resp.Summary
		rec.Reports = resp.Reports
		s.log.Infof("run %s completed in %dms with %d reports", ws.ID, rec.DurationMs, len(resp.Reports))
	}
	s.notify(ctx, rec)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) execute(ctx context.Context, ws *workspace.Workspace, req *Request,
	artifacts []ingest.Artifact, overrides augment.Overrides) (*Response, error) {
	s.tracker.SetStage(ws.ID, runs.StageIngesting)
	stored, err := ingest.All(ws.Store, artifacts...)
	if err != nil {
		return nil, err
	}
	if err := inputs.CheckAuxiliary(s.opts.Auxiliary, req.Mode); err != nil {
		return nil, err
	}

	s.tracker.SetStage(ws.ID, runs.StageReading)
	in, err := inputs.Read(inputs.Paths{
		Instance:   stored[0],
		Parameters: stored[1],
		Demand:     stored[2],
		Forecast:   stored[3],
	}, s.opts.Auxiliary, req.Mode)
	if err != nil {
		return nil, err
	}

	s.tracker.SetStage(ws.ID, runs.StageAugmenting)
	if err := augment.Apply(in, overrides, s.costs); err != nil {
		return nil, err
	}
	if req.Mode == models.ModeMultiyear {
		in.Demand, in.Forecast, err = inputs.ExpandMultiyear(in.Demand, in.Forecast, *in.Multiyear, in.Config.Years)
		if err != nil {
			return nil, err
		}
	}
	s.log.Debugw("config augmented", map[string]any{
		"run":            ws.ID,
		"years":          in.Config.Years,
		"demand_covered": in.Config.DemandCovered,
		"i_f":            in.Config.DiscountRate,
		"tlpsp":          in.Config.LPSPLimit,
	})

	s.tracker.SetStage(ws.ID, runs.StageOptimizing)
	result, err := s.invoke(ctx, req.Mode, optimizer.NewRequest(in, ws.Dir()))
	if err != nil {
		return nil, err
	}

	s.tracker.SetStage(ws.ID, runs.StageCollecting)
	post, err := wsdiff.Snapshot(ws.Dir())
	if err != nil {
		return nil, fmt.Errorf("listing workspace: %w", err)
	}
	reports := wsdiff.NewOutputs(post, ingest.Names(artifacts...)...)
	if missing := wsdiff.Missing(result.Manifest, reports); len(missing) > 0 {
		s.log.Warnf("run %s: engine listed %v but they are not reported", ws.ID, missing)
	}

	sum, err := s.extractor.Extract(ctx, ws.Dir())
	if err != nil {
		s.log.Warnf("run %s: summary extraction failed: %v", ws.ID, err)
		sum = models.ReportSummary{}
	}

	return &Response{
		Message:          message(req.Mode),
		RunID:            ws.ID,
		Summary:          sum,
		Percent:          serialize.Records(result.Percent),
		Energy:           serialize.Records(result.Energy),
		Renew:            serialize.Records(result.Renew),
		Total:            serialize.Records(result.Total),
		Brand:            serialize.Records(result.Brand),
		InstanceDataUsed: in.Config.Map(),
		Reports:          reports,
	}, nil
}

// invoke calls the engine detached from the caller's cancellation. Only the
// configured timeout can stop it.
func (s *Service) invoke(ctx context.Context, mode models.Mode, req *optimizer.Request) (*optimizer.Result, error) {
	octx := context.WithoutCancel(ctx)
	if s.opts.OptimizerTimeout > 0 {
		var cancel context.CancelFunc
		octx, cancel = context.WithTimeout(octx, s.opts.OptimizerTimeout)
		defer cancel()
	}

	result, err := optimizer.Run(octx, s.engine, mode, req)
	if err != nil {
		if errors.Is(err, models.ErrOptimizerFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", models.ErrOptimizerFailure, s.engine.Name(), err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s returned no result", models.ErrOptimizerFailure, s.engine.Name())
	}
	return result, nil
}

func (s *Service) notify(ctx context.Context, rec *models.RunRecord) {
	for _, o := range s.observers {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), observerTimeout)
		if err := o.Observe(octx, rec); err != nil {
			s.log.Warnf("run %s: observer failed: %v", rec.ID, err)
		}
		cancel()
	}
}

func message(mode models.Mode) string {
	if mode == models.ModeMultiyear {
		return MessageMultiyear
	}
	return MessageDeterministic
}
