package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/history"
	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/metrics"
	"github.com/microgrid-sizing/backend/internal/notify"
	"github.com/microgrid-sizing/backend/internal/optimizer"
	"github.com/microgrid-sizing/backend/internal/pipeline"
	"github.com/microgrid-sizing/backend/internal/runs"
	"github.com/microgrid-sizing/backend/internal/summary"
	"github.com/microgrid-sizing/backend/internal/workspace"
)

// app is the wired service shared by the serve and run commands.
type app struct {
	cfg        *config.AppConfig
	log        logger.Logger
	workspaces *workspace.Manager
	engine     optimizer.Engine
	service    *pipeline.Service
	tracker    *runs.Tracker
	history    *history.Store
	prom       *metrics.PromSink
	notifier   *notify.Notifier
	closers    []func()
}

// loadConfig reads the config file and configures logging from it.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Configure(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires every component from cfg. reg may be nil to skip Prometheus
// registration, which the one-shot run command does.
func newApp(cfg *config.AppConfig, reg *prometheus.Registry) (*app, error) {
	a := &app{cfg: cfg, log: logger.New("app")}

	ws, err := workspace.NewManager(cfg.Storage.WorkspaceDirectory, cfg.Storage.IsolateRuns, logger.New("workspace"))
	if err != nil {
		return nil, fmt.Errorf("initializing workspaces: %w", err)
	}
	a.workspaces = ws

	engine, err := newEngine(cfg.Optimizer)
	if err != nil {
		return nil, err
	}
	a.engine = engine

	a.tracker = runs.NewTracker(logger.New("runs"))
	a.service = pipeline.New(ws, engine,
		summary.NewSpreadsheetExtractor(logger.New("summary")),
		augment.AnnuityCostModel{},
		pipeline.Options{
			Auxiliary: inputs.Auxiliary{
				Fiscal:    cfg.FiscalPath(),
				Cost:      cfg.CostPath(),
				Multiyear: cfg.MultiyearPath(),
			},
			Defaults: augment.Overrides{
				Years:         cfg.Defaults.Years,
				DemandCovered: cfg.Defaults.DemandCovered,
				DiscountRate:  cfg.Defaults.DiscountRate,
				LPSPLimit:     cfg.Defaults.LPSPLimit,
			},
			OptimizerTimeout: time.Duration(cfg.Optimizer.TimeoutSeconds) * time.Second,
		},
		a.tracker,
		logger.New("pipeline"),
	)

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, logger.New("history"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.history = store
		a.service.AddObserver(store)
		a.closers = append(a.closers, func() { store.Close() })
	}

	metricsCfg := cfg.Metrics
	if reg == nil {
		metricsCfg.PrometheusEnabled = false
	}
	var registerer prometheus.Registerer
	var gatherer prometheus.Gatherer
	if reg != nil {
		registerer, gatherer = reg, reg
	}
	sink, prom, err := metrics.FromConfig(metricsCfg, registerer, gatherer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	a.prom = prom
	if _, nop := sink.(metrics.NopSink); !nop {
		a.service.AddObserver(pipeline.ObserverFunc(sink.RecordRun))
	}
	if c, ok := sink.(interface{ Close() }); ok {
		a.closers = append(a.closers, c.Close)
	}

	if cfg.MQTT.Enabled {
		n, err := notify.Connect(cfg.MQTT, logger.New("notify"))
		if err != nil {
			a.log.Warnf("mqtt notifications disabled: %v", err)
		} else {
			a.notifier = n
			a.service.AddObserver(n)
			a.closers = append(a.closers, n.Close)
		}
	}

	return a, nil
}

func newEngine(cfg config.OptimizerConfig) (optimizer.Engine, error) {
	switch cfg.Engine {
	case "process":
		return optimizer.NewProcessEngine(cfg.Command, cfg.PlotFile, logger.New("optimizer"))
	case "reference", "":
		return optimizer.NewReferenceEngine(optimizer.ReferenceOptions{
			Seed:       uint64(cfg.Seed),
			Iterations: cfg.Iterations,
			Alpha:      cfg.Alpha,
		}, logger.New("optimizer")), nil
	}
	return nil, errors.New("unknown optimizer engine " + cfg.Engine)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
