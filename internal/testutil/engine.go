package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/optimizer"
	"github.com/xuri/excelize/v2"
)

// FakeEngine is a scripted optimizer.Engine. It records every request,
// writes the configured files into the workspace and returns Result.
type FakeEngine struct {
	// Report is written as a label/value workbook holding KPIs.
	Report string
	KPIs   [][]any
	// Files are written verbatim into the workspace.
	Files  map[string]string
	Result *optimizer.Result
	Err    error
	// Delay holds the call until it elapses or the context ends.
	Delay time.Duration

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded engine invocation. Demand is copied at call time.
type Call struct {
	Mode    models.Mode
	Request *optimizer.Request
	Demand  []float64
	Err     error
}

// NewFakeEngine returns an engine that writes Results.xlsx with a small KPI
// sheet and a plot file, and returns one-row tables.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Report: "Results.xlsx",
		KPIs: [][]any{
			{"LCOE", 0.42},
			{"Area", 1234.5},
			{"LPSP Mean", 0.03},
			{"Mean Surplus", 12.0},
		},
		Files:  map[string]string{"temp-plot.html": "<html></html>"},
		Result: fakeResult(),
	}
}

func fakeResult() *optimizer.Result {
	percent := models.NewTable("source", "percent")
	percent.Append("solar", 61.5)
	total := models.NewTable("lcoe", "area")
	total.Append(0.42, 1234.5)
	return &optimizer.Result{Percent: percent, Total: total}
}

func (f *FakeEngine) Name() string { return "fake" }

func (f *FakeEngine) RunSingleYear(ctx context.Context, req *optimizer.Request) (*optimizer.Result, error) {
	return f.run(ctx, models.ModeDeterministic, req)
}

func (f *FakeEngine) RunMultiYear(ctx context.Context, req *optimizer.Request) (*optimizer.Result, error) {
	return f.run(ctx, models.ModeMultiyear, req)
}

// Calls returns the recorded invocations.
func (f *FakeEngine) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeEngine) run(ctx context.Context, mode models.Mode, req *optimizer.Request) (*optimizer.Result, error) {
	call := Call{Mode: mode, Request: req}
	if req.Demand != nil {
		call.Demand = append([]float64(nil), req.Demand.Column(models.ColumnDemand)...)
	}
	err := f.execute(ctx, req.Workspace)
	call.Err = err

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return f.Result, nil
}

func (f *FakeEngine) execute(ctx context.Context, dir string) error {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Err != nil {
		return f.Err
	}
	for name, content := range f.Files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	if f.Report != "" {
		return writeKPIs(filepath.Join(dir, f.Report), f.KPIs)
	}
	return nil
}

func writeKPIs(path string, rows [][]any) error {
	x := excelize.NewFile()
	defer x.Close()
	for i, row := range rows {
		if err := x.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	return x.SaveAs(path)
}
