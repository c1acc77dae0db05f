// Package runs tracks the status of optimization runs in memory.
package runs

import (
	"sort"
	"sync"
	"time"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

// Stage names a step of the run pipeline.
type Stage string

const (
	StageIngesting  Stage = "ingesting"
	StageReading    Stage = "reading inputs"
	StageAugmenting Stage = "augmenting config"
	StageOptimizing Stage = "optimizing"
	StageCollecting Stage = "collecting reports"
)

// Overall progress at the start of each stage.
var stageProgress = map[Stage]float64{
	StageIngesting:  0,
	StageReading:    10,
	StageAugmenting: 25,
	StageOptimizing: 30,
	StageCollecting: 90,
}

// Tracker holds the live state of runs.
type Tracker struct {
	runs map[string]*models.RunSession
	mu   sync.RWMutex
	log  logger.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(log logger.Logger) *Tracker {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Tracker{runs: make(map[string]*models.RunSession), log: log}
}

// Start registers a run in pending status.
func (t *Tracker) Start(id string, mode models.Mode, workspace string) {
	run := models.NewRunSession(id, mode)
	run.Workspace = workspace

	t.mu.Lock()
	t.runs[id] = run
	t.mu.Unlock()
}

// Get returns a snapshot of a run.
func (t *Tracker) Get(id string) (models.RunSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	if !ok {
		return models.RunSession{}, false
	}
	return snapshot(run), true
}

// List returns snapshots of all tracked runs, newest first.
func (t *Tracker) List() []models.RunSession {
	t.mu.RLock()
	out := make([]models.RunSession, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, snapshot(run))
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// SetStage moves a run to a stage.
func (t *Tracker) SetStage(id string, stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return
	}
	run.Status = models.RunStatusRunning
	run.Stage = string(stage)
	run.Progress = stageProgress[stage]
}

// Complete marks a run finished with its reports.
func (t *Tracker) Complete(id string, reports []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return
	}
	run.Status = models.RunStatusComplete
	run.Stage = "done"
	run.Progress = 100
	run.Reports = append([]string(nil), reports...)
	now := time.Now()
	run.CompletedAt = &now
}

// Fail marks a run failed.
func (t *Tracker) Fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok {
		return
	}
	run.Status = models.RunStatusError
	run.Error = err.Error()
	now := time.Now()
	run.CompletedAt = &now
	t.log.Warnf("run %s failed at %s: %v", shortID(id), run.Stage, err)
}

// CleanupOld drops finished runs completed more than maxAge ago and returns
// how many were dropped.
func (t *Tracker) CleanupOld(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, run := range t.runs {
		if run.Status != models.RunStatusComplete && run.Status != models.RunStatusError {
			continue
		}
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(t.runs, id)
			removed++
		}
	}
	return removed
}

func snapshot(run *models.RunSession) models.RunSession {
	out := *run
	out.Reports = append([]string(nil), run.Reports...)
	if run.CompletedAt != nil {
		c := *run.CompletedAt
		out.CompletedAt = &c
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
