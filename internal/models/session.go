package models

import "time"

// Mode selects which optimizer workflow a run executes.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeMultiyear     Mode = "multiyear"
)

// Valid reports whether m names a supported workflow.
func (m Mode) Valid() bool {
	return m == ModeDeterministic || m == ModeMultiyear
}

// RunStatus represents the status of an optimization run.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusError    RunStatus = "error"
)

// RunSession tracks one optimization run from upload to response.
type RunSession struct {
	ID          string     `json:"id"`
	Mode        Mode       `json:"mode"`
	Status      RunStatus  `json:"status"`
	Stage       string     `json:"stage"`
	Progress    float64    `json:"progress"` // 0-100
	Workspace   string     `json:"workspace,omitempty"`
	Reports     []string   `json:"reports,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewRunSession creates a new RunSession in pending status.
func NewRunSession(id string, mode Mode) *RunSession {
	return &RunSession{
		ID:        id,
		Mode:      mode,
		Status:    RunStatusPending,
		Stage:     "queued",
		StartedAt: time.Now(),
	}
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	ID         string        `json:"id"`
	Mode       Mode          `json:"mode"`
	Status     RunStatus     `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	DurationMs int64         `json:"durationMs"`
	Summary    ReportSummary `json:"summary"`
	Reports    []string      `json:"reports"`
	Error      string        `json:"error,omitempty"`
}
