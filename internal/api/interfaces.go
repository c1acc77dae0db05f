// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/pipeline"
	"github.com/microgrid-sizing/backend/internal/workspace"
)

// OptimizeHandler runs the optimizer workflows
type OptimizeHandler interface {
	HandleDeterministic(c echo.Context) error
	HandleMultiyear(c echo.Context) error
}

// FilesHandler serves report files from run workspaces
type FilesHandler interface {
	HandleDownload(c echo.Context) error
	HandleRunFile(c echo.Context) error
}

// RunsHandler reports run status and history
type RunsHandler interface {
	HandleListRuns(c echo.Context) error
	HandleGetRun(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Runner executes optimization requests. This allows mocking in tests.
type Runner interface {
	Run(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)
}

// WorkspaceOpener resolves run workspaces by ID, or by a report name when
// the client gives no run.
type WorkspaceOpener interface {
	Open(id string) (*workspace.Workspace, error)
	Locate(name string) (*workspace.Workspace, error)
}

// RunStatus looks up live runs.
type RunStatus interface {
	Get(id string) (models.RunSession, bool)
	List() []models.RunSession
}

// RunHistory reads persisted run records.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]models.RunRecord, error)
	Get(ctx context.Context, id string) (*models.RunRecord, error)
}
