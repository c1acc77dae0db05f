// handlers_files.go - Report download handlers
package api

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/workspace"
)

// MIMESpreadsheet is served for every spreadsheet report, .xls included.
const MIMESpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var contentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".xlsx": MIMESpreadsheet,
	".xls":  MIMESpreadsheet,
}

// ContentType returns the download content type for a file name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return echo.MIMEOctetStream
}

// FilesHandlerImpl implements the FilesHandler interface
type FilesHandlerImpl struct {
	workspaces WorkspaceOpener
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(workspaces WorkspaceOpener) FilesHandler {
	return &FilesHandlerImpl{workspaces: workspaces}
}

// HandleDownload streams a file from the run named by the "run" query
// parameter. Without it the newest finished run holding the file is used.
func (h *FilesHandlerImpl) HandleDownload(c echo.Context) error {
	name := c.Param("filename")
	if runID := c.QueryParam("run"); runID != "" {
		return h.serve(c, runID, name)
	}

	ws, err := h.workspaces.Locate(name)
	if err != nil {
		if errors.Is(err, models.ErrArtifactNotFound) {
			return NewNotFoundError("file", name)
		}
		return FromError(err)
	}
	return h.send(c, ws, name)
}

// HandleRunFile streams a file from a run workspace
func (h *FilesHandlerImpl) HandleRunFile(c echo.Context) error {
	runID := c.Param("runId")
	if runID == "" {
		return NewNotFoundError("run", runID)
	}
	return h.serve(c, runID, c.Param("filename"))
}

func (h *FilesHandlerImpl) serve(c echo.Context, runID, name string) error {
	ws, err := h.workspaces.Open(runID)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return NewNotFoundError("run", runID)
		}
		return FromError(err)
	}
	return h.send(c, ws, name)
}

func (h *FilesHandlerImpl) send(c echo.Context, ws *workspace.Workspace, name string) error {
	path, err := ws.Store.GetFilePath(name)
	if err != nil {
		if errors.Is(err, models.ErrArtifactNotFound) {
			return NewNotFoundError("file", name)
		}
		return FromError(err)
	}

	c.Response().Header().Set(echo.HeaderContentType, ContentType(name))
	return c.Attachment(path, name)
}
