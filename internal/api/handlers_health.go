// handlers_health.go - liveness check
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	// Engine names the optimizer adapter serving runs.
	Engine string `json:"engine,omitempty"`
}

type healthHandler struct {
	status HealthStatus
}

// NewHealthHandler reports the build version and the optimizer engine name.
func NewHealthHandler(version, engine string) HealthHandler {
	return &healthHandler{status: HealthStatus{Status: "ok", Version: version, Engine: engine}}
}

func (h *healthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, h.status)
}
