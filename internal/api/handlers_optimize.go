// handlers_optimize.go - Optimizer run handlers
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/ingest"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/pipeline"
	"github.com/vmihailenco/msgpack/v5"
)

// Multipart fields of the optimize endpoints.
const (
	FieldInstance   = "instance_file"
	FieldParameters = "parameters_file"
	FieldDemand     = "demand_file"
	FieldForecast   = "forecast_file"
)

// MIMEMsgpack is the negotiated binary response type.
const MIMEMsgpack = "application/msgpack"

var scalarFields = []string{
	augment.FieldYears,
	augment.FieldDemandCovered,
	augment.FieldDiscountRate,
	augment.FieldLPSPLimit,
}

// OptimizeHandlerImpl implements the OptimizeHandler interface
type OptimizeHandlerImpl struct {
	runner Runner
}

// NewOptimizeHandler creates a new optimize handler
func NewOptimizeHandler(runner Runner) OptimizeHandler {
	return &OptimizeHandlerImpl{runner: runner}
}

// HandleDeterministic runs the single-year model
func (h *OptimizeHandlerImpl) HandleDeterministic(c echo.Context) error {
	return h.handle(c, models.ModeDeterministic)
}

// HandleMultiyear runs the multiyear model
func (h *OptimizeHandlerImpl) HandleMultiyear(c echo.Context) error {
	return h.handle(c, models.ModeMultiyear)
}

func (h *OptimizeHandlerImpl) handle(c echo.Context, mode models.Mode) error {
	req := &pipeline.Request{Mode: mode, Scalars: make(map[string]string, len(scalarFields))}

	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			cl.Close()
		}
	}()

	targets := []struct {
		field string
		dst   *ingest.Artifact
	}{
		{FieldInstance, &req.Instance},
		{FieldParameters, &req.Parameters},
		{FieldDemand, &req.Demand},
		{FieldForecast, &req.Forecast},
	}
	for _, t := range targets {
		a, f, err := formArtifact(c, t.field)
		if err != nil {
			return err
		}
		closers = append(closers, f)
		*t.dst = a
	}

	for _, field := range scalarFields {
		if v := c.FormValue(field); v != "" {
			req.Scalars[field] = v
		}
	}

	resp, err := h.runner.Run(c.Request().Context(), req)
	if err != nil {
		return FromError(err)
	}
	return respond(c, http.StatusOK, resp)
}

// formArtifact opens one uploaded file. A missing part is reported as an
// invalid artifact for that field.
func formArtifact(c echo.Context, field string) (ingest.Artifact, multipart.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return ingest.Artifact{}, nil, FromError(fmt.Errorf("%w: %s: no file uploaded", models.ErrInvalidArtifact, field))
	}
	f, err := fh.Open()
	if err != nil {
		return ingest.Artifact{}, nil, NewBadRequestError("failed to open "+field, err)
	}
	return ingest.Artifact{Field: field, Name: fh.Filename, Body: f}, f, nil
}

// respond encodes v as msgpack when the client asks for it, JSON otherwise.
func respond(c echo.Context, status int, v any) error {
	if wantsMsgpack(c.Request().Header.Get(echo.HeaderAccept)) {
		data, err := msgpack.Marshal(v)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(status, MIMEMsgpack, data)
	}
	return c.JSON(status, v)
}

func wantsMsgpack(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == MIMEMsgpack || mt == "application/x-msgpack" {
			return true
		}
	}
	return false
}
