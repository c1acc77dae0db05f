// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

// Error codes returned in the body of failed requests.
const (
	CodeInvalidArtifact  = "INVALID_ARTIFACT"
	CodeConfig           = "CONFIG_ERROR"
	CodeMissingAuxiliary = "MISSING_AUXILIARY_CONFIG"
	CodeInputFormat      = "INPUT_FORMAT"
	CodeOptimizerFailure = "OPTIMIZER_FAILURE"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromError maps a pipeline error onto the API taxonomy. Errors that wrap no
// known sentinel become internal errors.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	mapped := &APIError{Message: err.Error()}
	switch {
	case errors.Is(err, models.ErrInvalidArtifact):
		mapped.Status, mapped.Code = http.StatusBadRequest, CodeInvalidArtifact
	case errors.Is(err, models.ErrConfig):
		mapped.Status, mapped.Code = http.StatusBadRequest, CodeConfig
	case errors.Is(err, models.ErrInputFormat):
		mapped.Status, mapped.Code = http.StatusBadRequest, CodeInputFormat
	case errors.Is(err, models.ErrMissingAuxiliaryConfig):
		mapped.Status, mapped.Code = http.StatusInternalServerError, CodeMissingAuxiliary
	case errors.Is(err, models.ErrOptimizerFailure):
		mapped.Status, mapped.Code = http.StatusInternalServerError, CodeOptimizerFailure
	case errors.Is(err, models.ErrArtifactNotFound), errors.Is(err, models.ErrRunNotFound):
		mapped.Status, mapped.Code = http.StatusNotFound, CodeNotFound
	default:
		mapped.Status, mapped.Code = http.StatusInternalServerError, CodeInternal
		mapped.Message = "An unexpected error occurred"
		if isDevelopment() {
			mapped.Details = err.Error()
		}
	}
	return mapped
}

// ErrorHandler returns an echo HTTPErrorHandler that renders APIError bodies
// and logs server-side failures.
// Usage: e.HTTPErrorHandler = api.ErrorHandler(log)
func ErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &httpErr):
			apiErr = &APIError{
				Status:  httpErr.Code,
				Code:    "HTTP_ERROR",
				Message: fmt.Sprintf("%v", httpErr.Message),
			}
		default:
			apiErr = FromError(err)
		}

		if apiErr.Status >= http.StatusInternalServerError {
			log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

// isDevelopment reports whether internal error details may be exposed.
func isDevelopment() bool {
	return os.Getenv("APP_ENV") == "dev"
}
