package models

import "errors"

// Error taxonomy shared by the pipeline and the HTTP layer. Callers wrap these
// with context and test with errors.Is.
var (
	ErrInvalidArtifact        = errors.New("invalid artifact")
	ErrConfig                 = errors.New("config error")
	ErrMissingAuxiliaryConfig = errors.New("missing auxiliary config")
	ErrInputFormat            = errors.New("malformed input")
	ErrOptimizerFailure       = errors.New("optimizer failure")
	ErrArtifactNotFound       = errors.New("artifact not found")
	ErrRunNotFound            = errors.New("run not found")
)
