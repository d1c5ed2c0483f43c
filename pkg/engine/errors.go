package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable indicates the engine could not be reached or
	// answered with a server error.
	ErrEngineUnavailable = errors.New("workflow engine unavailable")
	// ErrEngineRejected indicates the engine refused a request that reached
	// it (a 4xx answer).
	ErrEngineRejected = errors.New("workflow engine rejected request")
	// ErrExecutionNotFound indicates the engine has no execution with the
	// requested identifier.
	ErrExecutionNotFound = errors.New("engine execution not found")
	// ErrWorkflowNotDeployed indicates an operation that needs an engine-side
	// workflow was attempted before one was created.
	ErrWorkflowNotDeployed = errors.New("workflow not deployed to engine")
)

// RequestError carries the engine operation and HTTP status that produced a
// rejection, wrapping the matching sentinel.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("engine %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func IsEngineUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable)
}

func IsEngineRejected(err error) bool {
	return errors.Is(err, ErrEngineRejected)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

func IsWorkflowNotDeployed(err error) bool {
	return errors.Is(err, ErrWorkflowNotDeployed)
}
