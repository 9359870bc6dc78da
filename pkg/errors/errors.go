package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJobNotFound      = errors.New("scan job not found")
	ErrTargetNotFound   = errors.New("target not found")
	ErrExecutorNotFound = errors.New("no executor registered for job type")
	ErrToolNotInstalled = errors.New("scanning tool not installed")
)

// ValidationError reports malformed input to a creation/update call. It is
// surfaced before any state mutation happens.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s (value: %v): %s", e.Field, e.Value, e.Message)
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConflictError rejects an operation that would violate the
// single-in-flight-conflicting-scan invariant. ConflictingIDs lists the
// existing pending/running jobs that block the new one.
type ConflictError struct {
	JobType        string
	TargetID       string
	ConflictingIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a %s job is already in flight for target %s (conflicting jobs: %s)",
		e.JobType, e.TargetID, strings.Join(e.ConflictingIDs, ", "))
}

func NewConflictError(jobType, targetID string, conflictingIDs []string) *ConflictError {
	return &ConflictError{JobType: jobType, TargetID: targetID, ConflictingIDs: conflictingIDs}
}

// NotFoundError reports a referenced record missing or outside the caller's
// organization scope.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(resource, id string, err error) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, Err: err}
}

// ExecutionError wraps a scan executor failure (subprocess exit, network
// failure, parse failure, missing tool with no fallback). It is always caught
// at the job-dispatch boundary and recorded via MarkAsFailed.
type ExecutionError struct {
	JobType string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s execution failed: %v", e.JobType, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func NewExecutionError(jobType string, err error) *ExecutionError {
	return &ExecutionError{JobType: jobType, Err: err}
}

// DependencyError aborts a workflow when a phase's declared dependency has
// not been recorded in the accumulated results.
type DependencyError struct {
	Phase      string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("phase %s cannot start: dependency %s has not completed", e.Phase, e.Dependency)
}

func NewDependencyError(phase, dependency string) *DependencyError {
	return &DependencyError{Phase: phase, Dependency: dependency}
}

// InvalidStateTransitionError reports an operation attempted on a job whose
// current status does not permit it (start on a non-pending job, any
// transition out of a terminal state).
type InvalidStateTransitionError struct {
	JobID string
	From  string
	To    string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("scan job %s: invalid transition %s -> %s", e.JobID, e.From, e.To)
}

func NewInvalidStateTransitionError(jobID, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{JobID: jobID, From: from, To: to}
}

// IsConflict reports whether err is a ConflictError anywhere in its chain.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsValidation reports whether err is a ValidationError anywhere in its chain.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
