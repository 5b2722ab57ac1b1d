package services

import (
	"errors"
	"fmt"
)

// ErrorKind groups workflow failures by how the caller should react to them.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindConflict          ErrorKind = "conflict"
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
)

// WorkflowError is a recoverable, user-facing failure with a stable reason code.
type WorkflowError struct {
	Kind    ErrorKind
	Reason  string
	Message string
}

func (e *WorkflowError) Error() string {
	return e.Message
}

// Is matches on reason, or on kind alone when target carries no reason.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

// Kind-level sentinels, usable with errors.Is to match any reason of that kind.
var (
	ErrForbidden         = &WorkflowError{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict          = &WorkflowError{Kind: KindConflict, Message: "conflict"}
	ErrInvalidTransition = &WorkflowError{Kind: KindInvalidTransition, Message: "transition not permitted"}
)

var (
	ErrUnauthorized        = &WorkflowError{Kind: KindUnauthorized, Reason: "missing_identity", Message: "authentication required"}
	ErrCapabilityDenied    = &WorkflowError{Kind: KindForbidden, Reason: "capability_denied", Message: "you do not have permission to perform this action"}
	ErrConflictOfInterest  = &WorkflowError{Kind: KindForbidden, Reason: "conflict_of_interest", Message: "cannot decide on your own submission"}
	ErrNotAccepted         = &WorkflowError{Kind: KindInvalidTransition, Reason: "not_accepted", Message: "the review assignment has not been accepted"}
	ErrReviewsOutstanding  = &WorkflowError{Kind: KindInvalidTransition, Reason: "reviews_outstanding", Message: "the round still has active review assignments"}
	ErrDuplicateAssignment = &WorkflowError{Kind: KindConflict, Reason: "duplicate_assignment", Message: "the user already holds an active assignment"}
	ErrRoundConflict       = &WorkflowError{Kind: KindConflict, Reason: "round_conflict", Message: "a review round is already open"}
	ErrSubmissionTerminal  = &WorkflowError{Kind: KindConflict, Reason: "submission_terminal", Message: "the submission is declined or published"}
	ErrConcurrentUpdate    = &WorkflowError{Kind: KindConflict, Reason: "concurrent_update", Message: "the submission was modified by another request, reload and retry"}
	ErrNotFound            = &WorkflowError{Kind: KindNotFound, Reason: "not_found", Message: "record not found"}
	ErrValidation          = &WorkflowError{Kind: KindValidation, Reason: "invalid_request", Message: "invalid request"}
)

// invalidTransition returns an invalid_transition error with a specific message.
func invalidTransition(format string, args ...interface{}) error {
	return &WorkflowError{Kind: KindInvalidTransition, Reason: "invalid_transition", Message: fmt.Sprintf(format, args...)}
}

func notFound(entity string) error {
	return &WorkflowError{Kind: KindNotFound, Reason: "not_found", Message: entity + " not found"}
}

func validation(format string, args ...interface{}) error {
	return &WorkflowError{Kind: KindValidation, Reason: "invalid_request", Message: fmt.Sprintf(format, args...)}
}

// AsWorkflowError extracts the workflow error from err, if any.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}
