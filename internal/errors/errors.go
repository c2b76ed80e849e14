package errors

import "fmt"

// ErrorCode represents a daybook error code.
type ErrorCode string

const (
	ErrCategoryFormat       ErrorCode = "CATEGORY_FORMAT"       // per-record flag, never aborts a run
	ErrModificationLink     ErrorCode = "MODIFICATION_LINK"     // unmatched or anomalous modifier
	ErrOverlapUnresolved    ErrorCode = "OVERLAP_UNRESOLVED"    // conflict group needs manual resolution
	ErrCollaboratorFetch    ErrorCode = "COLLABORATOR_FETCH"    // calendar source failure, retryable
	ErrCollaboratorWrite    ErrorCode = "COLLABORATOR_WRITE"    // archive store failure, retryable
	ErrDuplicateAppointment ErrorCode = "DUPLICATE_APPOINTMENT" // informational, deduped silently
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrNotFound             ErrorCode = "NOT_FOUND"
	ErrInternal             ErrorCode = "INTERNAL"
)

// Error represents a structured error with code, retry classification, and details.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Details   map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCategoryFormat creates an error for an unparsable category string.
func NewCategoryFormat(raw, reason string) *Error {
	return &Error{
		Code:    ErrCategoryFormat,
		Message: fmt.Sprintf("invalid category %q: %s", raw, reason),
		Details: map[string]any{"category_raw": raw},
	}
}

// NewModificationLink creates an error for a modifier that could not be applied.
func NewModificationLink(modifierID, reason string) *Error {
	return &Error{
		Code:    ErrModificationLink,
		Message: fmt.Sprintf("modifier %s: %s", modifierID, reason),
		Details: map[string]any{"modifier_id": modifierID},
	}
}

// NewOverlapUnresolved creates an error for a conflict group left unresolved.
func NewOverlapUnresolved(groupID string, members []string) *Error {
	return &Error{
		Code:    ErrOverlapUnresolved,
		Message: fmt.Sprintf("overlap group %s unresolved (%d members)", groupID, len(members)),
		Details: map[string]any{"group_id": groupID, "members": members},
	}
}

// NewCollaboratorFetch creates a retryable error for a failed calendar fetch.
func NewCollaboratorFetch(err error) *Error {
	return &Error{
		Code:      ErrCollaboratorFetch,
		Message:   fmt.Sprintf("calendar source fetch failed: %v", err),
		Retryable: true,
	}
}

// NewCollaboratorWrite creates a retryable error for a failed archive commit.
func NewCollaboratorWrite(err error) *Error {
	return &Error{
		Code:      ErrCollaboratorWrite,
		Message:   fmt.Sprintf("archive store write failed: %v", err),
		Retryable: true,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a missing archive day or run.
func NewNotFound(identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a daybook Error with the given code.
func Is(err error, code ErrorCode) bool {
	if dErr, ok := err.(*Error); ok {
		return dErr.Code == code
	}
	return false
}

// IsRetryable reports whether the error is a transient collaborator failure.
func IsRetryable(err error) bool {
	if dErr, ok := err.(*Error); ok {
		return dErr.Retryable
	}
	return false
}
