package provider

import "fmt"

// Error represents an error from a provider operation. It carries the HTTP
// status code so callers can classify the failure without knowing the
// provider's wire format.
type Error struct {
	Operation  string // e.g. "ListEvents", "UpdateEvent"
	StatusCode int    // HTTP status code (0 if not an HTTP error)
	Message    string
	EventID    string // optional: affected remote event id
	Err        error  // optional: underlying error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true for a 404 Not Found.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsConflict returns true when the provider rejected an update's revision
// precondition (409 Conflict or 412 Precondition Failed).
func (e *Error) IsConflict() bool {
	return e.StatusCode == 409 || e.StatusCode == 412
}

// IsGone returns true when the provider invalidated the sync token and a
// full resync is required (410 Gone).
func (e *Error) IsGone() bool {
	return e.StatusCode == 410
}

// IsRateLimited returns true for a 429 Too Many Requests.
func (e *Error) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true for 5xx server errors.
func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewError creates a new provider Error.
func NewError(operation string, statusCode int, message string) *Error {
	return &Error{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
	}
}

// WithEventID adds the affected event id for context.
func (e *Error) WithEventID(id string) *Error {
	e.EventID = id
	return e
}

// WithError wraps an underlying error.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}
