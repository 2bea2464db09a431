package store

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers of the store API.
var (
	// ErrNotFound is returned when a referenced item, conflict, cursor or
	// outbox entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidChoice is returned for a conflict resolution choice outside
	// {keep_local, accept_remote}.
	ErrInvalidChoice = errors.New("invalid resolution choice")
)

// StoreError wraps a low-level database error with operation context.
type StoreError struct {
	Op       string // e.g. "GetItem", "EnqueueOutbox"
	EntityID string // optional: affected item/conflict/calendar id
	Err      error
}

func (e *StoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("store %s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op, entityID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, EntityID: entityID, Err: err}
}
