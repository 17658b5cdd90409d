package event

import (
	"errors"
	"fmt"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrValidation          = errors.New("event validation failed")
	ErrUnknownEventType    = errors.New("unknown event type")
)

// ConcurrencyConflictError reports an append whose expected version did not
// match the head of the aggregate stream.
type ConcurrencyConflictError struct {
	AggregateType AggregateType
	AggregateID   string
	Expected      int
	Actual        int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on %s/%s: expected version %d, stream is at %d",
		e.AggregateType, e.AggregateID, e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// ValidationError reports a malformed event rejected before persistence.
type ValidationError struct {
	EventType   Type
	AggregateID string
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s event for aggregate %q: %s", e.EventType, e.AggregateID, e.Reason)
	}
	return fmt.Sprintf("invalid %s event for aggregate %q: field %s %s", e.EventType, e.AggregateID, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
