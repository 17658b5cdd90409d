package projection

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

var (
	ErrIntegrity           = errors.New("projection integrity violation")
	ErrUnknownProjection   = errors.New("unknown projection")
	ErrDuplicateProjection = errors.New("projection already registered")
)

// Projection is a named consumer deriving read-model state from events.
// Apply must be a pure function of the store state and the event: it may
// not consult the wall clock or anything outside rm.
type Projection interface {
	Name() string
	// Handles lists the event types Apply is called for. Other events only
	// advance the checkpoint.
	Handles() []event.Type
	// Tables lists the read-model tables owned by this projection. They are
	// truncated on rebuild.
	Tables() []readmodel.Table
	Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error
}

// Dependent is implemented by projections that read rows owned by other
// projections. They never advance past the checkpoints of their
// dependencies.
type Dependent interface {
	DependsOn() []string
}

// Emitter is implemented by projections whose effect lives outside the
// database. The engine calls Emit with no database transaction open and
// records the checkpoint only after it returns, so delivery is at least
// once.
type Emitter interface {
	Emit(ctx context.Context, evt event.Event) error
}

// EventSource is the read side of the event store used for catch-up.
type EventSource interface {
	LoadRange(ctx context.Context, afterID, untilID int64, types ...event.Type) iter.Seq2[event.Event, error]
	LatestID(ctx context.Context) (int64, error)
}

// UnitOfWork persists read-model changes together with checkpoints.
type UnitOfWork interface {
	Checkpoint(ctx context.Context, name string) (int64, error)

	// SaveCheckpoint moves the checkpoint of name forward to eventID. It
	// never moves a checkpoint backwards.
	SaveCheckpoint(ctx context.Context, name string, eventID int64) error

	// Apply runs fn and advances the checkpoint of name to eventID in one
	// database transaction. It reports false without calling fn when the
	// checkpoint is already at or past eventID.
	Apply(ctx context.Context, name string, eventID int64, fn func(context.Context, readmodel.Store) error) (bool, error)

	// Reset truncates tables and sets the checkpoint of name to 0 in one
	// database transaction.
	Reset(ctx context.Context, name string, tables []readmodel.Table) error
}

// IntegrityError reports an event a projection could not apply against the
// current read-model state. The projection halts on it.
type IntegrityError struct {
	Projection    string
	EventID       int64
	EventType     event.Type
	AggregateType event.AggregateType
	AggregateID   string
	Err           error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("projection %s halted at event %d (%s %s/%s): %v",
		e.Projection, e.EventID, e.EventType, e.AggregateType, e.AggregateID, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIntegrity, fmt.Sprintf(format, args...))
}
