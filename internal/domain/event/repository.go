package event

import (
	"context"
	"iter"
)

// Store is the append-only event log. There is no update or delete.
type Store interface {
	// Append persists evt if the stream head equals expectedVersion (0 for a
	// new aggregate) and returns it with ID and Version assigned.
	Append(ctx context.Context, evt Event, expectedVersion int) (Event, error)

	// LoadStream yields one aggregate's events in ascending id order.
	LoadStream(ctx context.Context, aggregateType AggregateType, aggregateID string) iter.Seq2[Event, error]

	// LoadSince yields every event with id > afterID, optionally restricted
	// to the given types. The sequence ends at the head observed when
	// iteration starts.
	LoadSince(ctx context.Context, afterID int64, types ...Type) iter.Seq2[Event, error]

	// LoadRange yields events with afterID < id <= untilID.
	LoadRange(ctx context.Context, afterID, untilID int64, types ...Type) iter.Seq2[Event, error]

	// StreamVersion returns the current head version of a stream, 0 if empty.
	StreamVersion(ctx context.Context, aggregateType AggregateType, aggregateID string) (int, error)

	// LatestID returns the highest assigned event id, 0 if the log is empty.
	LatestID(ctx context.Context) (int64, error)
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Event, error]) ([]Event, error) {
	var out []Event
	for evt, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, evt)
	}
	return out, nil
}
