package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/pkg/metrics"
)

// EventStore implements event.Store on the events table
type EventStore struct {
	db       *gorm.DB
	pageSize int
	logger   *zap.Logger
	now      func() time.Time
}

// NewEventStore creates a new event store
func NewEventStore(client *Client) *EventStore {
	return &EventStore{
		db:       client.DB(),
		pageSize: client.pageSize,
		logger:   client.logger.Named("events"),
		now:      time.Now,
	}
}

// appendLockKey names the postgres advisory lock serializing appends
const appendLockKey int64 = 0x6672617564

// Append validates evt and inserts it as the next version of its stream.
// The version check and the insert share one database transaction; the
// unique (aggregate_type, aggregate_id, version) index rejects a concurrent
// writer that passed the check at the same time. On postgres, appends also
// hold a transaction-scoped advisory lock so ids commit in id order.
func (s *EventStore) Append(ctx context.Context, evt event.Event, expectedVersion int) (event.Event, error) {
	if err := event.Validate(evt); err != nil {
		return event.Event{}, err
	}
	if expectedVersion < 0 {
		return event.Event{}, &event.ValidationError{
			EventType: evt.Type, AggregateID: evt.AggregateID,
			Field: "expected_version", Reason: "must not be negative",
		}
	}

	payload, err := event.EncodePayload(evt.Payload)
	if err != nil {
		return event.Event{}, err
	}
	md, err := json.Marshal(evt.Metadata)
	if err != nil {
		return event.Event{}, fmt.Errorf("encode metadata: %w", err)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Microsecond)

	model := EventModel{
		EventType:     string(evt.Type),
		AggregateType: string(evt.AggregateType),
		AggregateID:   evt.AggregateID,
		OccurredAt:    evt.Timestamp,
		Payload:       string(payload),
		Metadata:      string(md),
		RecordedAt:    s.now().UTC().Truncate(time.Microsecond),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", appendLockKey).Error; err != nil {
				return fmt.Errorf("lock event log: %w", err)
			}
		}

		var head int
		if err := tx.Model(&EventModel{}).
			Select("COALESCE(MAX(version), 0)").
			Where("aggregate_type = ? AND aggregate_id = ?", model.AggregateType, model.AggregateID).
			Row().Scan(&head); err != nil {
			return fmt.Errorf("read stream head: %w", err)
		}
		if head != expectedVersion {
			return &event.ConcurrencyConflictError{
				AggregateType: evt.AggregateType,
				AggregateID:   evt.AggregateID,
				Expected:      expectedVersion,
				Actual:        head,
			}
		}

		model.Version = head + 1
		if err := tx.Create(&model).Error; err != nil {
			if isDuplicate(err) {
				return &event.ConcurrencyConflictError{
					AggregateType: evt.AggregateType,
					AggregateID:   evt.AggregateID,
					Expected:      expectedVersion,
					Actual:        head + 1,
				}
			}
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, event.ErrConcurrencyConflict) {
			metrics.ConcurrencyConflicts.WithLabelValues(string(evt.AggregateType)).Inc()
		}
		return event.Event{}, err
	}

	evt.ID = model.ID
	evt.Version = model.Version
	evt.RecordedAt = model.RecordedAt.UTC()
	metrics.EventsAppended.WithLabelValues(string(evt.Type)).Inc()
	s.logger.Debug("event appended",
		zap.Int64("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.String("aggregate_id", evt.AggregateID),
		zap.Int("version", evt.Version),
	)
	return evt, nil
}

// LoadStream yields one aggregate's events in version order
func (s *EventStore) LoadStream(ctx context.Context, aggregateType event.AggregateType, aggregateID string) iter.Seq2[event.Event, error] {
	return s.paged(ctx, 0, func(q *gorm.DB) *gorm.DB {
		return q.Where("aggregate_type = ? AND aggregate_id = ?", string(aggregateType), aggregateID)
	})
}

// LoadSince yields events after afterID up to the head observed when
// iteration starts
func (s *EventStore) LoadSince(ctx context.Context, afterID int64, types ...event.Type) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		head, err := s.LatestID(ctx)
		if err != nil {
			yield(event.Event{}, err)
			return
		}
		for evt, err := range s.LoadRange(ctx, afterID, head, types...) {
			if !yield(evt, err) || err != nil {
				return
			}
		}
	}
}

// LoadRange yields events with afterID < id <= untilID in id order
func (s *EventStore) LoadRange(ctx context.Context, afterID, untilID int64, types ...event.Type) iter.Seq2[event.Event, error] {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return s.paged(ctx, afterID, func(q *gorm.DB) *gorm.DB {
		q = q.Where("id <= ?", untilID)
		if len(names) > 0 {
			q = q.Where("event_type IN ?", names)
		}
		return q
	})
}

// StreamVersion returns the head version of a stream
func (s *EventStore) StreamVersion(ctx context.Context, aggregateType event.AggregateType, aggregateID string) (int, error) {
	var head int
	err := s.db.WithContext(ctx).Model(&EventModel{}).
		Select("COALESCE(MAX(version), 0)").
		Where("aggregate_type = ? AND aggregate_id = ?", string(aggregateType), aggregateID).
		Row().Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("read stream version: %w", err)
	}
	return head, nil
}

// LatestID returns the highest event id
func (s *EventStore) LatestID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.WithContext(ctx).Model(&EventModel{}).
		Select("COALESCE(MAX(id), 0)").
		Row().Scan(&id); err != nil {
		return 0, fmt.Errorf("read latest event id: %w", err)
	}
	return id, nil
}

// paged walks matching rows by ascending id, one page per query. Each page
// is fully read before anything is yielded so no cursor stays open while
// the caller works.
func (s *EventStore) paged(ctx context.Context, afterID int64, filter func(*gorm.DB) *gorm.DB) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		cursor := afterID
		for {
			var rows []EventModel
			q := filter(s.db.WithContext(ctx).Where("id > ?", cursor))
			if err := q.Order("id ASC").Limit(s.pageSize).Find(&rows).Error; err != nil {
				yield(event.Event{}, fmt.Errorf("load events after %d: %w", cursor, err))
				return
			}
			for _, row := range rows {
				evt, err := modelToEvent(&row)
				if err != nil {
					yield(event.Event{}, err)
					return
				}
				if !yield(evt, nil) {
					return
				}
				cursor = row.ID
			}
			if len(rows) < s.pageSize {
				return
			}
		}
	}
}

func modelToEvent(m *EventModel) (event.Event, error) {
	t := event.Type(m.EventType)
	payload, err := event.DecodePayload(t, []byte(m.Payload))
	if err != nil {
		return event.Event{}, fmt.Errorf("event %d: %w", m.ID, err)
	}
	var md event.Metadata
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &md); err != nil {
			return event.Event{}, fmt.Errorf("event %d: decode metadata: %w", m.ID, err)
		}
	}
	return event.Event{
		ID:            m.ID,
		Type:          t,
		AggregateID:   m.AggregateID,
		AggregateType: event.AggregateType(m.AggregateType),
		Version:       m.Version,
		Timestamp:     m.OccurredAt.UTC(),
		Payload:       payload,
		Metadata:      md,
		RecordedAt:    m.RecordedAt.UTC(),
	}, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
