package projection

import (
	"context"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

// LocationProjection maintains location_events and login_attempts.
type LocationProjection struct{}

func NewLocationProjection() *LocationProjection { return &LocationProjection{} }

func (*LocationProjection) Name() string { return LocationProjectionName }

func (*LocationProjection) Handles() []event.Type {
	return []event.Type{
		event.TypeTransactionInitiated,
		event.TypeLoginAttempted,
		event.TypeLocationChanged,
	}
}

func (*LocationProjection) Tables() []readmodel.Table {
	return []readmodel.Table{readmodel.TableLocationEvents, readmodel.TableLoginAttempts}
}

func (p *LocationProjection) Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error {
	md := evt.Metadata

	switch payload := evt.Payload.(type) {
	case event.TransactionInitiated:
		if !md.HasLocation() {
			return nil
		}
		return rm.AddLocationEvent(ctx, &readmodel.LocationEvent{
			SourceEventID: evt.ID,
			AccountID:     payload.AccountID,
			Kind:          readmodel.LocationTransaction,
			ReferenceID:   evt.AggregateID,
			Latitude:      *md.Latitude,
			Longitude:     *md.Longitude,
			IPAddress:     md.IPAddress,
			Timestamp:     evt.Timestamp,
		})

	case event.LoginAttempted:
		attempt := &readmodel.LoginAttempt{
			SourceEventID: evt.ID,
			SessionID:     evt.AggregateID,
			AccountID:     payload.AccountID,
			Success:       payload.Success,
			FailureReason: payload.FailureReason,
			IPAddress:     md.IPAddress,
			DeviceID:      md.DeviceID,
			UserAgent:     md.UserAgent,
			Timestamp:     evt.Timestamp,
		}
		if md.HasLocation() {
			lat, lon := *md.Latitude, *md.Longitude
			attempt.Latitude, attempt.Longitude = &lat, &lon
		}
		if err := rm.AddLoginAttempt(ctx, attempt); err != nil {
			return err
		}
		if !md.HasLocation() {
			return nil
		}
		return rm.AddLocationEvent(ctx, &readmodel.LocationEvent{
			SourceEventID: evt.ID,
			AccountID:     payload.AccountID,
			Kind:          readmodel.LocationLogin,
			ReferenceID:   evt.AggregateID,
			Latitude:      *md.Latitude,
			Longitude:     *md.Longitude,
			IPAddress:     md.IPAddress,
			Timestamp:     evt.Timestamp,
		})

	case event.LocationChanged:
		return rm.AddLocationEvent(ctx, &readmodel.LocationEvent{
			SourceEventID: evt.ID,
			AccountID:     payload.AccountID,
			Kind:          readmodel.LocationKind(payload.Context),
			ReferenceID:   payload.ContextID,
			Latitude:      payload.Latitude,
			Longitude:     payload.Longitude,
			IPAddress:     md.IPAddress,
			Timestamp:     evt.Timestamp,
		})
	}
	return nil
}
