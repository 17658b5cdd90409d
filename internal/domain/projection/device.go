package projection

import (
	"context"
	"errors"
	"time"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

// DeviceProjection maintains the devices table from explicit device changes
// and from the device reported in transaction and login metadata.
type DeviceProjection struct{}

func NewDeviceProjection() *DeviceProjection { return &DeviceProjection{} }

func (*DeviceProjection) Name() string { return DeviceProjectionName }

func (*DeviceProjection) Handles() []event.Type {
	return []event.Type{
		event.TypeDeviceChanged,
		event.TypeTransactionInitiated,
		event.TypeLoginAttempted,
		event.TypeFraudFlagRaised,
	}
}

func (*DeviceProjection) Tables() []readmodel.Table {
	return []readmodel.Table{readmodel.TableDevices}
}

func (p *DeviceProjection) Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error {
	switch payload := evt.Payload.(type) {
	case event.DeviceChanged:
		device, err := p.observe(ctx, rm, payload.AccountID, payload.NewDeviceID, evt.Timestamp)
		if err != nil {
			return err
		}
		if payload.DeviceType != "" {
			device.DeviceType = payload.DeviceType
		}
		if payload.Browser != "" {
			device.Browser = payload.Browser
		}
		if payload.OS != "" {
			device.OS = payload.OS
		}
		return rm.SaveDevice(ctx, device)

	case event.TransactionInitiated:
		return p.observeMetadata(ctx, rm, payload.AccountID, evt)

	case event.LoginAttempted:
		return p.observeMetadata(ctx, rm, payload.AccountID, evt)

	case event.FraudFlagRaised:
		if evt.Metadata.DeviceID == "" {
			return nil
		}
		device, err := rm.GetDevice(ctx, payload.AccountID, evt.Metadata.DeviceID)
		if errors.Is(err, readmodel.ErrNotFound) {
			return violation("device %s of account %s was never observed", evt.Metadata.DeviceID, payload.AccountID)
		}
		if err != nil {
			return err
		}
		device.FraudIncidents++
		return rm.SaveDevice(ctx, device)
	}
	return nil
}

func (p *DeviceProjection) observeMetadata(ctx context.Context, rm readmodel.Store, accountID string, evt event.Event) error {
	if evt.Metadata.DeviceID == "" {
		return nil
	}
	device, err := p.observe(ctx, rm, accountID, evt.Metadata.DeviceID, evt.Timestamp)
	if err != nil {
		return err
	}
	return rm.SaveDevice(ctx, device)
}

func (p *DeviceProjection) observe(ctx context.Context, rm readmodel.Store, accountID, deviceID string, at time.Time) (*readmodel.Device, error) {
	device, err := rm.GetDevice(ctx, accountID, deviceID)
	switch {
	case errors.Is(err, readmodel.ErrNotFound):
		device = &readmodel.Device{AccountID: accountID, DeviceID: deviceID, FirstSeen: at}
	case err != nil:
		return nil, err
	}
	device.LastSeen = at
	device.TimesSeen++
	return device, nil
}
