package projection

import (
	"context"
	"time"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

// Alert is the outbound notification for a raised fraud flag.
type Alert struct {
	EventID       int64     `json:"event_id"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Probability   float64   `json:"fraud_probability"`
	Reasons       []string  `json:"flagged_reasons"`
	ModelVersion  string    `json:"model_version"`
	AutoBlocked   bool      `json:"auto_blocked"`
	DeviceID      string    `json:"device_id,omitempty"`
	RaisedAt      time.Time `json:"raised_at"`
}

// AlertPublisher delivers alerts to downstream consumers.
type AlertPublisher interface {
	Publish(ctx context.Context, alert Alert) error
}

// FraudAlertProjection forwards every FraudFlagRaised event to a publisher.
// It is an Emitter: publishing never holds a database transaction. A
// publish failure halts the projection so the alert is retried on the next
// pass. Rebuilding it re-sends every alert.
type FraudAlertProjection struct {
	publisher AlertPublisher
}

func NewFraudAlertProjection(publisher AlertPublisher) *FraudAlertProjection {
	return &FraudAlertProjection{publisher: publisher}
}

func (*FraudAlertProjection) Name() string { return FraudAlertProjectionName }

func (*FraudAlertProjection) Handles() []event.Type {
	return []event.Type{event.TypeFraudFlagRaised}
}

func (*FraudAlertProjection) Tables() []readmodel.Table { return nil }

func (p *FraudAlertProjection) Apply(ctx context.Context, _ readmodel.Store, evt event.Event) error {
	return p.Emit(ctx, evt)
}

func (p *FraudAlertProjection) Emit(ctx context.Context, evt event.Event) error {
	payload, ok := evt.Payload.(event.FraudFlagRaised)
	if !ok {
		return nil
	}
	return p.publisher.Publish(ctx, Alert{
		EventID:       evt.ID,
		TransactionID: payload.TransactionID,
		AccountID:     payload.AccountID,
		Probability:   payload.Probability,
		Reasons:       payload.Reasons,
		ModelVersion:  payload.ModelVersion,
		AutoBlocked:   payload.AutoBlocked,
		DeviceID:      evt.Metadata.DeviceID,
		RaisedAt:      evt.Timestamp,
	})
}
