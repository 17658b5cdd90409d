package event

import (
	"time"
)

// Type identifies the kind of fact an event records.
type Type string

const (
	TypeAccountCreated       Type = "AccountCreated"
	TypeTransactionInitiated Type = "TransactionInitiated"
	TypeTransactionCompleted Type = "TransactionCompleted"
	TypeTransactionFailed    Type = "TransactionFailed"
	TypeLoginAttempted       Type = "LoginAttempted"
	TypeDeviceChanged        Type = "DeviceChanged"
	TypeLocationChanged      Type = "LocationChanged"
	TypeFraudFlagRaised      Type = "FraudFlagRaised"
)

// AggregateType identifies the kind of entity a stream belongs to.
type AggregateType string

const (
	AggregateAccount     AggregateType = "Account"
	AggregateTransaction AggregateType = "Transaction"
	AggregateSession     AggregateType = "Session"
)

// Metadata carries contextual attributes captured alongside a fact.
type Metadata struct {
	UserID    string   `json:"user_id,omitempty"`
	IPAddress string   `json:"ip_address,omitempty" validate:"omitempty,ip"`
	DeviceID  string   `json:"device_id,omitempty" validate:"omitempty,max=100"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	UserAgent string   `json:"user_agent,omitempty"`
}

// HasLocation reports whether both coordinates are present.
func (m Metadata) HasLocation() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Event is an immutable fact. ID, Version and RecordedAt are assigned by the
// store on append; all are zero on an event that has not been persisted.
type Event struct {
	ID            int64
	Type          Type
	AggregateID   string
	AggregateType AggregateType
	Version       int
	Timestamp     time.Time
	Payload       Payload
	Metadata      Metadata
	RecordedAt    time.Time
}

// New builds an unpersisted event whose type and aggregate type follow from
// the payload.
func New(aggregateID string, payload Payload, md Metadata, at time.Time) Event {
	return Event{
		Type:          payload.EventType(),
		AggregateID:   aggregateID,
		AggregateType: payload.AggregateType(),
		Timestamp:     at,
		Payload:       payload,
		Metadata:      md,
	}
}

// Float returns a pointer to v, for building optional coordinates.
func Float(v float64) *float64 {
	return &v
}
