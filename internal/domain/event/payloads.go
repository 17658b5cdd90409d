package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the typed body of an event. The set of implementations is
// closed and keyed by Type.
type Payload interface {
	EventType() Type
	AggregateType() AggregateType
}

type AccountCreated struct {
	Email         string `json:"email" validate:"required,email"`
	InitialStatus string `json:"initial_status" validate:"required,oneof=active suspended closed"`
}

func (AccountCreated) EventType() Type               { return TypeAccountCreated }
func (AccountCreated) AggregateType() AggregateType { return AggregateAccount }

type TransactionInitiated struct {
	AccountID        string          `json:"account_id" validate:"required,max=100"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency         string          `json:"currency" validate:"required,len=3,uppercase"`
	MerchantName     string          `json:"merchant_name" validate:"max=255"`
	MerchantCategory string          `json:"merchant_category" validate:"max=100"`
}

func (TransactionInitiated) EventType() Type               { return TypeTransactionInitiated }
func (TransactionInitiated) AggregateType() AggregateType { return AggregateTransaction }

type TransactionCompleted struct {
	AccountID   string          `json:"account_id" validate:"required,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	CompletedAt time.Time       `json:"completed_at" validate:"required"`
}

func (TransactionCompleted) EventType() Type               { return TypeTransactionCompleted }
func (TransactionCompleted) AggregateType() AggregateType { return AggregateTransaction }

type TransactionFailed struct {
	AccountID string    `json:"account_id" validate:"required,max=100"`
	Reason    string    `json:"reason" validate:"required,max=255"`
	FailedAt  time.Time `json:"failed_at" validate:"required"`
}

func (TransactionFailed) EventType() Type               { return TypeTransactionFailed }
func (TransactionFailed) AggregateType() AggregateType { return AggregateTransaction }

type LoginAttempted struct {
	AccountID     string `json:"account_id" validate:"required,max=100"`
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason,omitempty" validate:"max=255"`
}

func (LoginAttempted) EventType() Type               { return TypeLoginAttempted }
func (LoginAttempted) AggregateType() AggregateType { return AggregateSession }

type DeviceChanged struct {
	AccountID   string `json:"account_id" validate:"required,max=100"`
	NewDeviceID string `json:"new_device_id" validate:"required,max=100"`
	DeviceType  string `json:"device_type,omitempty" validate:"max=50"`
	Browser     string `json:"browser,omitempty" validate:"max=100"`
	OS          string `json:"os,omitempty" validate:"max=100"`
}

func (DeviceChanged) EventType() Type               { return TypeDeviceChanged }
func (DeviceChanged) AggregateType() AggregateType { return AggregateAccount }

type LocationChanged struct {
	AccountID string  `json:"account_id" validate:"required,max=100"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Context   string  `json:"context" validate:"required,oneof=transaction login manual"`
	ContextID string  `json:"context_id,omitempty" validate:"max=100"`
}

func (LocationChanged) EventType() Type               { return TypeLocationChanged }
func (LocationChanged) AggregateType() AggregateType { return AggregateAccount }

type FraudFlagRaised struct {
	TransactionID string   `json:"transaction_id" validate:"required,max=100"`
	AccountID     string   `json:"account_id" validate:"required,max=100"`
	Probability   float64  `json:"fraud_probability" validate:"gte=0,lte=1"`
	Reasons       []string `json:"flagged_reasons"`
	ModelVersion  string   `json:"model_version" validate:"required,max=50"`
	AutoBlocked   bool     `json:"auto_blocked"`
}

func (FraudFlagRaised) EventType() Type               { return TypeFraudFlagRaised }
func (FraudFlagRaised) AggregateType() AggregateType { return AggregateTransaction }

var registry = map[Type]func() Payload{
	TypeAccountCreated:       func() Payload { return &AccountCreated{} },
	TypeTransactionInitiated: func() Payload { return &TransactionInitiated{} },
	TypeTransactionCompleted: func() Payload { return &TransactionCompleted{} },
	TypeTransactionFailed:    func() Payload { return &TransactionFailed{} },
	TypeLoginAttempted:       func() Payload { return &LoginAttempted{} },
	TypeDeviceChanged:        func() Payload { return &DeviceChanged{} },
	TypeLocationChanged:      func() Payload { return &LocationChanged{} },
	TypeFraudFlagRaised:      func() Payload { return &FraudFlagRaised{} },
}

// Types returns every known event type.
func Types() []Type {
	return []Type{
		TypeAccountCreated,
		TypeTransactionInitiated,
		TypeTransactionCompleted,
		TypeTransactionFailed,
		TypeLoginAttempted,
		TypeDeviceChanged,
		TypeLocationChanged,
		TypeFraudFlagRaised,
	}
}

// Known reports whether t is part of the closed event taxonomy.
func Known(t Type) bool {
	_, ok := registry[t]
	return ok
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return data, nil
}

// DecodePayload rebuilds the typed payload stored for an event of type t.
// The returned payload is a value, not a pointer.
func DecodePayload(t Type, data []byte) (Payload, error) {
	factory, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, t)
	}
	ptr := factory()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return deref(ptr), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *AccountCreated:
		return *v
	case *TransactionInitiated:
		return *v
	case *TransactionCompleted:
		return *v
	case *TransactionFailed:
		return *v
	case *LoginAttempted:
		return *v
	case *DeviceChanged:
		return *v
	case *LocationChanged:
		return *v
	case *FraudFlagRaised:
		return *v
	default:
		return p
	}
}
