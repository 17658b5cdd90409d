package event

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestValidate_AcceptsWellFormedEvents(t *testing.T) {
	events := []Event{
		New("acct_1", AccountCreated{Email: "a@example.com", InitialStatus: "active"}, Metadata{}, at),
		New("txn_1", TransactionInitiated{
			AccountID: "acct_1", Amount: decimal.NewFromInt(50), Currency: "USD",
			MerchantName: "Corner Shop", MerchantCategory: "grocery",
		}, Metadata{IPAddress: "10.0.0.1", DeviceID: "dev_1", Latitude: Float(40.7), Longitude: Float(-74)}, at),
		New("txn_1", TransactionCompleted{AccountID: "acct_1", Amount: decimal.NewFromInt(50), CompletedAt: at}, Metadata{}, at),
		New("txn_2", TransactionFailed{AccountID: "acct_1", Reason: "amount_limit_exceeded", FailedAt: at}, Metadata{}, at),
		New("sess_1", LoginAttempted{AccountID: "acct_1", Success: true}, Metadata{}, at),
		New("acct_1", DeviceChanged{AccountID: "acct_1", NewDeviceID: "dev_2"}, Metadata{}, at),
		New("acct_1", LocationChanged{AccountID: "acct_1", Latitude: 1, Longitude: 2, Context: "manual"}, Metadata{}, at),
		New("txn_1", FraudFlagRaised{TransactionID: "txn_1", AccountID: "acct_1", Probability: 0.7, Reasons: []string{"unusual_amount"}, ModelVersion: "rules-only"}, Metadata{}, at),
	}

	for _, evt := range events {
		t.Run(string(evt.Type), func(t *testing.T) {
			require.NoError(t, Validate(evt))
		})
	}
}

func TestValidate_RejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name  string
		evt   Event
		field string
	}{
		{
			name:  "bad email",
			evt:   New("acct_1", AccountCreated{Email: "nope", InitialStatus: "active"}, Metadata{}, at),
			field: "email",
		},
		{
			name:  "non-positive amount",
			evt:   New("txn_1", TransactionInitiated{AccountID: "acct_1", Amount: decimal.Zero, Currency: "USD"}, Metadata{}, at),
			field: "amount",
		},
		{
			name:  "lowercase currency",
			evt:   New("txn_1", TransactionInitiated{AccountID: "acct_1", Amount: decimal.NewFromInt(5), Currency: "usd"}, Metadata{}, at),
			field: "currency",
		},
		{
			name:  "missing completed_at",
			evt:   New("txn_1", TransactionCompleted{AccountID: "acct_1", Amount: decimal.NewFromInt(5)}, Metadata{}, at),
			field: "completed_at",
		},
		{
			name:  "latitude out of range",
			evt:   New("acct_1", LocationChanged{AccountID: "acct_1", Latitude: 91, Context: "manual"}, Metadata{}, at),
			field: "latitude",
		},
		{
			name:  "bad ip in metadata",
			evt:   New("sess_1", LoginAttempted{AccountID: "acct_1"}, Metadata{IPAddress: "not-an-ip"}, at),
			field: "ip_address",
		},
		{
			name:  "half a coordinate",
			evt:   New("sess_1", LoginAttempted{AccountID: "acct_1"}, Metadata{Latitude: Float(1)}, at),
			field: "metadata",
		},
		{
			name:  "empty aggregate id",
			evt:   New("", LoginAttempted{AccountID: "acct_1"}, Metadata{}, at),
			field: "aggregate_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.evt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.evt.AggregateID, verr.AggregateID)
		})
	}
}

func TestValidate_RejectsMismatchedEnvelope(t *testing.T) {
	evt := New("acct_1", AccountCreated{Email: "a@example.com", InitialStatus: "active"}, Metadata{}, at)
	evt.AggregateType = AggregateTransaction
	require.ErrorIs(t, Validate(evt), ErrValidation)

	evt = New("acct_1", AccountCreated{Email: "a@example.com", InitialStatus: "active"}, Metadata{}, at)
	evt.Type = "Bogus"
	require.ErrorIs(t, Validate(evt), ErrValidation)
}

func TestDecodePayload(t *testing.T) {
	data, err := EncodePayload(TransactionInitiated{
		AccountID: "acct_1", Amount: decimal.RequireFromString("12.34"), Currency: "USD", MerchantCategory: "travel",
	})
	require.NoError(t, err)

	p, err := DecodePayload(TypeTransactionInitiated, data)
	require.NoError(t, err)
	initiated, ok := p.(TransactionInitiated)
	require.True(t, ok)
	assert.Equal(t, "12.34", initiated.Amount.String())
	assert.Equal(t, "travel", initiated.MerchantCategory)

	_, err = DecodePayload("Bogus", data)
	require.ErrorIs(t, err, ErrUnknownEventType)
}
