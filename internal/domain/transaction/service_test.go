package transaction

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-ledger/internal/domain/readmodel"
)

func TestPolicy_Validate(t *testing.T) {
	p := NewPolicy(decimal.NewFromInt(50000))

	tests := []struct {
		name     string
		amount   decimal.Decimal
		currency string
		want     string
		wantErr  error
	}{
		{name: "defaults currency", amount: decimal.NewFromInt(10), want: "USD"},
		{name: "normalizes currency", amount: decimal.NewFromInt(10), currency: " eur ", want: "EUR"},
		{name: "zero amount", amount: decimal.Zero, currency: "USD", wantErr: ErrInvalidAmount},
		{name: "negative amount", amount: decimal.NewFromInt(-1), currency: "USD", wantErr: ErrInvalidAmount},
		{name: "bad currency", amount: decimal.NewFromInt(10), currency: "EURO", wantErr: ErrMissingCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Validate(tt.amount, tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicy_Decide(t *testing.T) {
	p := NewPolicy(decimal.NewFromInt(1000))
	active := &readmodel.Account{AccountID: "acct_1", Status: "active"}
	suspended := &readmodel.Account{AccountID: "acct_2", Status: "suspended"}

	assert.Empty(t, p.Decide(active, decimal.NewFromInt(1000)))
	assert.Equal(t, FailureAmountLimitExceeded, p.Decide(active, decimal.RequireFromString("1000.01")))
	assert.Equal(t, FailureAccountInactive, p.Decide(suspended, decimal.NewFromInt(5)))
	// inactive wins over the limit
	assert.Equal(t, FailureAccountInactive, p.Decide(suspended, decimal.NewFromInt(5000)))
}

func TestNewIDs(t *testing.T) {
	for prefix, gen := range map[string]func() string{
		"txn_":  NewTransactionID,
		"acct_": NewAccountID,
		"sess_": NewSessionID,
	} {
		id := gen()
		assert.True(t, strings.HasPrefix(id, prefix), id)
		assert.Len(t, id, len(prefix)+16)
		assert.NotEqual(t, id, gen())
	}
}
