package transaction

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fraud-ledger/internal/domain/readmodel"
)

// Failure reasons recorded on TransactionFailed
const (
	FailureAmountLimitExceeded = "amount_limit_exceeded"
	FailureAccountInactive     = "account_inactive"
)

// DefaultCurrency is used when a request names none
const DefaultCurrency = "USD"

// Policy decides whether an initiated transaction completes or fails
type Policy struct {
	maxTransactionAmount decimal.Decimal
}

// NewPolicy creates a policy with the single transaction limit
func NewPolicy(maxTransactionAmount decimal.Decimal) *Policy {
	return &Policy{maxTransactionAmount: maxTransactionAmount}
}

// MaxTransactionAmount returns the single transaction limit
func (p *Policy) MaxTransactionAmount() decimal.Decimal {
	return p.maxTransactionAmount
}

// Validate checks the request-level invariants of a new transaction and
// returns the normalized currency.
func (p *Policy) Validate(amount decimal.Decimal, currency string) (string, error) {
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return "", ErrMissingCurrency
	}
	return currency, nil
}

// Decide returns the failure reason for an initiated transaction, or an
// empty string when it may complete.
func (p *Policy) Decide(account *readmodel.Account, amount decimal.Decimal) string {
	if !account.IsActive() {
		return FailureAccountInactive
	}
	if amount.GreaterThan(p.maxTransactionAmount) {
		return FailureAmountLimitExceeded
	}
	return ""
}

// NewTransactionID returns a fresh transaction aggregate id
func NewTransactionID() string {
	return "txn_" + compactUUID()
}

// NewAccountID returns a fresh account aggregate id
func NewAccountID() string {
	return "acct_" + compactUUID()
}

// NewSessionID returns a fresh login session aggregate id
func NewSessionID() string {
	return "sess_" + compactUUID()
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
