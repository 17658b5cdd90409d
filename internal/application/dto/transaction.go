package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClientContext is the request context captured as event metadata
type ClientContext struct {
	IPAddress string   `json:"ip_address,omitempty" validate:"omitempty,ip"`
	DeviceID  string   `json:"device_id,omitempty" validate:"omitempty,max=100"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	UserAgent string   `json:"user_agent,omitempty" validate:"max=500"`
}

// SubmitTransactionRequest represents a request to submit a transaction for
// an account. Timestamp defaults to now.
type SubmitTransactionRequest struct {
	AccountID        string          `json:"-" validate:"required,max=100"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency         string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	MerchantName     string          `json:"merchant_name" validate:"max=255"`
	MerchantCategory string          `json:"merchant_category" validate:"max=100"`
	Timestamp        *time.Time      `json:"timestamp,omitempty"`
	ClientContext
}

// TransactionResponse is the projected state of a transaction, with its
// fraud score once scored
type TransactionResponse struct {
	TransactionID    string          `json:"transaction_id"`
	AccountID        string          `json:"account_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	MerchantName     string          `json:"merchant_name"`
	MerchantCategory string          `json:"merchant_category"`
	Status           string          `json:"status"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	InitiatedAt      time.Time       `json:"initiated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	FailedAt         *time.Time      `json:"failed_at,omitempty"`
	Latitude         *float64        `json:"latitude,omitempty"`
	Longitude        *float64        `json:"longitude,omitempty"`
	DeviceID         string          `json:"device_id,omitempty"`
	FraudFlags       int             `json:"fraud_flags"`

	// Fraud analysis results
	FraudScore *FraudScoreResponse `json:"fraud_analysis,omitempty"`

	// Performance metrics
	ProcessingTimeMs int64 `json:"processing_time_ms,omitempty"`
}

// FlaggedTransactionsResponse lists flagged transactions
type FlaggedTransactionsResponse struct {
	Total        int                    `json:"total"`
	Transactions []*TransactionResponse `json:"transactions"`
}
