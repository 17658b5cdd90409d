package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the projected lifecycle state of a transaction
type TransactionStatus string

const (
	StatusInitiated TransactionStatus = "initiated"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusFlagged   TransactionStatus = "flagged"
)

// Account is the projected state of an account aggregate.
type Account struct {
	AccountID         string
	Email             string
	Status            string
	CreatedAt         time.Time
	TotalTransactions int
	TotalVolume       decimal.Decimal
	LastTransactionAt *time.Time
	LastLoginAt       *time.Time
	FraudFlags        int
	UpdatedAt         time.Time
}

// IsActive reports whether the account may complete transactions
func (a *Account) IsActive() bool {
	return a.Status == "active"
}

// Transaction is the projected state of a transaction aggregate.
type Transaction struct {
	TransactionID    string
	AccountID        string
	Amount           decimal.Decimal
	Currency         string
	MerchantName     string
	MerchantCategory string
	Status           TransactionStatus
	FailureReason    string
	InitiatedAt      time.Time
	CompletedAt      *time.Time
	FailedAt         *time.Time
	Latitude         *float64
	Longitude        *float64
	DeviceID         string
	IPAddress        string
	FraudFlags       int
	InitiatedEventID int64
	CompletedEventID *int64
	UpdatedAt        time.Time
}

// HasLocation reports whether the transaction carried coordinates
func (t *Transaction) HasLocation() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// IsCompleted reports whether a completing event has been projected,
// regardless of any later flag.
func (t *Transaction) IsCompleted() bool {
	return t.CompletedEventID != nil
}

// Device is a device observed for an account.
type Device struct {
	AccountID      string
	DeviceID       string
	DeviceType     string
	Browser        string
	OS             string
	FirstSeen      time.Time
	LastSeen       time.Time
	TimesSeen      int
	FraudIncidents int
}

// LocationKind identifies what produced a location event
type LocationKind string

const (
	LocationTransaction LocationKind = "transaction"
	LocationLogin       LocationKind = "login"
	LocationManual      LocationKind = "manual"
)

// LocationEvent is one observed position of an account, keyed by the event
// that reported it.
type LocationEvent struct {
	SourceEventID int64
	AccountID     string
	Kind          LocationKind
	ReferenceID   string
	Latitude      float64
	Longitude     float64
	IPAddress     string
	Timestamp     time.Time
}

// LoginAttempt is one projected LoginAttempted event.
type LoginAttempt struct {
	SourceEventID int64
	SessionID     string
	AccountID     string
	Success       bool
	FailureReason string
	IPAddress     string
	DeviceID      string
	UserAgent     string
	Latitude      *float64
	Longitude     *float64
	Timestamp     time.Time
}

// Profile is the behavioral baseline of an account. Every field is derived
// from the account's completed-transaction history.
type Profile struct {
	AccountID          string
	TransactionCount   int
	AvgAmount          float64
	MedianAmount       float64
	StdAmount          float64
	HourHistogram      map[int]int
	TypicalHours       []int
	MerchantCategories []string
	HomeLatitude       *float64
	HomeLongitude      *float64
	TypicalRadiusKm    float64
	MaxVelocityKmh     float64
	KnownDevices       []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasCategory reports whether the merchant category is part of the baseline
func (p *Profile) HasCategory(category string) bool {
	for _, c := range p.MerchantCategories {
		if c == category {
			return true
		}
	}
	return false
}

// KnowsDevice reports whether the device is part of the baseline
func (p *Profile) KnowsDevice(deviceID string) bool {
	for _, d := range p.KnownDevices {
		if d == deviceID {
			return true
		}
	}
	return false
}
