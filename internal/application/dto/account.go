package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateAccountRequest represents a request to open an account. AccountID
// is generated when empty.
type CreateAccountRequest struct {
	AccountID     string     `json:"account_id,omitempty" validate:"omitempty,max=100"`
	Email         string     `json:"email" validate:"required,email"`
	InitialStatus string     `json:"initial_status,omitempty" validate:"omitempty,oneof=active suspended closed"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	ClientContext
}

// RecordLoginRequest represents one login attempt
type RecordLoginRequest struct {
	AccountID     string     `json:"-" validate:"required,max=100"`
	SessionID     string     `json:"session_id,omitempty" validate:"omitempty,max=100"`
	Success       bool       `json:"success"`
	FailureReason string     `json:"failure_reason,omitempty" validate:"max=255"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	ClientContext
}

// ChangeDeviceRequest registers the device an account is now using
type ChangeDeviceRequest struct {
	AccountID  string     `json:"-" validate:"required,max=100"`
	DeviceID   string     `json:"new_device_id" validate:"required,max=100"`
	DeviceType string     `json:"device_type,omitempty" validate:"max=50"`
	Browser    string     `json:"browser,omitempty" validate:"max=100"`
	OS         string     `json:"os,omitempty" validate:"max=100"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	ClientContext
}

// ChangeLocationRequest records a position reported for an account
type ChangeLocationRequest struct {
	AccountID string     `json:"-" validate:"required,max=100"`
	Latitude  float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Context   string     `json:"context" validate:"required,oneof=transaction login manual"`
	ContextID string     `json:"context_id,omitempty" validate:"max=100"`
	IPAddress string     `json:"ip_address,omitempty" validate:"omitempty,ip"`
	DeviceID  string     `json:"device_id,omitempty" validate:"omitempty,max=100"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// EventResponse identifies an appended event
type EventResponse struct {
	EventID     int64     `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	Version     int       `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
}

// AccountResponse is the projected state of an account
type AccountResponse struct {
	AccountID         string           `json:"account_id"`
	Email             string           `json:"email"`
	Status            string           `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	TotalTransactions int              `json:"total_transactions"`
	TotalVolume       decimal.Decimal  `json:"total_volume"`
	LastTransactionAt *time.Time       `json:"last_transaction_at,omitempty"`
	LastLoginAt       *time.Time       `json:"last_login_at,omitempty"`
	FraudFlags        int              `json:"fraud_flags"`
	Profile           *ProfileResponse `json:"profile,omitempty"`

	RecentTransactions []*TransactionResponse `json:"recent_transactions"`
}

// ProfileResponse is the behavioral baseline of an account
type ProfileResponse struct {
	TransactionCount   int      `json:"transaction_count"`
	AvgAmount          float64  `json:"avg_amount"`
	MedianAmount       float64  `json:"median_amount"`
	StdAmount          float64  `json:"std_amount"`
	TypicalHours       []int    `json:"typical_hours"`
	MerchantCategories []string `json:"merchant_categories"`
	HomeLatitude       *float64 `json:"home_latitude,omitempty"`
	HomeLongitude      *float64 `json:"home_longitude,omitempty"`
	TypicalRadiusKm    float64  `json:"typical_radius_km"`
	MaxVelocityKmh     float64  `json:"max_velocity_kmh"`
	KnownDevices       []string `json:"known_devices"`
}
