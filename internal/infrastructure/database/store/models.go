package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventModel is the database model for the append-only event log
type EventModel struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	EventType     string    `gorm:"type:varchar(50);index;not null"`
	AggregateType string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_events_stream,priority:1"`
	AggregateID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_events_stream,priority:2"`
	Version       int       `gorm:"not null;uniqueIndex:idx_events_stream,priority:3"`
	OccurredAt    time.Time `gorm:"index;not null"`
	Payload       string    `gorm:"type:text;not null"`
	Metadata      string    `gorm:"type:text;not null"`
	RecordedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for events
func (EventModel) TableName() string {
	return "events"
}

// AccountModel is the database model for the accounts read model
type AccountModel struct {
	AccountID         string          `gorm:"type:varchar(100);primaryKey"`
	Email             string          `gorm:"type:varchar(255);not null"`
	Status            string          `gorm:"type:varchar(20);not null"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime:false"`
	TotalTransactions int             `gorm:"not null"`
	TotalVolume       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LastTransactionAt *time.Time
	LastLoginAt       *time.Time
	FraudFlags        int       `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for accounts
func (AccountModel) TableName() string {
	return "accounts"
}

// TransactionModel is the database model for the transactions read model
type TransactionModel struct {
	TransactionID    string          `gorm:"type:varchar(100);primaryKey"`
	AccountID        string          `gorm:"type:varchar(100);index;not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	MerchantName     string          `gorm:"type:varchar(255)"`
	MerchantCategory string          `gorm:"type:varchar(100)"`
	Status           string          `gorm:"type:varchar(20);index;not null"`
	FailureReason    string          `gorm:"type:varchar(255)"`
	InitiatedAt      time.Time       `gorm:"index;not null"`
	CompletedAt      *time.Time
	FailedAt         *time.Time
	Latitude         *float64
	Longitude        *float64
	DeviceID         string    `gorm:"type:varchar(100)"`
	IPAddress        string    `gorm:"type:varchar(45)"`
	FraudFlags       int       `gorm:"not null"`
	InitiatedEventID int64     `gorm:"index;not null"`
	CompletedEventID *int64    `gorm:"index"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for transactions
func (TransactionModel) TableName() string {
	return "transactions"
}

// DeviceModel is the database model for devices seen per account
type DeviceModel struct {
	AccountID      string    `gorm:"type:varchar(100);primaryKey"`
	DeviceID       string    `gorm:"type:varchar(100);primaryKey"`
	DeviceType     string    `gorm:"type:varchar(50)"`
	Browser        string    `gorm:"type:varchar(100)"`
	OS             string    `gorm:"type:varchar(100)"`
	FirstSeen      time.Time `gorm:"not null"`
	LastSeen       time.Time `gorm:"not null"`
	TimesSeen      int       `gorm:"not null"`
	FraudIncidents int       `gorm:"not null"`
}

// TableName returns the table name for devices
func (DeviceModel) TableName() string {
	return "devices"
}

// LocationEventModel is the database model for observed account positions
type LocationEventModel struct {
	SourceEventID int64     `gorm:"primaryKey;autoIncrement:false"`
	AccountID     string    `gorm:"type:varchar(100);index:idx_location_account_time,priority:1;not null"`
	Kind          string    `gorm:"type:varchar(20);not null"`
	ReferenceID   string    `gorm:"type:varchar(100)"`
	Latitude      float64   `gorm:"not null"`
	Longitude     float64   `gorm:"not null"`
	IPAddress     string    `gorm:"type:varchar(45)"`
	OccurredAt    time.Time `gorm:"index:idx_location_account_time,priority:2;not null"`
}

// TableName returns the table name for location events
func (LocationEventModel) TableName() string {
	return "location_events"
}

// LoginAttemptModel is the database model for login attempts
type LoginAttemptModel struct {
	SourceEventID int64  `gorm:"primaryKey;autoIncrement:false"`
	SessionID     string `gorm:"type:varchar(100);index;not null"`
	AccountID     string `gorm:"type:varchar(100);index;not null"`
	Success       bool   `gorm:"not null"`
	FailureReason string `gorm:"type:varchar(255)"`
	IPAddress     string `gorm:"type:varchar(45)"`
	DeviceID      string `gorm:"type:varchar(100)"`
	UserAgent     string `gorm:"type:text"`
	Latitude      *float64
	Longitude     *float64
	OccurredAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for login attempts
func (LoginAttemptModel) TableName() string {
	return "login_attempts"
}

// ProfileModel is the database model for behavioral profiles. Collections
// are stored as JSON text.
type ProfileModel struct {
	AccountID          string  `gorm:"type:varchar(100);primaryKey"`
	TransactionCount   int     `gorm:"not null"`
	AvgAmount          float64 `gorm:"not null"`
	MedianAmount       float64 `gorm:"not null"`
	StdAmount          float64 `gorm:"not null"`
	HourHistogram      string  `gorm:"type:text;not null"`
	TypicalHours       string  `gorm:"type:text;not null"`
	MerchantCategories string  `gorm:"type:text;not null"`
	HomeLatitude       *float64
	HomeLongitude      *float64
	TypicalRadiusKm    float64   `gorm:"not null"`
	MaxVelocityKmh     float64   `gorm:"not null"`
	KnownDevices       string    `gorm:"type:text;not null"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName returns the table name for profiles
func (ProfileModel) TableName() string {
	return "user_profiles"
}

// ProjectionStateModel is the database model for consumer checkpoints
type ProjectionStateModel struct {
	Name       string    `gorm:"type:varchar(100);primaryKey"`
	Checkpoint int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for checkpoints
func (ProjectionStateModel) TableName() string {
	return "projection_state"
}

// FraudScoreModel is the database model for fraud scores
type FraudScoreModel struct {
	TransactionID    string    `gorm:"type:varchar(100);primaryKey"`
	AccountID        string    `gorm:"type:varchar(100);index;not null"`
	FraudProbability float64   `gorm:"not null"`
	RuleProbability  float64   `gorm:"not null"`
	AnomalyScore     float64   `gorm:"not null"`
	IsFraud          bool      `gorm:"not null"`
	Flagged          bool      `gorm:"index;not null"`
	ModelVersion     string    `gorm:"type:varchar(50);not null"`
	Features         string    `gorm:"type:text;not null"`
	Reasons          string    `gorm:"type:text;not null"`
	ScoredAt         time.Time `gorm:"index;not null"`
}

// TableName returns the table name for fraud scores
func (FraudScoreModel) TableName() string {
	return "fraud_scores"
}

// MLModelModel is the database model for fitted anomaly models
type MLModelModel struct {
	Version         string    `gorm:"type:varchar(50);primaryKey"`
	Algorithm       string    `gorm:"type:varchar(50);not null"`
	TrainedAt       time.Time `gorm:"not null"`
	TrainingSamples int       `gorm:"not null"`
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	FeatureNames    string `gorm:"type:text;not null"`
	Hyperparameters string `gorm:"type:text;not null"`
	Artifact        []byte `gorm:"not null"`
	IsActive        bool   `gorm:"index;not null"`
}

// TableName returns the table name for ML models
func (MLModelModel) TableName() string {
	return "ml_models"
}
