package readmodel

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("read model row not found")

// Table names an owned read-model table.
type Table string

const (
	TableAccounts       Table = "accounts"
	TableTransactions   Table = "transactions"
	TableDevices        Table = "devices"
	TableLocationEvents Table = "location_events"
	TableLoginAttempts  Table = "login_attempts"
	TableUserProfiles   Table = "user_profiles"
)

// Store gives access to the read-model tables. Projections receive a Store
// scoped to the transaction that also advances their checkpoint.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error

	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	SaveTransaction(ctx context.Context, txn *Transaction) error

	// ListCompletedTransactions returns the account's transactions whose
	// completing event id is at most maxCompletedEventID, oldest first.
	ListCompletedTransactions(ctx context.Context, accountID string, maxCompletedEventID int64) ([]*Transaction, error)

	// CountTransactionsBetween counts the account's transactions initiated in
	// [from, to] by events with id at most maxInitiatedEventID.
	CountTransactionsBetween(ctx context.Context, accountID string, from, to time.Time, maxInitiatedEventID int64) (int64, error)

	// ListScorableTransactionIDs returns every completed transaction id in
	// completion order.
	ListScorableTransactionIDs(ctx context.Context) ([]string, error)

	ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus, limit int) ([]*Transaction, error)

	GetDevice(ctx context.Context, accountID, deviceID string) (*Device, error)
	SaveDevice(ctx context.Context, device *Device) error

	AddLocationEvent(ctx context.Context, loc *LocationEvent) error

	// LastLocationBefore returns the account's most recent location observed
	// at or before at and reported by an event with id below beforeEventID.
	LastLocationBefore(ctx context.Context, accountID string, at time.Time, beforeEventID int64) (*LocationEvent, error)

	AddLoginAttempt(ctx context.Context, attempt *LoginAttempt) error

	GetProfile(ctx context.Context, accountID string) (*Profile, error)
	SaveProfile(ctx context.Context, profile *Profile) error

	// Truncate deletes every row of the given tables.
	Truncate(ctx context.Context, tables ...Table) error
}
