package projection

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

const (
	AccountProjectionName     = "AccountProjection"
	TransactionProjectionName = "TransactionProjection"
	DeviceProjectionName      = "DeviceProjection"
	LocationProjectionName    = "LocationProjection"
	ProfileProjectionName     = "ProfileProjection"
	FraudAlertProjectionName  = "FraudAlertProjection"
)

// AccountProjection maintains the accounts table.
type AccountProjection struct{}

func NewAccountProjection() *AccountProjection { return &AccountProjection{} }

func (*AccountProjection) Name() string { return AccountProjectionName }

func (*AccountProjection) Handles() []event.Type {
	return []event.Type{
		event.TypeAccountCreated,
		event.TypeTransactionCompleted,
		event.TypeFraudFlagRaised,
		event.TypeLoginAttempted,
	}
}

func (*AccountProjection) Tables() []readmodel.Table {
	return []readmodel.Table{readmodel.TableAccounts}
}

func (p *AccountProjection) Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error {
	switch payload := evt.Payload.(type) {
	case event.AccountCreated:
		_, err := rm.GetAccount(ctx, evt.AggregateID)
		if err == nil {
			return violation("account %s created twice", evt.AggregateID)
		}
		if !errors.Is(err, readmodel.ErrNotFound) {
			return err
		}
		return rm.SaveAccount(ctx, &readmodel.Account{
			AccountID:   evt.AggregateID,
			Email:       payload.Email,
			Status:      payload.InitialStatus,
			CreatedAt:   evt.Timestamp,
			TotalVolume: decimal.Zero,
			UpdatedAt:   evt.Timestamp,
		})

	case event.TransactionCompleted:
		account, err := requireAccount(ctx, rm, payload.AccountID)
		if err != nil {
			return err
		}
		completedAt := payload.CompletedAt.UTC()
		account.TotalTransactions++
		account.TotalVolume = account.TotalVolume.Add(payload.Amount)
		account.LastTransactionAt = &completedAt
		account.UpdatedAt = evt.Timestamp
		return rm.SaveAccount(ctx, account)

	case event.FraudFlagRaised:
		account, err := requireAccount(ctx, rm, payload.AccountID)
		if err != nil {
			return err
		}
		account.FraudFlags++
		account.UpdatedAt = evt.Timestamp
		return rm.SaveAccount(ctx, account)

	case event.LoginAttempted:
		if !payload.Success {
			return nil
		}
		account, err := requireAccount(ctx, rm, payload.AccountID)
		if err != nil {
			return err
		}
		loginAt := evt.Timestamp
		account.LastLoginAt = &loginAt
		account.UpdatedAt = evt.Timestamp
		return rm.SaveAccount(ctx, account)
	}
	return nil
}

func requireAccount(ctx context.Context, rm readmodel.Store, accountID string) (*readmodel.Account, error) {
	account, err := rm.GetAccount(ctx, accountID)
	if errors.Is(err, readmodel.ErrNotFound) {
		return nil, violation("account %s does not exist", accountID)
	}
	return account, err
}
