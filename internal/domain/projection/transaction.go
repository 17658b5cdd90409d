package projection

import (
	"context"
	"errors"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
)

// TransactionProjection maintains the transactions table.
type TransactionProjection struct{}

func NewTransactionProjection() *TransactionProjection { return &TransactionProjection{} }

func (*TransactionProjection) Name() string { return TransactionProjectionName }

func (*TransactionProjection) Handles() []event.Type {
	return []event.Type{
		event.TypeTransactionInitiated,
		event.TypeTransactionCompleted,
		event.TypeTransactionFailed,
		event.TypeFraudFlagRaised,
	}
}

func (*TransactionProjection) Tables() []readmodel.Table {
	return []readmodel.Table{readmodel.TableTransactions}
}

func (p *TransactionProjection) Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error {
	switch payload := evt.Payload.(type) {
	case event.TransactionInitiated:
		_, err := rm.GetTransaction(ctx, evt.AggregateID)
		if err == nil {
			return violation("transaction %s initiated twice", evt.AggregateID)
		}
		if !errors.Is(err, readmodel.ErrNotFound) {
			return err
		}
		txn := &readmodel.Transaction{
			TransactionID:    evt.AggregateID,
			AccountID:        payload.AccountID,
			Amount:           payload.Amount,
			Currency:         payload.Currency,
			MerchantName:     payload.MerchantName,
			MerchantCategory: payload.MerchantCategory,
			Status:           readmodel.StatusInitiated,
			InitiatedAt:      evt.Timestamp,
			DeviceID:         evt.Metadata.DeviceID,
			IPAddress:        evt.Metadata.IPAddress,
			InitiatedEventID: evt.ID,
			UpdatedAt:        evt.Timestamp,
		}
		if evt.Metadata.HasLocation() {
			lat, lon := *evt.Metadata.Latitude, *evt.Metadata.Longitude
			txn.Latitude, txn.Longitude = &lat, &lon
		}
		return rm.SaveTransaction(ctx, txn)

	case event.TransactionCompleted:
		txn, err := requirePending(ctx, rm, evt)
		if err != nil {
			return err
		}
		completedAt := payload.CompletedAt.UTC()
		eventID := evt.ID
		txn.Status = readmodel.StatusCompleted
		txn.CompletedAt = &completedAt
		txn.CompletedEventID = &eventID
		txn.UpdatedAt = evt.Timestamp
		return rm.SaveTransaction(ctx, txn)

	case event.TransactionFailed:
		txn, err := requirePending(ctx, rm, evt)
		if err != nil {
			return err
		}
		failedAt := payload.FailedAt.UTC()
		txn.Status = readmodel.StatusFailed
		txn.FailureReason = payload.Reason
		txn.FailedAt = &failedAt
		txn.UpdatedAt = evt.Timestamp
		return rm.SaveTransaction(ctx, txn)

	case event.FraudFlagRaised:
		txn, err := requireTransaction(ctx, rm, evt.AggregateID)
		if err != nil {
			return err
		}
		if !txn.IsCompleted() {
			return violation("transaction %s flagged before completion", evt.AggregateID)
		}
		txn.Status = readmodel.StatusFlagged
		txn.FraudFlags++
		txn.UpdatedAt = evt.Timestamp
		return rm.SaveTransaction(ctx, txn)
	}
	return nil
}

func requireTransaction(ctx context.Context, rm readmodel.Store, transactionID string) (*readmodel.Transaction, error) {
	txn, err := rm.GetTransaction(ctx, transactionID)
	if errors.Is(err, readmodel.ErrNotFound) {
		return nil, violation("transaction %s does not exist", transactionID)
	}
	return txn, err
}

func requirePending(ctx context.Context, rm readmodel.Store, evt event.Event) (*readmodel.Transaction, error) {
	txn, err := requireTransaction(ctx, rm, evt.AggregateID)
	if err != nil {
		return nil, err
	}
	if txn.Status != readmodel.StatusInitiated {
		return nil, violation("transaction %s is %s, cannot apply %s", evt.AggregateID, txn.Status, evt.Type)
	}
	return txn, nil
}
