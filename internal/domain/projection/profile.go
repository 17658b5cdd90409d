package projection

import (
	"context"

	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/profile"
	"fraud-ledger/internal/domain/readmodel"
)

// ProfileProjection recomputes an account's behavioral profile on every
// completed transaction. It reads the transactions table, so it trails the
// TransactionProjection and only considers rows completed by events up to
// the one being applied.
type ProfileProjection struct {
	builder *profile.Builder
}

func NewProfileProjection(builder *profile.Builder) *ProfileProjection {
	return &ProfileProjection{builder: builder}
}

func (*ProfileProjection) Name() string { return ProfileProjectionName }

func (*ProfileProjection) Handles() []event.Type {
	return []event.Type{event.TypeTransactionCompleted}
}

func (*ProfileProjection) Tables() []readmodel.Table {
	return []readmodel.Table{readmodel.TableUserProfiles}
}

func (*ProfileProjection) DependsOn() []string {
	return []string{TransactionProjectionName}
}

func (p *ProfileProjection) Apply(ctx context.Context, rm readmodel.Store, evt event.Event) error {
	payload, ok := evt.Payload.(event.TransactionCompleted)
	if !ok {
		return nil
	}

	txn, err := requireTransaction(ctx, rm, evt.AggregateID)
	if err != nil {
		return err
	}
	if txn.CompletedEventID == nil || *txn.CompletedEventID != evt.ID {
		return violation("transaction %s not projected as completed by event %d", evt.AggregateID, evt.ID)
	}

	history, err := rm.ListCompletedTransactions(ctx, payload.AccountID, evt.ID)
	if err != nil {
		return err
	}

	prof := p.builder.Compute(payload.AccountID, history)
	prof.UpdatedAt = evt.Timestamp
	return rm.SaveProfile(ctx, prof)
}
