package transaction

import (
	"context"
	"errors"
	"fmt"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/domain/transaction"
)

// QueryUseCase serves transaction reads from the projected tables
type QueryUseCase struct {
	readModels readmodel.Store
	scores     fraud.ScoreRepository
}

// NewQueryUseCase creates a new transaction query use case
func NewQueryUseCase(readModels readmodel.Store, scores fraud.ScoreRepository) *QueryUseCase {
	return &QueryUseCase{readModels: readModels, scores: scores}
}

// GetTransaction returns a transaction with its fraud score when scored
func (uc *QueryUseCase) GetTransaction(ctx context.Context, transactionID string) (*dto.TransactionResponse, error) {
	txn, err := uc.readModels.GetTransaction(ctx, transactionID)
	if errors.Is(err, readmodel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", transaction.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return nil, err
	}
	return uc.withScore(ctx, txn)
}

// ListFlagged returns flagged transactions, most recent first
func (uc *QueryUseCase) ListFlagged(ctx context.Context, limit int) (*dto.FlaggedTransactionsResponse, error) {
	txns, err := uc.readModels.ListTransactionsByStatus(ctx, readmodel.StatusFlagged, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged transactions: %w", err)
	}
	out := &dto.FlaggedTransactionsResponse{Transactions: make([]*dto.TransactionResponse, 0, len(txns))}
	for _, txn := range txns {
		resp, err := uc.withScore(ctx, txn)
		if err != nil {
			return nil, err
		}
		out.Transactions = append(out.Transactions, resp)
	}
	out.Total = len(out.Transactions)
	return out, nil
}

func (uc *QueryUseCase) withScore(ctx context.Context, txn *readmodel.Transaction) (*dto.TransactionResponse, error) {
	resp := dto.FromTransaction(txn)
	score, err := uc.scores.Get(ctx, txn.TransactionID)
	switch {
	case err == nil:
		resp.FraudScore = dto.FromScore(score)
	case !errors.Is(err, fraud.ErrScoreNotFound):
		return nil, fmt.Errorf("failed to load fraud score of %s: %w", txn.TransactionID, err)
	}
	return resp, nil
}
