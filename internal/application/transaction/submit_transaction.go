package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/domain/transaction"
)

// Pipeline drives projections and the scoring stage
type Pipeline interface {
	Advance(ctx context.Context) error
	Run(ctx context.Context) (fraud.StageResult, error)
}

// SubmitTransactionUseCase records a transaction as a pair of lifecycle
// events and returns it once scored. This is the main entry point for all
// incoming transactions.
type SubmitTransactionUseCase struct {
	events     event.Store
	readModels readmodel.Store
	scores     fraud.ScoreRepository
	pipeline   Pipeline
	policy     *transaction.Policy
	logger     *zap.Logger
	now        func() time.Time
}

// NewSubmitTransactionUseCase creates a new use case instance
func NewSubmitTransactionUseCase(
	events event.Store,
	readModels readmodel.Store,
	scores fraud.ScoreRepository,
	pipeline Pipeline,
	policy *transaction.Policy,
	logger *zap.Logger,
) *SubmitTransactionUseCase {
	return &SubmitTransactionUseCase{
		events:     events,
		readModels: readModels,
		scores:     scores,
		pipeline:   pipeline,
		policy:     policy,
		logger:     logger.Named("submit"),
		now:        time.Now,
	}
}

// Execute appends TransactionInitiated, drives the projections, appends
// TransactionCompleted or TransactionFailed and runs the scoring stage.
// A transaction that completes is never blocked by scoring; its response
// simply carries no fraud analysis when scoring did not reach it.
func (uc *SubmitTransactionUseCase) Execute(
	ctx context.Context,
	req *dto.SubmitTransactionRequest,
) (*dto.TransactionResponse, error) {
	startTime := time.Now()

	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	currency, err := uc.policy.Validate(req.Amount, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dto.ErrInvalidRequest, err)
	}
	md, err := req.ClientContext.Metadata(req.AccountID)
	if err != nil {
		return nil, err
	}

	account, err := uc.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	transactionID := transaction.NewTransactionID()
	at := uc.now().UTC()
	if req.Timestamp != nil {
		at = req.Timestamp.UTC()
	}

	initiated := event.New(transactionID, event.TransactionInitiated{
		AccountID:        req.AccountID,
		Amount:           req.Amount,
		Currency:         currency,
		MerchantName:     req.MerchantName,
		MerchantCategory: req.MerchantCategory,
	}, md, at)
	if _, err := uc.events.Append(ctx, initiated, 0); err != nil {
		return nil, fmt.Errorf("failed to initiate transaction: %w", err)
	}

	if err := uc.pipeline.Advance(ctx); err != nil {
		uc.logger.Warn("projection pass incomplete after initiation",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}

	outcome := event.New(transactionID, event.TransactionCompleted{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		CompletedAt: at,
	}, event.Metadata{UserID: req.AccountID}, at)
	if reason := uc.policy.Decide(account, req.Amount); reason != "" {
		outcome = event.New(transactionID, event.TransactionFailed{
			AccountID: req.AccountID,
			Reason:    reason,
			FailedAt:  at,
		}, event.Metadata{UserID: req.AccountID}, at)
	}
	if _, err := uc.events.Append(ctx, outcome, 1); err != nil {
		return nil, fmt.Errorf("failed to finish transaction %s: %w", transactionID, err)
	}

	if _, err := uc.pipeline.Run(ctx); err != nil {
		uc.logger.Warn("pipeline pass incomplete after submission",
			zap.String("transaction_id", transactionID), zap.Error(err))
	}

	txn, err := uc.readModels.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}
	response := dto.FromTransaction(txn)
	response.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	score, err := uc.scores.Get(ctx, transactionID)
	switch {
	case err == nil:
		response.FraudScore = dto.FromScore(score)
	case !errors.Is(err, fraud.ErrScoreNotFound):
		return nil, fmt.Errorf("failed to load fraud score of %s: %w", transactionID, err)
	}

	uc.logger.Info("transaction submitted",
		zap.String("transaction_id", transactionID),
		zap.String("account_id", req.AccountID),
		zap.String("status", response.Status),
		zap.Bool("scored", response.FraudScore != nil),
		zap.Int64("processing_time_ms", response.ProcessingTimeMs),
	)
	return response, nil
}

// loadAccount brings the read models up to date and returns the account
func (uc *SubmitTransactionUseCase) loadAccount(ctx context.Context, accountID string) (*readmodel.Account, error) {
	if err := uc.pipeline.Advance(ctx); err != nil {
		uc.logger.Warn("projection pass incomplete before submission", zap.Error(err))
	}
	account, err := uc.readModels.GetAccount(ctx, accountID)
	if errors.Is(err, readmodel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", transaction.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	return account, nil
}
