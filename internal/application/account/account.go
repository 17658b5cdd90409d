package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/domain/transaction"
)

// maxAppendAttempts bounds re-reads after losing a race on a stream
const maxAppendAttempts = 3

// Projector brings the read models up to date
type Projector interface {
	Advance(ctx context.Context) error
}

// UseCase records account activity as events and serves account reads
type UseCase struct {
	events     event.Store
	readModels readmodel.Store
	projector  Projector
	logger     *zap.Logger
	now        func() time.Time
}

// NewUseCase creates a new account use case
func NewUseCase(events event.Store, readModels readmodel.Store, projector Projector, logger *zap.Logger) *UseCase {
	return &UseCase{
		events:     events,
		readModels: readModels,
		projector:  projector,
		logger:     logger.Named("account"),
		now:        time.Now,
	}
}

// CreateAccount appends AccountCreated for a new account stream
func (uc *UseCase) CreateAccount(ctx context.Context, req *dto.CreateAccountRequest) (*dto.AccountResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	md, err := req.ClientContext.Metadata("")
	if err != nil {
		return nil, err
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = transaction.NewAccountID()
	}
	md.UserID = accountID
	status := req.InitialStatus
	if status == "" {
		status = "active"
	}

	evt := event.New(accountID, event.AccountCreated{Email: req.Email, InitialStatus: status}, md, uc.timestamp(req.Timestamp))
	if _, err := uc.events.Append(ctx, evt, 0); err != nil {
		if errors.Is(err, event.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("%w: %s", transaction.ErrAccountExists, accountID)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	uc.logger.Info("account created", zap.String("account_id", accountID), zap.String("status", status))

	uc.advance(ctx)
	account, err := uc.readModels.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	return dto.FromAccount(account, nil), nil
}

// GetAccount returns an account with its behavioral profile and most
// recent transactions
func (uc *UseCase) GetAccount(ctx context.Context, accountID string, recent int) (*dto.AccountResponse, error) {
	account, err := uc.readModels.GetAccount(ctx, accountID)
	if errors.Is(err, readmodel.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", transaction.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}

	profile, err := uc.readModels.GetProfile(ctx, accountID)
	if err != nil && !errors.Is(err, readmodel.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile of %s: %w", accountID, err)
	}

	resp := dto.FromAccount(account, profile)
	txns, err := uc.readModels.ListTransactionsByAccount(ctx, accountID, recent)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of %s: %w", accountID, err)
	}
	for _, txn := range txns {
		resp.RecentTransactions = append(resp.RecentTransactions, dto.FromTransaction(txn))
	}
	return resp, nil
}

// RecordLogin appends LoginAttempted to a session stream. A new session is
// opened when the request names none.
func (uc *UseCase) RecordLogin(ctx context.Context, req *dto.RecordLoginRequest) (*dto.EventResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	md, err := req.ClientContext.Metadata(req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := uc.requireAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = transaction.NewSessionID()
	}
	evt := event.New(sessionID, event.LoginAttempted{
		AccountID:     req.AccountID,
		Success:       req.Success,
		FailureReason: req.FailureReason,
	}, md, uc.timestamp(req.Timestamp))

	return uc.appendToStream(ctx, evt)
}

// ChangeDevice appends DeviceChanged to the account stream
func (uc *UseCase) ChangeDevice(ctx context.Context, req *dto.ChangeDeviceRequest) (*dto.EventResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	md, err := req.ClientContext.Metadata(req.AccountID)
	if err != nil {
		return nil, err
	}
	if md.DeviceID == "" {
		md.DeviceID = req.DeviceID
	}
	if err := uc.requireAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	evt := event.New(req.AccountID, event.DeviceChanged{
		AccountID:   req.AccountID,
		NewDeviceID: req.DeviceID,
		DeviceType:  req.DeviceType,
		Browser:     req.Browser,
		OS:          req.OS,
	}, md, uc.timestamp(req.Timestamp))

	return uc.appendToStream(ctx, evt)
}

// ChangeLocation appends LocationChanged to the account stream
func (uc *UseCase) ChangeLocation(ctx context.Context, req *dto.ChangeLocationRequest) (*dto.EventResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if err := uc.requireAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	evt := event.New(req.AccountID, event.LocationChanged{
		AccountID: req.AccountID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Context:   req.Context,
		ContextID: req.ContextID,
	}, event.Metadata{
		UserID:    req.AccountID,
		IPAddress: req.IPAddress,
		DeviceID:  req.DeviceID,
	}, uc.timestamp(req.Timestamp))

	return uc.appendToStream(ctx, evt)
}

// appendToStream appends at the current head of the stream, re-reading the
// head when another writer got there first
func (uc *UseCase) appendToStream(ctx context.Context, evt event.Event) (*dto.EventResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		head, err := uc.events.StreamVersion(ctx, evt.AggregateType, evt.AggregateID)
		if err != nil {
			return nil, fmt.Errorf("failed to read stream version: %w", err)
		}
		stored, err := uc.events.Append(ctx, evt, head)
		if err == nil {
			uc.advance(ctx)
			return &dto.EventResponse{
				EventID:     stored.ID,
				EventType:   string(stored.Type),
				AggregateID: stored.AggregateID,
				Version:     stored.Version,
				Timestamp:   stored.Timestamp,
			}, nil
		}
		if !errors.Is(err, event.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("failed to append %s: %w", evt.Type, err)
		}
		lastErr = err
		uc.logger.Debug("stream moved, retrying append",
			zap.String("aggregate_id", evt.AggregateID),
			zap.Int("attempt", attempt),
		)
	}
	return nil, lastErr
}

func (uc *UseCase) requireAccount(ctx context.Context, accountID string) error {
	head, err := uc.events.StreamVersion(ctx, event.AggregateAccount, accountID)
	if err != nil {
		return fmt.Errorf("failed to read account stream: %w", err)
	}
	if head == 0 {
		return fmt.Errorf("%w: %s", transaction.ErrAccountNotFound, accountID)
	}
	return nil
}

func (uc *UseCase) advance(ctx context.Context) {
	if err := uc.projector.Advance(ctx); err != nil {
		uc.logger.Warn("projection pass incomplete", zap.Error(err))
	}
}

func (uc *UseCase) timestamp(at *time.Time) time.Time {
	if at != nil {
		return at.UTC()
	}
	return uc.now().UTC()
}
