package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/profile"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/config"
	"fraud-ledger/internal/pkg/geo"
)

// FeatureExtractor builds the behavioral feature vector of a completed
// transaction from the read models. Every input is bounded by the event ids
// of the transaction itself, so re-extracting later yields the same vector.
type FeatureExtractor struct {
	readModels     readmodel.Store
	builder        *profile.Builder
	velocityWindow time.Duration
	stdFloor       float64
}

// NewFeatureExtractor creates a new feature extractor
func NewFeatureExtractor(rm readmodel.Store, builder *profile.Builder, cfg config.FraudConfig) *FeatureExtractor {
	window := cfg.VelocityWindow
	if window <= 0 {
		window = time.Hour
	}
	floor := cfg.AmountStdDevFloor
	if floor <= 0 {
		floor = 1
	}
	return &FeatureExtractor{
		readModels:     rm,
		builder:        builder,
		velocityWindow: window,
		stdFloor:       floor,
	}
}

// Extract returns the features of a completed transaction and its row
func (e *FeatureExtractor) Extract(ctx context.Context, transactionID string) (*fraud.Features, *readmodel.Transaction, error) {
	txn, err := e.readModels.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load transaction: %w", err)
	}
	if !txn.IsCompleted() {
		return nil, nil, fmt.Errorf("%w: %s is %s", fraud.ErrTransactionNotCompleted, transactionID, txn.Status)
	}

	// Baseline as it stood before this transaction completed
	history, err := e.readModels.ListCompletedTransactions(ctx, txn.AccountID, *txn.CompletedEventID-1)
	if err != nil {
		return nil, nil, fmt.Errorf("load history of %s: %w", txn.AccountID, err)
	}
	baseline := e.builder.Compute(txn.AccountID, history)

	f := &fraud.Features{
		Amount:               txn.Amount.InexactFloat64(),
		LifetimeTransactions: float64(baseline.TransactionCount + 1),
		ProfileAvgAmount:     baseline.AvgAmount,
		ProfileStdAmount:     baseline.StdAmount,
		HasHistory:           baseline.TransactionCount > 0,
	}

	if f.HasHistory {
		f.AmountZScore = (f.Amount - baseline.AvgAmount) / math.Max(baseline.StdAmount, e.stdFloor)
	}

	count, err := e.readModels.CountTransactionsBetween(ctx, txn.AccountID,
		txn.InitiatedAt.Add(-e.velocityWindow), txn.InitiatedAt, txn.InitiatedEventID)
	if err != nil {
		return nil, nil, fmt.Errorf("count recent transactions: %w", err)
	}
	f.TransactionsLastHour = float64(count)

	if txn.HasLocation() {
		prev, err := e.readModels.LastLocationBefore(ctx, txn.AccountID, txn.InitiatedAt, txn.InitiatedEventID)
		switch {
		case errors.Is(err, readmodel.ErrNotFound):
		case err != nil:
			return nil, nil, fmt.Errorf("load previous location: %w", err)
		default:
			here := geo.Point{Latitude: *txn.Latitude, Longitude: *txn.Longitude}
			dist := geo.DistanceKm(geo.Point{Latitude: prev.Latitude, Longitude: prev.Longitude}, here)
			f.HasPriorLocation = true
			f.DistanceFromLastKm = dist
			f.TravelVelocityKmh = geo.VelocityKmh(dist, txn.InitiatedAt.Sub(prev.Timestamp))
		}
	}

	local := txn.InitiatedAt.In(e.builder.Location())
	f.HourOfDay = float64(local.Hour())
	// Monday is 0
	f.DayOfWeek = float64((int(local.Weekday()) + 6) % 7)

	f.IsNewMerchantCategory = fraud.Flag(f.HasHistory && txn.MerchantCategory != "" && !baseline.HasCategory(txn.MerchantCategory))
	f.IsNewDevice = fraud.Flag(f.HasHistory && txn.DeviceID != "" && !baseline.KnowsDevice(txn.DeviceID))

	account, err := e.readModels.GetAccount(ctx, txn.AccountID)
	switch {
	case errors.Is(err, readmodel.ErrNotFound):
	case err != nil:
		return nil, nil, fmt.Errorf("load account: %w", err)
	default:
		if age := txn.InitiatedAt.Sub(account.CreatedAt); age > 0 {
			f.AccountAgeDays = math.Floor(age.Hours() / 24)
		}
	}

	return f, txn, nil
}
