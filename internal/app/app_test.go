package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/domain/transaction"
	"fraud-ledger/internal/testutil"
)

// Monday, midday UTC
var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, a *app.App, id string) {
	t.Helper()
	testutil.CreateAccount(t, a, id, noon.AddDate(0, 0, -30))
}

func TestSubmit_UnusualAmountIsFlagged(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_amount")

	for day := 5; day >= 1; day-- {
		resp := testutil.Submit(t, a, "acct_amount", "50.00", noon.AddDate(0, 0, -day))
		require.NotNil(t, resp.FraudScore)
		assert.False(t, resp.FraudScore.Flagged, "baseline transaction %d days ago", day)
	}

	resp := testutil.Submit(t, a, "acct_amount", "500.00", noon)
	require.NotNil(t, resp.FraudScore)
	assert.Equal(t, []string{"unusual_amount"}, resp.FraudScore.Reasons)
	assert.True(t, resp.FraudScore.Flagged)
	assert.Greater(t, resp.FraudScore.FraudProbability, 0.0)
	assert.Equal(t, fraud.RulesOnlyVersion, resp.FraudScore.ModelVersion)
	assert.InDelta(t, 0.35, resp.FraudScore.RuleProbability, 1e-9)
	assert.InDelta(t, 6.0, resp.FraudScore.Features["lifetime_transactions"], 1e-9)

	assert.Equal(t, string(readmodel.StatusFlagged), resp.Status)
	assert.Equal(t, 1, resp.FraudFlags)

	account, err := a.Accounts.GetAccount(context.Background(), "acct_amount", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, account.FraudFlags)
	assert.Equal(t, 6, account.TotalTransactions)
	assert.Len(t, account.RecentTransactions, 6)

	flagged, err := a.Transactions.ListFlagged(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, flagged.Total)
	assert.Equal(t, resp.TransactionID, flagged.Transactions[0].TransactionID)
}

func TestSubmit_VelocityAnomalyOnThirdTransactionWithinTheHour(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_velocity")

	first := testutil.Submit(t, a, "acct_velocity", "40.00", noon)
	second := testutil.Submit(t, a, "acct_velocity", "45.00", noon.Add(20*time.Minute))
	third := testutil.Submit(t, a, "acct_velocity", "42.00", noon.Add(40*time.Minute))

	for _, resp := range []*dto.TransactionResponse{first, second} {
		require.NotNil(t, resp.FraudScore)
		assert.Empty(t, resp.FraudScore.Reasons)
		assert.Equal(t, string(readmodel.StatusCompleted), resp.Status)
	}

	require.NotNil(t, third.FraudScore)
	assert.Equal(t, []string{"velocity_anomaly"}, third.FraudScore.Reasons)
	assert.InDelta(t, 3.0, third.FraudScore.Features["transactions_last_hour"], 1e-9)
	assert.Equal(t, string(readmodel.StatusFlagged), third.Status)
}

func TestSubmit_GeographicImpossibility(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_geo")

	// 5.4 degrees of latitude is roughly 600 km
	first := testutil.Submit(t, a, "acct_geo", "60.00", noon, testutil.At(40.7128, -74.0060))
	require.NotNil(t, first.FraudScore)
	assert.Empty(t, first.FraudScore.Reasons)

	second := testutil.Submit(t, a, "acct_geo", "55.00", noon.Add(10*time.Minute), testutil.At(46.1128, -74.0060))
	require.NotNil(t, second.FraudScore)
	assert.Equal(t, []string{"geographic_impossibility"}, second.FraudScore.Reasons)
	assert.InDelta(t, 600, second.FraudScore.Features["distance_from_last_km"], 5)
	assert.Greater(t, second.FraudScore.Features["travel_velocity_kmh"], 500.0)
	assert.InDelta(t, 0.60, second.FraudScore.FraudProbability, 1e-9)
}

func TestSubmit_SuspiciousTiming(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_night")

	resp := testutil.Submit(t, a, "acct_night", "25.00", time.Date(2026, 3, 3, 4, 15, 0, 0, time.UTC))
	require.NotNil(t, resp.FraudScore)
	assert.Equal(t, []string{"suspicious_timing"}, resp.FraudScore.Reasons)
	assert.InDelta(t, 0.15, resp.FraudScore.FraudProbability, 1e-9)
	assert.InDelta(t, 4.0, resp.FraudScore.Features["hour_of_day"], 1e-9)
}

func TestSubmit_TimingRuleUsesConfiguredTimezone(t *testing.T) {
	cfg := testutil.Config(t)
	cfg.Fraud.Timezone = "America/New_York"
	a := testutil.NewApp(t, cfg)
	newAccount(t, a, "acct_tz")

	// 04:15 UTC is 23:15 the previous evening in New York
	resp := testutil.Submit(t, a, "acct_tz", "25.00", time.Date(2026, 3, 3, 4, 15, 0, 0, time.UTC))
	require.NotNil(t, resp.FraudScore)
	assert.Empty(t, resp.FraudScore.Reasons)
	assert.InDelta(t, 23.0, resp.FraudScore.Features["hour_of_day"], 1e-9)
}

func TestSubmit_PolicyFailures(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()
	newAccount(t, a, "acct_limits")

	over := testutil.Submit(t, a, "acct_limits", "50000.01", noon)
	assert.Equal(t, string(readmodel.StatusFailed), over.Status)
	assert.Equal(t, transaction.FailureAmountLimitExceeded, over.FailureReason)
	assert.Nil(t, over.FraudScore, "failed transactions are never scored")

	at := noon.AddDate(0, 0, -30)
	_, err := a.Accounts.CreateAccount(ctx, &dto.CreateAccountRequest{
		AccountID:     "acct_closed",
		Email:         "closed@example.com",
		InitialStatus: "suspended",
		Timestamp:     &at,
	})
	require.NoError(t, err)

	inactive := testutil.Submit(t, a, "acct_closed", "10.00", noon)
	assert.Equal(t, string(readmodel.StatusFailed), inactive.Status)
	assert.Equal(t, transaction.FailureAccountInactive, inactive.FailureReason)
}

func TestSubmit_RejectsInvalidRequests(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()
	newAccount(t, a, "acct_invalid")

	_, err := a.Submit.Execute(ctx, &dto.SubmitTransactionRequest{
		AccountID: "acct_invalid",
		Amount:    decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, dto.ErrInvalidRequest)

	_, err = a.Submit.Execute(ctx, &dto.SubmitTransactionRequest{
		AccountID: "acct_missing",
		Amount:    decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, transaction.ErrAccountNotFound)

	lat := 10.0
	_, err = a.Submit.Execute(ctx, &dto.SubmitTransactionRequest{
		AccountID:     "acct_invalid",
		Amount:        decimal.NewFromInt(5),
		ClientContext: dto.ClientContext{Latitude: &lat},
	})
	assert.ErrorIs(t, err, dto.ErrInvalidRequest)

	_, err = a.Accounts.CreateAccount(ctx, &dto.CreateAccountRequest{AccountID: "acct_invalid", Email: "dup@example.com"})
	assert.ErrorIs(t, err, transaction.ErrAccountExists)
}

func TestSubmit_DefaultsCurrency(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_currency")

	at := noon
	resp, err := a.Submit.Execute(context.Background(), &dto.SubmitTransactionRequest{
		AccountID: "acct_currency",
		Amount:    decimal.RequireFromString("12.50"),
		Timestamp: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.DefaultCurrency, resp.Currency)
	assert.True(t, decimal.RequireFromString("12.50").Equal(resp.Amount))
}

func TestAccountEvents_FeedProjections(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()
	newAccount(t, a, "acct_events")

	at := noon
	login, err := a.Accounts.RecordLogin(ctx, &dto.RecordLoginRequest{
		AccountID: "acct_events",
		Success:   true,
		Timestamp: &at,
		ClientContext: dto.ClientContext{
			IPAddress: "192.0.2.44",
			DeviceID:  "dev_laptop",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "LoginAttempted", login.EventType)

	_, err = a.Accounts.ChangeDevice(ctx, &dto.ChangeDeviceRequest{
		AccountID:  "acct_events",
		DeviceID:   "dev_phone",
		DeviceType: "mobile",
		Timestamp:  &at,
	})
	require.NoError(t, err)

	_, err = a.Accounts.ChangeLocation(ctx, &dto.ChangeLocationRequest{
		AccountID: "acct_events",
		Latitude:  51.5072,
		Longitude: -0.1276,
		Context:   "manual",
		Timestamp: &at,
	})
	require.NoError(t, err)

	account, err := a.Accounts.GetAccount(ctx, "acct_events", 5)
	require.NoError(t, err)
	require.NotNil(t, account.LastLoginAt)
	assert.True(t, at.Equal(*account.LastLoginAt))

	device, err := a.ReadModels.GetDevice(ctx, "acct_events", "dev_phone")
	require.NoError(t, err)
	assert.Equal(t, "mobile", device.DeviceType)

	_, err = a.Accounts.RecordLogin(ctx, &dto.RecordLoginRequest{AccountID: "acct_nobody", Success: true})
	assert.ErrorIs(t, err, transaction.ErrAccountNotFound)
}

func TestRescore_NewModelVersionLeavesTransactionsUntouched(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()

	for i, id := range []string{"acct_r1", "acct_r2"} {
		newAccount(t, a, id)
		for day := 7; day >= 1; day-- {
			amount := fmt.Sprintf("%d.00", 30+day*3+i*7)
			testutil.Submit(t, a, id, amount, noon.AddDate(0, 0, -day).Add(time.Duration(i)*time.Hour))
		}
	}

	trained, err := a.Train.Execute(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, fraud.RulesOnlyVersion, trained.ModelVersion)
	assert.Equal(t, 14, trained.TrainingSamples)

	before := transactionRows(t, a)

	summary, err := a.Scoring.Rescore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, summary.Total)
	assert.Equal(t, map[string]int{trained.ModelVersion: 14}, summary.ModelVersions)

	assert.Equal(t, before, transactionRows(t, a), "rescoring writes score rows only")

	for _, txn := range before {
		score, err := a.Scores.Get(ctx, txn.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, trained.ModelVersion, score.ModelVersion)
		assert.GreaterOrEqual(t, score.FraudProbability, 0.0)
		assert.LessOrEqual(t, score.FraudProbability, 1.0)
	}
}

func TestTrain_RequiresEnoughTransactions(t *testing.T) {
	a := testutil.NewApp(t, nil)
	newAccount(t, a, "acct_sparse")
	testutil.Submit(t, a, "acct_sparse", "10.00", noon)

	_, err := a.Train.Execute(context.Background())
	assert.ErrorIs(t, err, fraud.ErrInsufficientTrainingData)
}

func TestAlerts_PublishedForRaisedFlags(t *testing.T) {
	publisher := &testutil.RecordingPublisher{}
	a := testutil.NewApp(t, nil, app.WithAlertPublisher(publisher))
	newAccount(t, a, "acct_alerts")

	publisher.FailWith(errors.New("broker unavailable"))
	resp := testutil.Submit(t, a, "acct_alerts", "25.00", time.Date(2026, 3, 3, 4, 15, 0, 0, time.UTC))

	// scoring does not wait for the alert projection
	require.NotNil(t, resp.FraudScore)
	assert.True(t, resp.FraudScore.Flagged)
	assert.Empty(t, publisher.Alerts())

	publisher.FailWith(nil)
	require.NoError(t, a.Pipeline.Advance(context.Background()))

	alerts := publisher.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, resp.TransactionID, alerts[0].TransactionID)
	assert.Equal(t, []string{"suspicious_timing"}, alerts[0].Reasons)
	assert.False(t, alerts[0].AutoBlocked)

	_, err := a.Engine.RebuildProjection(context.Background(), projection.FraudAlertProjectionName)
	require.NoError(t, err)
	assert.Len(t, publisher.Alerts(), 2, "rebuilding re-sends every alert")
}

func transactionRows(t *testing.T, a *app.App) []*readmodel.Transaction {
	t.Helper()
	var rows []*readmodel.Transaction
	for _, id := range []string{"acct_r1", "acct_r2"} {
		txns, err := a.ReadModels.ListTransactionsByAccount(context.Background(), id, 100)
		require.NoError(t, err)
		rows = append(rows, txns...)
	}
	return rows
}
