package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/application/pipeline"
	"fraud-ledger/internal/domain/event"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/testutil"
)

var night = time.Date(2026, 3, 4, 3, 30, 0, 0, time.UTC)

// appendCompleted writes a completed transaction straight to the log,
// bypassing the submission flow
func appendCompleted(t *testing.T, a *app.App, txID, accountID string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	amount := decimal.NewFromInt(20)
	_, err := a.Events.Append(ctx, event.New(txID, event.TransactionInitiated{
		AccountID: accountID, Amount: amount, Currency: "USD",
	}, event.Metadata{UserID: accountID}, at), 0)
	require.NoError(t, err)
	_, err = a.Events.Append(ctx, event.New(txID, event.TransactionCompleted{
		AccountID: accountID, Amount: amount, CompletedAt: at,
	}, event.Metadata{UserID: accountID}, at), 1)
	require.NoError(t, err)
}

func appendAccount(t *testing.T, a *app.App, accountID string) {
	t.Helper()
	_, err := a.Events.Append(context.Background(), event.New(accountID, event.AccountCreated{
		Email: accountID + "@example.com", InitialStatus: "active",
	}, event.Metadata{}, night.AddDate(0, -1, 0)), 0)
	require.NoError(t, err)
}

func TestPipeline_RunScoresAndProjectsFlags(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()
	appendAccount(t, a, "acct_p")
	appendCompleted(t, a, "txn_p1", "acct_p", night)

	res, err := a.Pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scored)
	assert.Equal(t, 1, res.Flagged)

	txn, err := a.ReadModels.GetTransaction(ctx, "txn_p1")
	require.NoError(t, err)
	assert.Equal(t, readmodel.StatusFlagged, txn.Status, "flag projected in the same pass")

	again, err := a.Pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Scored)
}

func TestPipeline_ScoringContinuesPastHaltedAlertProjection(t *testing.T) {
	publisher := &testutil.RecordingPublisher{}
	publisher.FailWith(errors.New("broker down"))
	a := testutil.NewApp(t, nil, app.WithAlertPublisher(publisher))
	ctx := context.Background()
	appendAccount(t, a, "acct_h")
	appendCompleted(t, a, "txn_h1", "acct_h", night)

	res, err := a.Pipeline.Run(ctx)
	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, 1, res.Scored)

	score, err := a.Scores.Get(ctx, "txn_h1")
	require.NoError(t, err)
	assert.Equal(t, fraud.RulesOnlyVersion, score.ModelVersion)

	cp, err := a.Engine.Checkpoint(ctx, projection.FraudAlertProjectionName)
	require.NoError(t, err)
	latest, err := a.Events.LatestID(ctx)
	require.NoError(t, err)
	assert.Less(t, cp, latest)
}

func TestWorker_ScoresInBackground(t *testing.T) {
	a := testutil.NewApp(t, nil)
	ctx := context.Background()
	appendAccount(t, a, "acct_w")

	w := pipeline.NewWorker(a.Pipeline, 20*time.Millisecond, zaptest.NewLogger(t))
	w.Start(ctx)
	w.Start(ctx)
	defer w.Stop()

	appendCompleted(t, a, "txn_w1", "acct_w", night)

	require.Eventually(t, func() bool {
		_, err := a.Scores.Get(ctx, "txn_w1")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	w.Stop()
	w.Stop()
}
