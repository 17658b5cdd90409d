// Package testutil wires a complete application over a throwaway SQLite
// database for integration tests.
package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/pkg/config"
)

// Config returns the default configuration over a fresh SQLite file
func Config(t testing.TB) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Database.AutoMigrate = true
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	cfg.Projection.LockTimeout = 10 * time.Second
	cfg.Log.Level = "debug"
	return cfg
}

// NewApp wires the application over cfg, or over Config(t) when cfg is nil.
// It is closed when the test ends.
func NewApp(t testing.TB, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	if cfg == nil {
		cfg = Config(t)
	}
	a, err := app.New(context.Background(), cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// CreateAccount opens an active account at the given time
func CreateAccount(t testing.TB, a *app.App, accountID string, at time.Time) *dto.AccountResponse {
	t.Helper()
	resp, err := a.Accounts.CreateAccount(context.Background(), &dto.CreateAccountRequest{
		AccountID: accountID,
		Email:     accountID + "@example.com",
		Timestamp: &at,
	})
	require.NoError(t, err)
	return resp
}

// TxOption adjusts a submitted transaction
type TxOption func(*dto.SubmitTransactionRequest)

// At places the transaction at a position
func At(lat, lon float64) TxOption {
	return func(r *dto.SubmitTransactionRequest) {
		r.Latitude, r.Longitude = &lat, &lon
	}
}

// OnDevice sets the device the transaction was made from
func OnDevice(deviceID string) TxOption {
	return func(r *dto.SubmitTransactionRequest) { r.DeviceID = deviceID }
}

// InCategory sets the merchant category
func InCategory(category string) TxOption {
	return func(r *dto.SubmitTransactionRequest) { r.MerchantCategory = category }
}

// Submit runs a transaction through the submission flow and returns the
// resulting projected state
func Submit(t testing.TB, a *app.App, accountID, amount string, at time.Time, opts ...TxOption) *dto.TransactionResponse {
	t.Helper()
	req := &dto.SubmitTransactionRequest{
		AccountID:        accountID,
		Amount:           decimal.RequireFromString(amount),
		Currency:         "USD",
		MerchantName:     "Corner Store",
		MerchantCategory: "grocery",
		Timestamp:        &at,
	}
	for _, opt := range opts {
		opt(req)
	}
	resp, err := a.Submit.Execute(context.Background(), req)
	require.NoError(t, err)
	return resp
}

// RecordingPublisher collects published fraud alerts in memory
type RecordingPublisher struct {
	mu     sync.Mutex
	alerts []projection.Alert
	err    error
}

// Publish records alert, or fails with the error set by FailWith
func (p *RecordingPublisher) Publish(_ context.Context, alert projection.Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.alerts = append(p.alerts, alert)
	return nil
}

// FailWith makes later publishes fail with err until reset with nil
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Alerts returns a copy of the alerts published so far
func (p *RecordingPublisher) Alerts() []projection.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]projection.Alert(nil), p.alerts...)
}
