package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-ledger/internal/domain/readmodel"
)

var ownedTables = map[readmodel.Table]bool{
	readmodel.TableAccounts:       true,
	readmodel.TableTransactions:   true,
	readmodel.TableDevices:        true,
	readmodel.TableLocationEvents: true,
	readmodel.TableLoginAttempts:  true,
	readmodel.TableUserProfiles:   true,
}

// ReadModelRepository implements readmodel.Store
type ReadModelRepository struct {
	db *gorm.DB
}

// NewReadModelRepository creates a new read model repository
func NewReadModelRepository(client *Client) *ReadModelRepository {
	return &ReadModelRepository{db: client.DB()}
}

func newReadModelRepository(db *gorm.DB) *ReadModelRepository {
	return &ReadModelRepository{db: db}
}

// GetAccount retrieves an account by ID
func (r *ReadModelRepository) GetAccount(ctx context.Context, accountID string) (*readmodel.Account, error) {
	var m AccountModel
	if err := r.db.WithContext(ctx).First(&m, "account_id = ?", accountID).Error; err != nil {
		return nil, notFound(err)
	}
	return &readmodel.Account{
		AccountID:         m.AccountID,
		Email:             m.Email,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt.UTC(),
		TotalTransactions: m.TotalTransactions,
		TotalVolume:       m.TotalVolume,
		LastTransactionAt: utcPtr(m.LastTransactionAt),
		LastLoginAt:       utcPtr(m.LastLoginAt),
		FraudFlags:        m.FraudFlags,
		UpdatedAt:         m.UpdatedAt.UTC(),
	}, nil
}

// SaveAccount inserts or overwrites an account
func (r *ReadModelRepository) SaveAccount(ctx context.Context, a *readmodel.Account) error {
	m := AccountModel{
		AccountID:         a.AccountID,
		Email:             a.Email,
		Status:            a.Status,
		CreatedAt:         a.CreatedAt.UTC(),
		TotalTransactions: a.TotalTransactions,
		TotalVolume:       a.TotalVolume,
		LastTransactionAt: utcPtr(a.LastTransactionAt),
		LastLoginAt:       utcPtr(a.LastLoginAt),
		FraudFlags:        a.FraudFlags,
		UpdatedAt:         a.UpdatedAt.UTC(),
	}
	return r.upsert(ctx, &m)
}

// GetTransaction retrieves a transaction by ID
func (r *ReadModelRepository) GetTransaction(ctx context.Context, transactionID string) (*readmodel.Transaction, error) {
	var m TransactionModel
	if err := r.db.WithContext(ctx).First(&m, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, notFound(err)
	}
	return modelToTransaction(&m), nil
}

// SaveTransaction inserts or overwrites a transaction
func (r *ReadModelRepository) SaveTransaction(ctx context.Context, t *readmodel.Transaction) error {
	m := TransactionModel{
		TransactionID:    t.TransactionID,
		AccountID:        t.AccountID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		MerchantName:     t.MerchantName,
		MerchantCategory: t.MerchantCategory,
		Status:           string(t.Status),
		FailureReason:    t.FailureReason,
		InitiatedAt:      t.InitiatedAt.UTC(),
		CompletedAt:      utcPtr(t.CompletedAt),
		FailedAt:         utcPtr(t.FailedAt),
		Latitude:         t.Latitude,
		Longitude:        t.Longitude,
		DeviceID:         t.DeviceID,
		IPAddress:        t.IPAddress,
		FraudFlags:       t.FraudFlags,
		InitiatedEventID: t.InitiatedEventID,
		CompletedEventID: t.CompletedEventID,
		UpdatedAt:        t.UpdatedAt.UTC(),
	}
	return r.upsert(ctx, &m)
}

// ListCompletedTransactions returns completed transactions of an account up
// to a completing event id, in completing event order
func (r *ReadModelRepository) ListCompletedTransactions(ctx context.Context, accountID string, maxCompletedEventID int64) ([]*readmodel.Transaction, error) {
	var models []TransactionModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND completed_event_id IS NOT NULL AND completed_event_id <= ?", accountID, maxCompletedEventID).
		Order("completed_event_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return modelsToTransactions(models), nil
}

// CountTransactionsBetween counts transactions of an account initiated in
// [from, to]
func (r *ReadModelRepository) CountTransactionsBetween(ctx context.Context, accountID string, from, to time.Time, maxInitiatedEventID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&TransactionModel{}).
		Where("account_id = ? AND initiated_at >= ? AND initiated_at <= ? AND initiated_event_id <= ?",
			accountID, from.UTC(), to.UTC(), maxInitiatedEventID).
		Count(&n).Error
	return n, err
}

// ListScorableTransactionIDs returns completed transaction ids in completion order
func (r *ReadModelRepository) ListScorableTransactionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&TransactionModel{}).
		Where("completed_event_id IS NOT NULL").
		Order("completed_event_id ASC").
		Pluck("transaction_id", &ids).Error
	return ids, err
}

// ListTransactionsByAccount returns the most recent transactions of an account
func (r *ReadModelRepository) ListTransactionsByAccount(ctx context.Context, accountID string, limit int) ([]*readmodel.Transaction, error) {
	var models []TransactionModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("initiated_event_id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return modelsToTransactions(models), nil
}

// ListTransactionsByStatus returns the most recent transactions in a status
func (r *ReadModelRepository) ListTransactionsByStatus(ctx context.Context, status readmodel.TransactionStatus, limit int) ([]*readmodel.Transaction, error) {
	var models []TransactionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("initiated_event_id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return modelsToTransactions(models), nil
}

// GetDevice retrieves a device of an account
func (r *ReadModelRepository) GetDevice(ctx context.Context, accountID, deviceID string) (*readmodel.Device, error) {
	var m DeviceModel
	if err := r.db.WithContext(ctx).First(&m, "account_id = ? AND device_id = ?", accountID, deviceID).Error; err != nil {
		return nil, notFound(err)
	}
	return &readmodel.Device{
		AccountID:      m.AccountID,
		DeviceID:       m.DeviceID,
		DeviceType:     m.DeviceType,
		Browser:        m.Browser,
		OS:             m.OS,
		FirstSeen:      m.FirstSeen.UTC(),
		LastSeen:       m.LastSeen.UTC(),
		TimesSeen:      m.TimesSeen,
		FraudIncidents: m.FraudIncidents,
	}, nil
}

// SaveDevice inserts or overwrites a device
func (r *ReadModelRepository) SaveDevice(ctx context.Context, d *readmodel.Device) error {
	m := DeviceModel{
		AccountID:      d.AccountID,
		DeviceID:       d.DeviceID,
		DeviceType:     d.DeviceType,
		Browser:        d.Browser,
		OS:             d.OS,
		FirstSeen:      d.FirstSeen.UTC(),
		LastSeen:       d.LastSeen.UTC(),
		TimesSeen:      d.TimesSeen,
		FraudIncidents: d.FraudIncidents,
	}
	return r.upsert(ctx, &m)
}

// AddLocationEvent stores a location keyed by its source event
func (r *ReadModelRepository) AddLocationEvent(ctx context.Context, l *readmodel.LocationEvent) error {
	m := LocationEventModel{
		SourceEventID: l.SourceEventID,
		AccountID:     l.AccountID,
		Kind:          string(l.Kind),
		ReferenceID:   l.ReferenceID,
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		IPAddress:     l.IPAddress,
		OccurredAt:    l.Timestamp.UTC(),
	}
	return r.upsert(ctx, &m)
}

// LastLocationBefore returns the latest location of an account at or before
// at, reported by an event older than beforeEventID
func (r *ReadModelRepository) LastLocationBefore(ctx context.Context, accountID string, at time.Time, beforeEventID int64) (*readmodel.LocationEvent, error) {
	var m LocationEventModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND occurred_at <= ? AND source_event_id < ?", accountID, at.UTC(), beforeEventID).
		Order("occurred_at DESC").
		Order("source_event_id DESC").
		Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &readmodel.LocationEvent{
		SourceEventID: m.SourceEventID,
		AccountID:     m.AccountID,
		Kind:          readmodel.LocationKind(m.Kind),
		ReferenceID:   m.ReferenceID,
		Latitude:      m.Latitude,
		Longitude:     m.Longitude,
		IPAddress:     m.IPAddress,
		Timestamp:     m.OccurredAt.UTC(),
	}, nil
}

// AddLoginAttempt stores a login attempt keyed by its source event
func (r *ReadModelRepository) AddLoginAttempt(ctx context.Context, a *readmodel.LoginAttempt) error {
	m := LoginAttemptModel{
		SourceEventID: a.SourceEventID,
		SessionID:     a.SessionID,
		AccountID:     a.AccountID,
		Success:       a.Success,
		FailureReason: a.FailureReason,
		IPAddress:     a.IPAddress,
		DeviceID:      a.DeviceID,
		UserAgent:     a.UserAgent,
		Latitude:      a.Latitude,
		Longitude:     a.Longitude,
		OccurredAt:    a.Timestamp.UTC(),
	}
	return r.upsert(ctx, &m)
}

// GetProfile retrieves the behavioral profile of an account
func (r *ReadModelRepository) GetProfile(ctx context.Context, accountID string) (*readmodel.Profile, error) {
	var m ProfileModel
	if err := r.db.WithContext(ctx).First(&m, "account_id = ?", accountID).Error; err != nil {
		return nil, notFound(err)
	}
	p := &readmodel.Profile{
		AccountID:        m.AccountID,
		TransactionCount: m.TransactionCount,
		AvgAmount:        m.AvgAmount,
		MedianAmount:     m.MedianAmount,
		StdAmount:        m.StdAmount,
		HomeLatitude:     m.HomeLatitude,
		HomeLongitude:    m.HomeLongitude,
		TypicalRadiusKm:  m.TypicalRadiusKm,
		MaxVelocityKmh:   m.MaxVelocityKmh,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
	for _, field := range []struct {
		raw  string
		dest any
	}{
		{m.HourHistogram, &p.HourHistogram},
		{m.TypicalHours, &p.TypicalHours},
		{m.MerchantCategories, &p.MerchantCategories},
		{m.KnownDevices, &p.KnownDevices},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dest); err != nil {
			return nil, fmt.Errorf("decode profile of %s: %w", accountID, err)
		}
	}
	return p, nil
}

// SaveProfile inserts or overwrites a profile
func (r *ReadModelRepository) SaveProfile(ctx context.Context, p *readmodel.Profile) error {
	hist, err := json.Marshal(p.HourHistogram)
	if err != nil {
		return err
	}
	hours, err := json.Marshal(nonNil(p.TypicalHours))
	if err != nil {
		return err
	}
	categories, err := json.Marshal(nonNil(p.MerchantCategories))
	if err != nil {
		return err
	}
	devices, err := json.Marshal(nonNil(p.KnownDevices))
	if err != nil {
		return err
	}
	m := ProfileModel{
		AccountID:          p.AccountID,
		TransactionCount:   p.TransactionCount,
		AvgAmount:          p.AvgAmount,
		MedianAmount:       p.MedianAmount,
		StdAmount:          p.StdAmount,
		HourHistogram:      string(hist),
		TypicalHours:       string(hours),
		MerchantCategories: string(categories),
		HomeLatitude:       p.HomeLatitude,
		HomeLongitude:      p.HomeLongitude,
		TypicalRadiusKm:    p.TypicalRadiusKm,
		MaxVelocityKmh:     p.MaxVelocityKmh,
		KnownDevices:       string(devices),
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
	return r.upsert(ctx, &m)
}

// Truncate deletes every row of the given read-model tables
func (r *ReadModelRepository) Truncate(ctx context.Context, tables ...readmodel.Table) error {
	for _, t := range tables {
		if !ownedTables[t] {
			return fmt.Errorf("refusing to truncate unknown table %q", t)
		}
		if err := r.db.WithContext(ctx).Exec("DELETE FROM " + string(t)).Error; err != nil {
			return fmt.Errorf("truncate %s: %w", t, err)
		}
	}
	return nil
}

func (r *ReadModelRepository) upsert(ctx context.Context, model any) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
}

func modelToTransaction(m *TransactionModel) *readmodel.Transaction {
	return &readmodel.Transaction{
		TransactionID:    m.TransactionID,
		AccountID:        m.AccountID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		MerchantName:     m.MerchantName,
		MerchantCategory: m.MerchantCategory,
		Status:           readmodel.TransactionStatus(m.Status),
		FailureReason:    m.FailureReason,
		InitiatedAt:      m.InitiatedAt.UTC(),
		CompletedAt:      utcPtr(m.CompletedAt),
		FailedAt:         utcPtr(m.FailedAt),
		Latitude:         m.Latitude,
		Longitude:        m.Longitude,
		DeviceID:         m.DeviceID,
		IPAddress:        m.IPAddress,
		FraudFlags:       m.FraudFlags,
		InitiatedEventID: m.InitiatedEventID,
		CompletedEventID: m.CompletedEventID,
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

func modelsToTransactions(models []TransactionModel) []*readmodel.Transaction {
	out := make([]*readmodel.Transaction, len(models))
	for i := range models {
		out[i] = modelToTransaction(&models[i])
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return readmodel.ErrNotFound
	}
	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
