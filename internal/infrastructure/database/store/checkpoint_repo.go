package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-ledger/internal/domain/readmodel"
)

// ProjectionStore keeps consumer checkpoints and runs projection work in
// the same database transaction as the checkpoint it advances.
type ProjectionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProjectionStore creates a new projection store
func NewProjectionStore(client *Client) *ProjectionStore {
	return &ProjectionStore{db: client.DB(), now: time.Now}
}

// Checkpoint returns the last event id handled by name, 0 if none
func (s *ProjectionStore) Checkpoint(ctx context.Context, name string) (int64, error) {
	return checkpointOf(s.db.WithContext(ctx), name)
}

// SaveCheckpoint advances the checkpoint of name, never moving it back
func (s *ProjectionStore) SaveCheckpoint(ctx context.Context, name string, eventID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := checkpointOf(tx, name)
		if err != nil {
			return err
		}
		if eventID <= current {
			return nil
		}
		return s.write(tx, name, eventID)
	})
}

// Apply runs fn against a read-model store bound to one database
// transaction and advances the checkpoint in that same transaction.
func (s *ProjectionStore) Apply(ctx context.Context, name string, eventID int64, fn func(context.Context, readmodel.Store) error) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := checkpointOf(tx, name)
		if err != nil {
			return err
		}
		if eventID <= current {
			return nil
		}
		if err := fn(ctx, newReadModelRepository(tx)); err != nil {
			return err
		}
		if err := s.write(tx, name, eventID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Reset truncates the tables of a projection and rewinds its checkpoint
func (s *ProjectionStore) Reset(ctx context.Context, name string, tables []readmodel.Table) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := newReadModelRepository(tx).Truncate(ctx, tables...); err != nil {
			return err
		}
		return s.write(tx, name, 0)
	})
}

func (s *ProjectionStore) write(tx *gorm.DB, name string, eventID int64) error {
	state := ProjectionStateModel{Name: name, Checkpoint: eventID, UpdatedAt: s.now().UTC()}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error; err != nil {
		return fmt.Errorf("save checkpoint of %s: %w", name, err)
	}
	return nil
}

func checkpointOf(db *gorm.DB, name string) (int64, error) {
	var state ProjectionStateModel
	err := db.Where("name = ?", name).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint of %s: %w", name, err)
	}
	return state.Checkpoint, nil
}
