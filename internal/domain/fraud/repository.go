package fraud

import (
	"context"

	"fraud-ledger/internal/domain/readmodel"
)

// ScoreRepository manages fraud_scores rows. Each transaction owns at most
// one row.
type ScoreRepository interface {
	// Get retrieves the score of a transaction, or ErrScoreNotFound
	Get(ctx context.Context, transactionID string) (*Score, error)

	// Upsert inserts or overwrites the score of a transaction
	Upsert(ctx context.Context, score *Score) error

	// ListFlagged returns flagged scores, most recent first
	ListFlagged(ctx context.Context, limit int) ([]*Score, error)
}

// ModelRepository manages ml_models rows.
type ModelRepository interface {
	// Save stores a model. When the record is active every other model is
	// deactivated in the same transaction.
	Save(ctx context.Context, model *ModelRecord) error

	// ActiveVersion returns the version of the active model, or ErrModelNotFound
	ActiveVersion(ctx context.Context) (string, error)

	// GetByVersion retrieves a model with its artifact
	GetByVersion(ctx context.Context, version string) (*ModelRecord, error)

	// List returns model metadata without artifacts, newest first
	List(ctx context.Context) ([]*ModelRecord, error)
}

// CheckpointStore persists the position of the scoring stage in the log.
type CheckpointStore interface {
	Checkpoint(ctx context.Context, name string) (int64, error)
	SaveCheckpoint(ctx context.Context, name string, eventID int64) error
}

// FeatureExtractor builds the feature vector of a completed transaction
// from the read models.
type FeatureExtractor interface {
	Extract(ctx context.Context, transactionID string) (*Features, *readmodel.Transaction, error)
}
