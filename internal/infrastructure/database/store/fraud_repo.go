package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fraud-ledger/internal/domain/fraud"
)

// ScoreRepository implements fraud.ScoreRepository
type ScoreRepository struct {
	db *gorm.DB
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(client *Client) *ScoreRepository {
	return &ScoreRepository{db: client.DB()}
}

// Get retrieves the score of a transaction
func (r *ScoreRepository) Get(ctx context.Context, transactionID string) (*fraud.Score, error) {
	var model FraudScoreModel
	if err := r.db.WithContext(ctx).First(&model, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fraud.ErrScoreNotFound
		}
		return nil, err
	}
	return modelToScore(&model)
}

// Upsert inserts or overwrites the score of a transaction
func (r *ScoreRepository) Upsert(ctx context.Context, score *fraud.Score) error {
	features, err := json.Marshal(score.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	reasons, err := json.Marshal(score.ReasonStrings())
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}

	model := &FraudScoreModel{
		TransactionID:    score.TransactionID,
		AccountID:        score.AccountID,
		FraudProbability: score.FraudProbability,
		RuleProbability:  score.RuleProbability,
		AnomalyScore:     score.AnomalyScore,
		IsFraud:          score.IsFraud,
		Flagged:          score.Flagged,
		ModelVersion:     score.ModelVersion,
		Features:         string(features),
		Reasons:          string(reasons),
		ScoredAt:         score.ScoredAt.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
}

// ListFlagged returns flagged scores, most recent first
func (r *ScoreRepository) ListFlagged(ctx context.Context, limit int) ([]*fraud.Score, error) {
	var models []FraudScoreModel
	if err := r.db.WithContext(ctx).
		Where("flagged = ?", true).
		Order("scored_at DESC").
		Order("transaction_id ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	scores := make([]*fraud.Score, 0, len(models))
	for i := range models {
		s, err := modelToScore(&models[i])
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, nil
}

func modelToScore(m *FraudScoreModel) (*fraud.Score, error) {
	s := &fraud.Score{
		TransactionID:    m.TransactionID,
		AccountID:        m.AccountID,
		FraudProbability: m.FraudProbability,
		RuleProbability:  m.RuleProbability,
		AnomalyScore:     m.AnomalyScore,
		IsFraud:          m.IsFraud,
		Flagged:          m.Flagged,
		ModelVersion:     m.ModelVersion,
		ScoredAt:         m.ScoredAt.UTC(),
	}
	if err := json.Unmarshal([]byte(m.Features), &s.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", m.TransactionID, err)
	}
	var reasons []string
	if err := json.Unmarshal([]byte(m.Reasons), &reasons); err != nil {
		return nil, fmt.Errorf("decode reasons of %s: %w", m.TransactionID, err)
	}
	s.Reasons = make([]fraud.Reason, 0, len(reasons))
	for _, r := range reasons {
		s.Reasons = append(s.Reasons, fraud.Reason(r))
	}
	return s, nil
}

// ModelRepository implements fraud.ModelRepository
type ModelRepository struct {
	db *gorm.DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(client *Client) *ModelRepository {
	return &ModelRepository{db: client.DB()}
}

// Save stores a fitted model, deactivating the others when it is active
func (r *ModelRepository) Save(ctx context.Context, rec *fraud.ModelRecord) error {
	names, err := json.Marshal(rec.FeatureNames)
	if err != nil {
		return fmt.Errorf("encode feature names: %w", err)
	}
	params, err := json.Marshal(rec.Hyperparameters)
	if err != nil {
		return fmt.Errorf("encode hyperparameters: %w", err)
	}

	model := &MLModelModel{
		Version:         rec.Version,
		Algorithm:       rec.Algorithm,
		TrainedAt:       rec.TrainedAt.UTC(),
		TrainingSamples: rec.TrainingSamples,
		Accuracy:        rec.Accuracy,
		Precision:       rec.Precision,
		Recall:          rec.Recall,
		F1:              rec.F1,
		FeatureNames:    string(names),
		Hyperparameters: string(params),
		Artifact:        rec.Artifact,
		IsActive:        rec.IsActive,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.IsActive {
			if err := tx.Model(&MLModelModel{}).
				Where("is_active = ? AND version <> ?", true, rec.Version).
				Update("is_active", false).Error; err != nil {
				return fmt.Errorf("deactivate models: %w", err)
			}
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
	})
}

// ActiveVersion returns the version of the active model
func (r *ModelRepository) ActiveVersion(ctx context.Context) (string, error) {
	var versions []string
	if err := r.db.WithContext(ctx).Model(&MLModelModel{}).
		Where("is_active = ?", true).
		Order("trained_at DESC").
		Limit(1).
		Pluck("version", &versions).Error; err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fraud.ErrModelNotFound
	}
	return versions[0], nil
}

// GetByVersion retrieves a model with its artifact
func (r *ModelRepository) GetByVersion(ctx context.Context, version string) (*fraud.ModelRecord, error) {
	var model MLModelModel
	if err := r.db.WithContext(ctx).First(&model, "version = ?", version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fraud.ErrModelNotFound
		}
		return nil, err
	}
	return modelToRecord(&model, true)
}

// List returns model metadata, newest first
func (r *ModelRepository) List(ctx context.Context) ([]*fraud.ModelRecord, error) {
	var models []MLModelModel
	if err := r.db.WithContext(ctx).
		Omit("artifact").
		Order("trained_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*fraud.ModelRecord, 0, len(models))
	for i := range models {
		rec, err := modelToRecord(&models[i], false)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func modelToRecord(m *MLModelModel, withArtifact bool) (*fraud.ModelRecord, error) {
	rec := &fraud.ModelRecord{
		Version:         m.Version,
		Algorithm:       m.Algorithm,
		TrainedAt:       m.TrainedAt.UTC(),
		TrainingSamples: m.TrainingSamples,
		Accuracy:        m.Accuracy,
		Precision:       m.Precision,
		Recall:          m.Recall,
		F1:              m.F1,
		IsActive:        m.IsActive,
	}
	if withArtifact {
		rec.Artifact = m.Artifact
	}
	if err := json.Unmarshal([]byte(m.FeatureNames), &rec.FeatureNames); err != nil {
		return nil, fmt.Errorf("decode feature names of %s: %w", m.Version, err)
	}
	if err := json.Unmarshal([]byte(m.Hyperparameters), &rec.Hyperparameters); err != nil {
		return nil, fmt.Errorf("decode hyperparameters of %s: %w", m.Version, err)
	}
	return rec, nil
}
