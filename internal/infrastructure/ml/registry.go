package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fraud-ledger/internal/domain/fraud"
)

// Registry serves the active model, loading an artifact only when the
// active version changes.
type Registry struct {
	repo    fraud.ModelRepository
	enabled bool
	logger  *zap.Logger

	mu      sync.RWMutex
	current *Model
}

// NewRegistry creates a new model registry. A disabled registry always
// reports fraud.ErrScoringUnavailable.
func NewRegistry(repo fraud.ModelRepository, enabled bool, logger *zap.Logger) *Registry {
	return &Registry{repo: repo, enabled: enabled, logger: logger.Named("models")}
}

// Current returns the active detector
func (r *Registry) Current(ctx context.Context) (fraud.Detector, error) {
	if !r.enabled {
		return nil, fraud.ErrScoringUnavailable
	}
	version, err := r.repo.ActiveVersion(ctx)
	if errors.Is(err, fraud.ErrModelNotFound) {
		return nil, fraud.ErrScoringUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("resolve active model: %w", err)
	}

	r.mu.RLock()
	cached := r.current
	r.mu.RUnlock()
	if cached != nil && cached.ModelVersion == version {
		return cached, nil
	}

	rec, err := r.repo.GetByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", version, err)
	}
	model, err := UnmarshalModel(rec.Artifact)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", version, err)
	}
	model.ModelVersion = rec.Version

	r.mu.Lock()
	r.current = model
	r.mu.Unlock()

	r.logger.Info("anomaly model loaded",
		zap.String("model_version", rec.Version),
		zap.Int("training_samples", rec.TrainingSamples),
	)
	return model, nil
}

// Use installs a freshly trained model so the next call does not reload it
func (r *Registry) Use(model *Model) {
	r.mu.Lock()
	r.current = model
	r.mu.Unlock()
}
