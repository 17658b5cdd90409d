package fraud

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/fraud"
)

// Rescorer re-runs scoring over every completed transaction
type Rescorer interface {
	Rescore(ctx context.Context) (*fraud.RescoreSummary, error)
}

// RescoreUseCase re-scores history with the current model
type RescoreUseCase struct {
	rescorer Rescorer
	pipeline Pipeline
	logger   *zap.Logger
}

// NewRescoreUseCase creates a new rescore use case
func NewRescoreUseCase(rescorer Rescorer, pipeline Pipeline, logger *zap.Logger) *RescoreUseCase {
	return &RescoreUseCase{
		rescorer: rescorer,
		pipeline: pipeline,
		logger:   logger.Named("rescore"),
	}
}

// Execute re-scores every completed transaction, then projects the flags
// the pass raised. Transaction rows are only touched through those flags.
func (uc *RescoreUseCase) Execute(ctx context.Context) (*dto.RescoreResponse, error) {
	startTime := time.Now()

	if _, err := uc.pipeline.Run(ctx); err != nil {
		return nil, fmt.Errorf("catch up before rescoring: %w", err)
	}

	summary, err := uc.rescorer.Rescore(ctx)
	if err != nil {
		return nil, err
	}

	if err := uc.pipeline.Advance(ctx); err != nil {
		uc.logger.Warn("projection pass incomplete after rescoring", zap.Error(err))
	}

	return &dto.RescoreResponse{
		Total:          summary.Total,
		Flagged:        summary.Flagged,
		NewlyFlagged:   summary.NewlyFlagged,
		VerdictChanged: summary.VerdictChanged,
		ModelVersions:  summary.ModelVersions,
		LatencyMs:      time.Since(startTime).Milliseconds(),
	}, nil
}
