package fraud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fraud-ledger/internal/application/dto"
	"fraud-ledger/internal/domain/fraud"
)

// Pipeline drives projections and the scoring stage
type Pipeline interface {
	Advance(ctx context.Context) error
	Run(ctx context.Context) (fraud.StageResult, error)
}

// Trainer fits and activates a new anomaly model
type Trainer interface {
	Train(ctx context.Context) (*fraud.ModelRecord, error)
}

// TrainModelUseCase fits a model over every completed transaction
type TrainModelUseCase struct {
	trainer  Trainer
	pipeline Pipeline
	logger   *zap.Logger
}

// NewTrainModelUseCase creates a new train model use case
func NewTrainModelUseCase(trainer Trainer, pipeline Pipeline, logger *zap.Logger) *TrainModelUseCase {
	return &TrainModelUseCase{
		trainer:  trainer,
		pipeline: pipeline,
		logger:   logger.Named("train"),
	}
}

// Execute catches the read models and scores up with the log, so labels
// reflect every flag raised so far, then trains
func (uc *TrainModelUseCase) Execute(ctx context.Context) (*dto.TrainModelResponse, error) {
	if _, err := uc.pipeline.Run(ctx); err != nil {
		return nil, fmt.Errorf("catch up before training: %w", err)
	}

	record, err := uc.trainer.Train(ctx)
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	uc.logger.Info("model activated",
		zap.String("model_version", record.Version),
		zap.Int("training_samples", record.TrainingSamples),
		zap.Float64("f1", record.F1),
	)
	return dto.FromModel(record), nil
}
