package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/config"
)

// Trainer fits a new anomaly model over every completed transaction and
// activates it.
type Trainer struct {
	readModels readmodel.Store
	extractor  fraud.FeatureExtractor
	scores     fraud.ScoreRepository
	models     fraud.ModelRepository
	registry   *Registry
	cfg        config.MLConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewTrainer creates a new trainer
func NewTrainer(
	rm readmodel.Store,
	extractor fraud.FeatureExtractor,
	scores fraud.ScoreRepository,
	models fraud.ModelRepository,
	registry *Registry,
	cfg config.MLConfig,
	logger *zap.Logger,
) *Trainer {
	return &Trainer{
		readModels: rm,
		extractor:  extractor,
		scores:     scores,
		models:     models,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.Named("trainer"),
		now:        time.Now,
	}
}

// Evaluation holds the agreement of model verdicts with flagged labels.
type Evaluation struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Train fits, evaluates and activates a new model
func (t *Trainer) Train(ctx context.Context) (*fraud.ModelRecord, error) {
	ids, err := t.readModels.ListScorableTransactionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list training transactions: %w", err)
	}
	if len(ids) < max(t.cfg.MinTrainingSamples, 2) {
		return nil, fmt.Errorf("%w: have %d completed transactions, need %d",
			fraud.ErrInsufficientTrainingData, len(ids), t.cfg.MinTrainingSamples)
	}

	rows := make([][]float64, 0, len(ids))
	labels := make([]bool, 0, len(ids))
	for _, id := range ids {
		f, _, err := t.extractor.Extract(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("extract features of %s: %w", id, err)
		}
		rows = append(rows, f.Vector())

		score, err := t.scores.Get(ctx, id)
		switch {
		case errors.Is(err, fraud.ErrScoreNotFound):
			labels = append(labels, false)
		case err != nil:
			return nil, fmt.Errorf("load label of %s: %w", id, err)
		default:
			labels = append(labels, score.Flagged)
		}
	}

	scaler := FitScaler(rows)
	scaled := make([][]float64, len(rows))
	for i, r := range rows {
		if scaled[i], err = scaler.Transform(r); err != nil {
			return nil, err
		}
	}

	params := ForestParams{
		Trees:         t.cfg.Trees,
		SampleSize:    t.cfg.SampleSize,
		Contamination: t.cfg.Contamination,
		Seed:          t.cfg.Seed,
	}
	forest := FitIsolationForest(scaled, params)

	trainedAt := t.now().UTC()
	model := &Model{
		ModelVersion: "if_" + trainedAt.Format("20060102T150405Z"),
		FeatureNames: fraud.FeatureNames(),
		Scaler:       scaler,
		Forest:       forest,
	}

	predicted := make([]bool, len(scaled))
	for i, r := range scaled {
		predicted[i] = forest.Score(r) > forest.Threshold
	}
	eval := Evaluate(labels, predicted)

	artifact, err := model.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	rec := &fraud.ModelRecord{
		Version:         model.ModelVersion,
		Algorithm:       Algorithm,
		TrainedAt:       trainedAt,
		TrainingSamples: len(rows),
		Accuracy:        eval.Accuracy,
		Precision:       eval.Precision,
		Recall:          eval.Recall,
		F1:              eval.F1,
		FeatureNames:    model.FeatureNames,
		Hyperparameters: map[string]float64{
			"n_estimators":  float64(params.Trees),
			"max_samples":   float64(forest.SampleSize),
			"contamination": params.Contamination,
			"random_state":  float64(params.Seed),
			"threshold":     forest.Threshold,
		},
		Artifact: artifact,
		IsActive: true,
	}
	if err := t.models.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save model %s: %w", rec.Version, err)
	}
	if t.registry != nil {
		t.registry.Use(model)
	}

	t.logger.Info("anomaly model trained",
		zap.String("model_version", rec.Version),
		zap.Int("samples", rec.TrainingSamples),
		zap.Float64("threshold", forest.Threshold),
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
		zap.Float64("f1", eval.F1),
	)
	return rec, nil
}

// Evaluate compares predicted verdicts with labels
func Evaluate(labels, predicted []bool) Evaluation {
	var tp, fp, tn, fn float64
	for i := range labels {
		switch {
		case predicted[i] && labels[i]:
			tp++
		case predicted[i]:
			fp++
		case labels[i]:
			fn++
		default:
			tn++
		}
	}
	var e Evaluation
	if total := tp + fp + tn + fn; total > 0 {
		e.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		e.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		e.Recall = tp / (tp + fn)
	}
	if e.Precision+e.Recall > 0 {
		e.F1 = 2 * e.Precision * e.Recall / (e.Precision + e.Recall)
	}
	return e
}
