package ml

import (
	"encoding/json"
	"fmt"

	"fraud-ledger/internal/domain/fraud"
)

// Algorithm is the name recorded for models fitted by this package.
const Algorithm = "isolation_forest"

// Model is a fitted scaler and isolation forest. It implements
// fraud.Detector.
type Model struct {
	ModelVersion string           `json:"version"`
	FeatureNames []string         `json:"feature_names"`
	Scaler       *StandardScaler  `json:"scaler"`
	Forest       *IsolationForest `json:"forest"`
}

// Version returns the model version
func (m *Model) Version() string {
	return m.ModelVersion
}

// Predict scores one raw feature vector. The anomaly score is mapped to a
// probability that crosses 0.5 exactly at the decision threshold.
func (m *Model) Predict(vector []float64) (fraud.Prediction, error) {
	if len(vector) != fraud.FeatureCount {
		return fraud.Prediction{}, fmt.Errorf("%w: got %d, want %d", fraud.ErrFeatureVectorSize, len(vector), fraud.FeatureCount)
	}
	scaled, err := m.Scaler.Transform(vector)
	if err != nil {
		return fraud.Prediction{}, err
	}

	score := m.Forest.Score(scaled)
	thr := m.Forest.Threshold
	pred := fraud.Prediction{AnomalyScore: score, IsFraud: score > thr}
	switch {
	case pred.IsFraud && thr < 1:
		pred.Probability = 0.5 + 0.5*(score-thr)/(1-thr)
	case pred.IsFraud:
		pred.Probability = 1
	case thr > 0:
		pred.Probability = 0.5 * score / thr
	}
	pred.Probability = clamp01(pred.Probability)
	return pred, nil
}

// Marshal serializes the model artifact
func (m *Model) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalModel restores a model artifact
func UnmarshalModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if m.Scaler == nil || m.Forest == nil {
		return nil, fmt.Errorf("decode model artifact: missing scaler or forest")
	}
	if len(m.Scaler.Mean) != fraud.FeatureCount {
		return nil, fmt.Errorf("%w: artifact has %d features", fraud.ErrFeatureVectorSize, len(m.Scaler.Mean))
	}
	return &m, nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
