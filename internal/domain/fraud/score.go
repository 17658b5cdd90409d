package fraud

import (
	"context"
	"time"
)

// RulesOnlyVersion is the model version recorded when no fitted model was
// available and only the rule overlay decided.
const RulesOnlyVersion = "rules-only"

// Score is the persisted verdict for one transaction. Both the model signal
// (IsFraud, AnomalyScore) and the rule signal (Reasons, RuleProbability) are
// kept; Flagged is their OR.
type Score struct {
	TransactionID    string
	AccountID        string
	FraudProbability float64
	RuleProbability  float64
	AnomalyScore     float64
	IsFraud          bool
	Flagged          bool
	ModelVersion     string
	Features         Features
	Reasons          []Reason
	ScoredAt         time.Time
}

// ReasonStrings returns the reason codes as plain strings
func (s *Score) ReasonStrings() []string {
	out := make([]string, 0, len(s.Reasons))
	for _, r := range s.Reasons {
		out = append(out, string(r))
	}
	return out
}

// Prediction is the anomaly model output for one vector.
type Prediction struct {
	AnomalyScore float64
	Probability  float64
	IsFraud      bool
}

// Detector is a fitted anomaly model loaded in memory.
type Detector interface {
	Version() string
	Predict(vector []float64) (Prediction, error)
}

// ModelProvider returns the active detector, or ErrScoringUnavailable when
// no model has been fitted.
type ModelProvider interface {
	Current(ctx context.Context) (Detector, error)
}

// ModelRecord is the metadata and serialized artifact of a fitted model.
type ModelRecord struct {
	Version         string
	Algorithm       string
	TrainedAt       time.Time
	TrainingSamples int
	Accuracy        float64
	Precision       float64
	Recall          float64
	F1              float64
	FeatureNames    []string
	Hyperparameters map[string]float64
	Artifact        []byte
	IsActive        bool
}
