package dto

import (
	"time"
)

// FraudScoreResponse represents the fraud analysis of one transaction
type FraudScoreResponse struct {
	FraudProbability float64            `json:"fraud_probability"`
	RuleProbability  float64            `json:"rule_probability"`
	AnomalyScore     float64            `json:"anomaly_score"`
	IsFraud          bool               `json:"is_fraud"`
	Flagged          bool               `json:"is_flagged"`
	Reasons          []string           `json:"flagged_reasons"`
	ModelVersion     string             `json:"model_version"`
	Features         map[string]float64 `json:"features_analyzed"`
	ScoredAt         time.Time          `json:"scored_at"`
}

// TrainModelResponse describes a newly activated model
type TrainModelResponse struct {
	ModelVersion    string             `json:"model_version"`
	Algorithm       string             `json:"algorithm"`
	TrainingSamples int                `json:"training_samples"`
	Accuracy        float64            `json:"accuracy"`
	Precision       float64            `json:"precision"`
	Recall          float64            `json:"recall"`
	F1              float64            `json:"f1_score"`
	Hyperparameters map[string]float64 `json:"hyperparameters"`
	TrainedAt       time.Time          `json:"trained_at"`
}

// RescoreResponse summarizes a batch re-score
type RescoreResponse struct {
	Total          int            `json:"total"`
	Flagged        int            `json:"flagged"`
	NewlyFlagged   int            `json:"newly_flagged"`
	VerdictChanged int            `json:"verdict_changed"`
	ModelVersions  map[string]int `json:"model_versions"`
	LatencyMs      int64          `json:"latency_ms"`
}

// ProjectionResponse reports a projection pass
type ProjectionResponse struct {
	Projection string `json:"projection"`
	Applied    int    `json:"applied"`
	Skipped    int    `json:"skipped"`
	Checkpoint int64  `json:"checkpoint"`
}
