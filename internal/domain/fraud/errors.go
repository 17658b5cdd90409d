package fraud

import "errors"

var (
	// Scoring errors
	ErrScoringUnavailable      = errors.New("no fitted anomaly model available")
	ErrTransactionNotCompleted = errors.New("transaction has not completed")
	ErrFeatureVectorSize       = errors.New("feature vector has the wrong dimension")

	// Persistence errors
	ErrScoreNotFound = errors.New("fraud score not found")
	ErrModelNotFound = errors.New("anomaly model not found")

	// Training errors
	ErrInsufficientTrainingData = errors.New("insufficient data to train the anomaly model")
)
