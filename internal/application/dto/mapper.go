package dto

import (
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/readmodel"
)

// FromTransaction maps a projected transaction to its response
func FromTransaction(t *readmodel.Transaction) *TransactionResponse {
	return &TransactionResponse{
		TransactionID:    t.TransactionID,
		AccountID:        t.AccountID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		MerchantName:     t.MerchantName,
		MerchantCategory: t.MerchantCategory,
		Status:           string(t.Status),
		FailureReason:    t.FailureReason,
		InitiatedAt:      t.InitiatedAt,
		CompletedAt:      t.CompletedAt,
		FailedAt:         t.FailedAt,
		Latitude:         t.Latitude,
		Longitude:        t.Longitude,
		DeviceID:         t.DeviceID,
		FraudFlags:       t.FraudFlags,
	}
}

// FromScore maps a persisted fraud score to its response
func FromScore(s *fraud.Score) *FraudScoreResponse {
	names := fraud.FeatureNames()
	vector := s.Features.Vector()
	features := make(map[string]float64, len(names))
	for i, name := range names {
		features[name] = vector[i]
	}
	return &FraudScoreResponse{
		FraudProbability: s.FraudProbability,
		RuleProbability:  s.RuleProbability,
		AnomalyScore:     s.AnomalyScore,
		IsFraud:          s.IsFraud,
		Flagged:          s.Flagged,
		Reasons:          s.ReasonStrings(),
		ModelVersion:     s.ModelVersion,
		Features:         features,
		ScoredAt:         s.ScoredAt,
	}
}

// FromAccount maps a projected account and its optional profile
func FromAccount(a *readmodel.Account, p *readmodel.Profile) *AccountResponse {
	resp := &AccountResponse{
		AccountID:          a.AccountID,
		Email:              a.Email,
		Status:             a.Status,
		CreatedAt:          a.CreatedAt,
		TotalTransactions:  a.TotalTransactions,
		TotalVolume:        a.TotalVolume,
		LastTransactionAt:  a.LastTransactionAt,
		LastLoginAt:        a.LastLoginAt,
		FraudFlags:         a.FraudFlags,
		RecentTransactions: []*TransactionResponse{},
	}
	if p != nil {
		resp.Profile = &ProfileResponse{
			TransactionCount:   p.TransactionCount,
			AvgAmount:          p.AvgAmount,
			MedianAmount:       p.MedianAmount,
			StdAmount:          p.StdAmount,
			TypicalHours:       p.TypicalHours,
			MerchantCategories: p.MerchantCategories,
			HomeLatitude:       p.HomeLatitude,
			HomeLongitude:      p.HomeLongitude,
			TypicalRadiusKm:    p.TypicalRadiusKm,
			MaxVelocityKmh:     p.MaxVelocityKmh,
			KnownDevices:       p.KnownDevices,
		}
	}
	return resp
}

// FromModel maps a model record to the training response
func FromModel(m *fraud.ModelRecord) *TrainModelResponse {
	return &TrainModelResponse{
		ModelVersion:    m.Version,
		Algorithm:       m.Algorithm,
		TrainingSamples: m.TrainingSamples,
		Accuracy:        m.Accuracy,
		Precision:       m.Precision,
		Recall:          m.Recall,
		F1:              m.F1,
		Hyperparameters: m.Hyperparameters,
		TrainedAt:       m.TrainedAt,
	}
}
