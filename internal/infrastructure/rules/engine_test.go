package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/pkg/config"
)

func newEngine() *Engine {
	return NewEngine(config.DefaultConfig().Fraud)
}

func TestEngine_NoHistoryNothingFires(t *testing.T) {
	results := newEngine().Evaluate(&fraud.Features{Amount: 10000, HourOfDay: 14, TransactionsLastHour: 1})
	assert.Empty(t, results)
}

func TestEngine_Rules(t *testing.T) {
	tests := []struct {
		name     string
		features fraud.Features
		want     []fraud.Reason
	}{
		{
			name:     "amount over three times average",
			features: fraud.Features{Amount: 500, ProfileAvgAmount: 50, HasHistory: true, HourOfDay: 12, TransactionsLastHour: 1},
			want:     []fraud.Reason{fraud.ReasonUnusualAmount},
		},
		{
			name:     "amount exactly three times average",
			features: fraud.Features{Amount: 150, ProfileAvgAmount: 50, HasHistory: true, HourOfDay: 12, TransactionsLastHour: 1},
			want:     []fraud.Reason{},
		},
		{
			name:     "third transaction in the hour",
			features: fraud.Features{Amount: 20, ProfileAvgAmount: 20, HasHistory: true, HourOfDay: 12, TransactionsLastHour: 3},
			want:     []fraud.Reason{fraud.ReasonVelocityAnomaly},
		},
		{
			name: "600 km in 10 minutes",
			features: fraud.Features{
				Amount: 20, ProfileAvgAmount: 20, HasHistory: true, HourOfDay: 12, TransactionsLastHour: 2,
				HasPriorLocation: true, DistanceFromLastKm: 600, TravelVelocityKmh: 3600,
			},
			want: []fraud.Reason{fraud.ReasonGeographicImpossibility},
		},
		{
			name:     "four in the morning",
			features: fraud.Features{Amount: 20, HourOfDay: 4, TransactionsLastHour: 1},
			want:     []fraud.Reason{fraud.ReasonSuspiciousTiming},
		},
		{
			name:     "six in the morning",
			features: fraud.Features{Amount: 20, HourOfDay: 6, TransactionsLastHour: 1},
			want:     []fraud.Reason{},
		},
		{
			name:     "unknown device",
			features: fraud.Features{Amount: 20, ProfileAvgAmount: 20, HasHistory: true, HourOfDay: 12, IsNewDevice: 1},
			want:     []fraud.Reason{fraud.ReasonNewDevice},
		},
		{
			name: "far but plausible travel",
			features: fraud.Features{
				Amount: 20, HourOfDay: 12, HasPriorLocation: true, DistanceFromLastKm: 3900, TravelVelocityKmh: 300,
			},
			want: []fraud.Reason{fraud.ReasonUnusualLocation},
		},
		{
			name: "everything at once keeps rule order",
			features: fraud.Features{
				Amount: 900, ProfileAvgAmount: 40, HasHistory: true, TransactionsLastHour: 4,
				HasPriorLocation: true, DistanceFromLastKm: 1200, TravelVelocityKmh: 7200,
				HourOfDay: 3, IsNewDevice: 1,
			},
			want: []fraud.Reason{
				fraud.ReasonUnusualAmount,
				fraud.ReasonVelocityAnomaly,
				fraud.ReasonGeographicImpossibility,
				fraud.ReasonSuspiciousTiming,
				fraud.ReasonNewDevice,
				fraud.ReasonUnusualLocation,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fraud.ReasonCodes(newEngine().Evaluate(&tt.features))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_RuleProbability(t *testing.T) {
	results := newEngine().Evaluate(&fraud.Features{
		Amount: 500, ProfileAvgAmount: 50, HasHistory: true, HourOfDay: 4, TransactionsLastHour: 1,
	})
	assert.Len(t, results, 2)
	// 1 - (1-0.35)(1-0.15)
	assert.InDelta(t, 0.4475, fraud.RuleProbability(results), 1e-9)
}

func TestEngine_CustomThresholds(t *testing.T) {
	cfg := config.DefaultConfig().Fraud
	cfg.SuspiciousHours = []int{22, 23}
	cfg.VelocityMaxTransactions = 5

	e := NewEngine(cfg)
	assert.Empty(t, e.Evaluate(&fraud.Features{HourOfDay: 4, TransactionsLastHour: 4}))
	assert.Equal(t,
		[]fraud.Reason{fraud.ReasonVelocityAnomaly, fraud.ReasonSuspiciousTiming},
		fraud.ReasonCodes(e.Evaluate(&fraud.Features{HourOfDay: 23, TransactionsLastHour: 5})),
	)
}
