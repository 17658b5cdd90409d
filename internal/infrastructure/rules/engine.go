package rules

import (
	"fmt"
	"slices"

	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/pkg/config"
)

// Rule is one overlay check. Check reports whether it fired and a short
// human-readable detail.
type Rule struct {
	Reason fraud.Reason
	Weight float64
	Check  func(f *fraud.Features) (bool, string)
}

// Engine implements fraud.RuleEvaluator over a fixed, ordered rule set
type Engine struct {
	rules []Rule
}

// NewEngine builds the overlay from configured thresholds and weights
func NewEngine(cfg config.FraudConfig) *Engine {
	multiplier := cfg.UnusualAmountMultiplier
	maxTx := float64(cfg.VelocityMaxTransactions)
	travelKmh := cfg.ImpossibleTravelKmh
	locationKm := cfg.UnusualLocationKm
	hours := slices.Clone(cfg.SuspiciousHours)

	return &Engine{rules: []Rule{
		{
			Reason: fraud.ReasonUnusualAmount,
			Weight: cfg.AmountWeight,
			Check: func(f *fraud.Features) (bool, string) {
				if f.ProfileAvgAmount <= 0 || f.Amount <= multiplier*f.ProfileAvgAmount {
					return false, ""
				}
				return true, fmt.Sprintf("amount %.2f exceeds %.1fx average %.2f", f.Amount, multiplier, f.ProfileAvgAmount)
			},
		},
		{
			Reason: fraud.ReasonVelocityAnomaly,
			Weight: cfg.VelocityWeight,
			Check: func(f *fraud.Features) (bool, string) {
				if f.TransactionsLastHour < maxTx {
					return false, ""
				}
				return true, fmt.Sprintf("%.0f transactions in window", f.TransactionsLastHour)
			},
		},
		{
			Reason: fraud.ReasonGeographicImpossibility,
			Weight: cfg.GeographicWeight,
			Check: func(f *fraud.Features) (bool, string) {
				if !f.HasPriorLocation || f.TravelVelocityKmh <= travelKmh {
					return false, ""
				}
				return true, fmt.Sprintf("implied travel at %.0f km/h", f.TravelVelocityKmh)
			},
		},
		{
			Reason: fraud.ReasonSuspiciousTiming,
			Weight: cfg.TimingWeight,
			Check: func(f *fraud.Features) (bool, string) {
				if !slices.Contains(hours, int(f.HourOfDay)) {
					return false, ""
				}
				return true, fmt.Sprintf("initiated at hour %.0f", f.HourOfDay)
			},
		},
		{
			Reason: fraud.ReasonNewDevice,
			Weight: cfg.DeviceWeight,
			Check: func(f *fraud.Features) (bool, string) {
				return f.IsNewDevice == 1, "device not seen for this account"
			},
		},
		{
			Reason: fraud.ReasonUnusualLocation,
			Weight: cfg.LocationWeight,
			Check: func(f *fraud.Features) (bool, string) {
				if !f.HasPriorLocation || f.DistanceFromLastKm <= locationKm {
					return false, ""
				}
				return true, fmt.Sprintf("%.0f km from previous location", f.DistanceFromLastKm)
			},
		},
	}}
}

// Evaluate runs every rule in order and returns those that fired
func (e *Engine) Evaluate(f *fraud.Features) []fraud.RuleResult {
	results := make([]fraud.RuleResult, 0, len(e.rules))
	for _, r := range e.rules {
		if fired, detail := r.Check(f); fired {
			results = append(results, fraud.RuleResult{Reason: r.Reason, Weight: r.Weight, Detail: detail})
		}
	}
	return results
}

// Reasons returns the codes of the configured rules in evaluation order
func (e *Engine) Reasons() []fraud.Reason {
	out := make([]fraud.Reason, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Reason
	}
	return out
}
