package fraud

// Reason is a rule overlay code explaining why a transaction is risky,
// independent of the model score.
type Reason string

const (
	ReasonUnusualAmount           Reason = "unusual_amount"
	ReasonVelocityAnomaly         Reason = "velocity_anomaly"
	ReasonGeographicImpossibility Reason = "geographic_impossibility"
	ReasonSuspiciousTiming        Reason = "suspicious_timing"
	ReasonNewDevice               Reason = "new_device"
	ReasonUnusualLocation         Reason = "unusual_location"
)

// RuleResult is one fired rule.
type RuleResult struct {
	Reason Reason  `json:"reason"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

// RuleEvaluator runs the rule overlay over a feature vector. Results are
// returned in a fixed rule order and only for rules that fired.
type RuleEvaluator interface {
	Evaluate(f *Features) []RuleResult
}

// ReasonCodes returns the codes of the fired rules in order.
func ReasonCodes(results []RuleResult) []Reason {
	out := make([]Reason, 0, len(results))
	for _, r := range results {
		out = append(out, r.Reason)
	}
	return out
}

// RuleProbability combines fired rule weights as independent signals:
// 1 - Π(1 - w).
func RuleProbability(results []RuleResult) float64 {
	miss := 1.0
	for _, r := range results {
		miss *= 1 - r.Weight
	}
	return 1 - miss
}
