package fraud

// FeatureCount is the dimension of the model input vector
const FeatureCount = 11

// Features is the behavioral feature vector of one transaction, plus the
// baseline values the rule overlay compares against.
type Features struct {
	Amount                float64 `json:"amount"`
	AmountZScore          float64 `json:"amount_zscore"`
	TransactionsLastHour  float64 `json:"transactions_last_hour"`
	DistanceFromLastKm    float64 `json:"distance_from_last_km"`
	TravelVelocityKmh     float64 `json:"travel_velocity_kmh"`
	HourOfDay             float64 `json:"hour_of_day"`
	DayOfWeek             float64 `json:"day_of_week"`
	IsNewMerchantCategory float64 `json:"is_new_merchant_category"`
	IsNewDevice           float64 `json:"is_new_device"`
	AccountAgeDays        float64 `json:"account_age_days"`
	LifetimeTransactions  float64 `json:"lifetime_transactions"`

	// Baseline context, not fed to the model
	ProfileAvgAmount float64 `json:"profile_avg_amount"`
	ProfileStdAmount float64 `json:"profile_std_amount"`
	HasHistory       bool    `json:"has_history"`
	HasPriorLocation bool    `json:"has_prior_location"`
}

// FeatureNames returns the model input names in vector order.
func FeatureNames() []string {
	return []string{
		"amount",
		"amount_zscore",
		"transactions_last_hour",
		"distance_from_last_km",
		"travel_velocity_kmh",
		"hour_of_day",
		"day_of_week",
		"is_new_merchant_category",
		"is_new_device",
		"account_age_days",
		"lifetime_transactions",
	}
}

// Vector returns the model input in FeatureNames order.
func (f *Features) Vector() []float64 {
	return []float64{
		f.Amount,
		f.AmountZScore,
		f.TransactionsLastHour,
		f.DistanceFromLastKm,
		f.TravelVelocityKmh,
		f.HourOfDay,
		f.DayOfWeek,
		f.IsNewMerchantCategory,
		f.IsNewDevice,
		f.AccountAgeDays,
		f.LifetimeTransactions,
	}
}

// Flag converts a boolean to its 0/1 feature encoding.
func Flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
