// Package profile derives the behavioral baseline of an account from its
// completed-transaction history. The computation depends only on the rows it
// is given, never on the wall clock.
package profile

import (
	"slices"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"fraud-ledger/internal/domain/readmodel"
	"fraud-ledger/internal/pkg/geo"
)

// Builder computes profiles. Hours of day are taken in loc.
type Builder struct {
	loc *time.Location
}

// NewBuilder returns a Builder bucketing hours in loc (UTC when nil).
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{loc: loc}
}

// Location returns the timezone hours are bucketed in.
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Compute returns the profile of accountID over history, in any order.
// Travel velocity pairs consecutive locations by initiation time, ties
// broken by initiating event id. An empty history yields an empty baseline.
func (b *Builder) Compute(accountID string, history []*readmodel.Transaction) *readmodel.Profile {
	p := &readmodel.Profile{
		AccountID:          accountID,
		TransactionCount:   len(history),
		HourHistogram:      map[int]int{},
		TypicalHours:       []int{},
		MerchantCategories: []string{},
		KnownDevices:       []string{},
	}
	if len(history) == 0 {
		return p
	}

	history = slices.Clone(history)
	sort.SliceStable(history, func(i, j int) bool {
		x, y := history[i], history[j]
		if !x.InitiatedAt.Equal(y.InitiatedAt) {
			return x.InitiatedAt.Before(y.InitiatedAt)
		}
		return x.InitiatedEventID < y.InitiatedEventID
	})

	amounts := make([]float64, 0, len(history))
	categories := map[string]struct{}{}
	devices := map[string]struct{}{}
	var points []geo.Point
	var pointTimes []time.Time

	for _, txn := range history {
		amounts = append(amounts, txn.Amount.InexactFloat64())
		p.HourHistogram[txn.InitiatedAt.In(b.loc).Hour()]++

		if txn.MerchantCategory != "" {
			categories[txn.MerchantCategory] = struct{}{}
		}
		if txn.DeviceID != "" {
			devices[txn.DeviceID] = struct{}{}
		}
		if txn.HasLocation() {
			points = append(points, geo.Point{Latitude: *txn.Latitude, Longitude: *txn.Longitude})
			pointTimes = append(pointTimes, txn.InitiatedAt)
		}
		if txn.CompletedAt != nil && (p.CreatedAt.IsZero() || txn.CompletedAt.Before(p.CreatedAt)) {
			p.CreatedAt = *txn.CompletedAt
		}
	}

	p.AvgAmount, p.StdAmount = stat.PopMeanStdDev(amounts, nil)
	p.MedianAmount = median(amounts)

	for h := range p.HourHistogram {
		p.TypicalHours = append(p.TypicalHours, h)
	}
	sort.Ints(p.TypicalHours)
	p.MerchantCategories = sortedKeys(categories)
	p.KnownDevices = sortedKeys(devices)

	if home, ok := geo.Centroid(points); ok {
		p.HomeLatitude = &home.Latitude
		p.HomeLongitude = &home.Longitude
		for _, pt := range points {
			if d := geo.DistanceKm(home, pt); d > p.TypicalRadiusKm {
				p.TypicalRadiusKm = d
			}
		}
	}

	for i := 1; i < len(points); i++ {
		dist := geo.DistanceKm(points[i-1], points[i])
		if v := geo.VelocityKmh(dist, pointTimes[i].Sub(pointTimes[i-1])); v > p.MaxVelocityKmh {
			p.MaxVelocityKmh = v
		}
	}

	return p
}

func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
