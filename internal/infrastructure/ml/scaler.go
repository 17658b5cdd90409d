package ml

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"fraud-ledger/internal/domain/fraud"
)

// StandardScaler centers each column on its mean and scales it to unit
// population variance. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler learns column statistics from rows
func FitScaler(rows [][]float64) *StandardScaler {
	if len(rows) == 0 {
		return &StandardScaler{}
	}
	dim := len(rows[0])
	s := &StandardScaler{Mean: make([]float64, dim), Std: make([]float64, dim)}
	col := make([]float64, len(rows))
	for j := range dim {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return s
}

// Transform returns a scaled copy of x
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", fraud.ErrFeatureVectorSize, len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}
