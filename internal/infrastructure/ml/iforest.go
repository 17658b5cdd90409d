package ml

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

const eulerGamma = 0.5772156649

// ForestParams configures isolation forest training.
type ForestParams struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          uint64
}

// isoNode is one node of a flattened isolation tree. Leaves have
// Left == -1 and record how many training rows reached them.
type isoNode struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int     `json:"l"`
	Right   int     `json:"r"`
	Size    int     `json:"n"`
}

type isoTree struct {
	Nodes []isoNode `json:"nodes"`
}

// IsolationForest scores points by how quickly random axis-aligned splits
// isolate them. Short average paths mean anomalous points.
type IsolationForest struct {
	Trees      []isoTree `json:"trees"`
	SampleSize int       `json:"sample_size"`
	Threshold  float64   `json:"threshold"`
}

// FitIsolationForest grows the forest on rows and sets the decision
// threshold at the (1 - contamination) quantile of the training scores.
func FitIsolationForest(rows [][]float64, p ForestParams) *IsolationForest {
	psi := min(p.SampleSize, len(rows))
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	limit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	f := &IsolationForest{SampleSize: psi, Trees: make([]isoTree, 0, p.Trees)}
	for range p.Trees {
		sample := make([][]float64, psi)
		for i, idx := range rng.Perm(len(rows))[:psi] {
			sample[i] = rows[idx]
		}
		t := isoTree{}
		t.grow(rng, sample, 0, limit)
		f.Trees = append(f.Trees, t)
	}

	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = f.Score(r)
	}
	slices.Sort(scores)
	f.Threshold = stat.Quantile(1-p.Contamination, stat.Empirical, scores, nil)
	return f
}

func (t *isoTree) grow(rng *rand.Rand, rows [][]float64, depth, limit int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, isoNode{Left: -1, Right: -1, Size: len(rows)})
	if depth >= limit || len(rows) <= 1 {
		return idx
	}

	// only features that can still separate the rows
	var candidates []int
	for j := range rows[0] {
		lo, hi := bounds(rows, j)
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return idx
	}

	feature := candidates[rng.IntN(len(candidates))]
	lo, hi := bounds(rows, feature)
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := t.grow(rng, left, depth+1, limit)
	r := t.grow(rng, right, depth+1, limit)
	t.Nodes[idx] = isoNode{Feature: feature, Split: split, Left: l, Right: r, Size: len(rows)}
	return idx
}

func (t *isoTree) pathLength(x []float64) float64 {
	depth := 0
	n := t.Nodes[0]
	for n.Left >= 0 {
		if x[n.Feature] < n.Split {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
		depth++
	}
	return float64(depth) + averagePath(n.Size)
}

// Score returns the anomaly score in (0, 1]; values near 1 are anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].pathLength(x)
	}
	mean := sum / float64(len(f.Trees))
	c := averagePath(f.SampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

// averagePath is the expected path length of an unsuccessful search in a
// binary search tree of n points.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func bounds(rows [][]float64, j int) (lo, hi float64) {
	lo, hi = rows[0][j], rows[0][j]
	for _, r := range rows[1:] {
		lo = math.Min(lo, r[j])
		hi = math.Max(hi, r[j])
	}
	return lo, hi
}
