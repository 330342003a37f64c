// Package metrics provides optional instrumentation over an embedding
// produced by the engine: a KL-divergence loss proxy restricted to the
// sparse P support, and a silhouette score for cluster-separation
// checks. Neither is on the hot path of Step; both are read-only
// diagnostics a caller can run between steps.
package metrics

import (
	"math"

	"github.com/nozzle/bhtsne/prob"
	"gonum.org/v1/gonum/stat"
)

// epsilon avoids log(0) / division-by-zero when Q underflows to 0 for a
// pair that still carries P mass.
const epsilon = 1e-12

// LossProxy computes ΣP·log(P/(Q+ε)) over P's sparse support, where
// Q = q*_ij = 1/(1+||y_i-y_j||²) (unnormalized, matching the gradient
// evaluator's convention — this is a monitoring proxy for the true
// normalized KL divergence, not the KL divergence itself).
func LossProxy(y []float64, dim int, p *prob.Matrix) float64 {
	total := 0.0
	for i := 0; i < p.N; i++ {
		cols, vals := p.Row(i)
		yi := y[i*dim : i*dim+dim]
		for t, j := range cols {
			pij := vals[t]
			if pij <= 0 {
				continue
			}
			yj := y[int(j)*dim : int(j)*dim+dim]
			d2 := 0.0
			for d := 0; d < dim; d++ {
				diff := yi[d] - yj[d]
				d2 += diff * diff
			}
			q := 1 / (1 + d2)
			total += pij * math.Log(pij/(q+epsilon))
		}
	}
	return total
}

// Silhouette computes the mean silhouette coefficient over an embedding
// y (row-major N*dim) given integer cluster labels of length N. Distances
// are Euclidean in embedding space; a(i) is the mean intra-cluster
// distance, b(i) the mean distance to the nearest other cluster.
func Silhouette(y []float64, dim int, labels []int) float64 {
	n := len(labels)
	if n < 2 {
		return 0
	}

	clusters := make(map[int][]int)
	for i, l := range labels {
		clusters[l] = append(clusters[l], i)
	}
	if len(clusters) < 2 {
		return 0
	}

	point := func(i int) []float64 { return y[i*dim : i*dim+dim] }
	dist := func(i, j int) float64 {
		a, b := point(i), point(j)
		d2 := 0.0
		for d := 0; d < dim; d++ {
			diff := a[d] - b[d]
			d2 += diff * diff
		}
		return math.Sqrt(d2)
	}
	meanDistTo := func(i int, group []int) float64 {
		ds := make([]float64, 0, len(group))
		for _, j := range group {
			if j == i {
				continue
			}
			ds = append(ds, dist(i, j))
		}
		if len(ds) == 0 {
			return 0
		}
		return stat.Mean(ds, nil)
	}

	scores := make([]float64, 0, n)
	for i, li := range labels {
		own := clusters[li]
		a := meanDistTo(i, own)

		b := math.Inf(1)
		for lj, group := range clusters {
			if lj == li {
				continue
			}
			if d := meanDistTo(i, group); d < b {
				b = d
			}
		}

		m := math.Max(a, b)
		if m == 0 {
			scores = append(scores, 0)
			continue
		}
		scores = append(scores, (b-a)/m)
	}
	return stat.Mean(scores, nil)
}
