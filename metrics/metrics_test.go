package metrics_test

import (
	"testing"

	"github.com/nozzle/bhtsne/metrics"
	"github.com/nozzle/bhtsne/prob"
	"github.com/stretchr/testify/assert"
)

func twoPointMatrix(p01 float64) *prob.Matrix {
	return &prob.Matrix{
		N:        2,
		RowStart: []int32{0, 1, 2},
		Col:      []int32{1, 0},
		Val:      []float64{p01, p01},
	}
}

func TestLossProxyZeroWhenQMatchesP(t *testing.T) {
	// Choose y so that ||y0-y1||^2 makes q = p exactly; loss should be
	// near zero (not exactly zero due to the epsilon floor).
	p := 0.5
	// q = 1/(1+d2) = p  =>  d2 = 1/p - 1
	d2 := 1/p - 1
	y := []float64{0, 0, 0, 0}
	y[2] = d2 // set x-coordinate of point 1 so squared distance is d2
	m := twoPointMatrix(p)

	loss := metrics.LossProxy(y, 2, m)
	assert.InDelta(t, 0.0, loss, 1e-6)
}

func TestLossProxyPositiveWhenMismatched(t *testing.T) {
	m := twoPointMatrix(0.9)
	y := []float64{0, 0, 100, 100} // far apart: q near 0, P near 1 -> large loss
	loss := metrics.LossProxy(y, 2, m)
	assert.Greater(t, loss, 0.0)
}

func TestSilhouetteSeparatedClusters(t *testing.T) {
	// Two tight, well-separated clusters in 2-D.
	y := []float64{
		0, 0, 0.1, 0, 0, 0.1, 0.1, 0.1,
		10, 10, 10.1, 10, 10, 10.1, 10.1, 10.1,
	}
	labels := []int{0, 0, 0, 0, 1, 1, 1, 1}
	s := metrics.Silhouette(y, 2, labels)
	assert.Greater(t, s, 0.9)
}

func TestSilhouetteSingleClusterIsZero(t *testing.T) {
	y := []float64{0, 0, 1, 1, 2, 2}
	labels := []int{0, 0, 0}
	s := metrics.Silhouette(y, 2, labels)
	assert.Equal(t, 0.0, s)
}
