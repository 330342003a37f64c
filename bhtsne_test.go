package bhtsne_test

import (
	"math"
	"testing"

	"github.com/nozzle/bhtsne"
	"github.com/nozzle/bhtsne/knn"
	"github.com/nozzle/bhtsne/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteKNN builds an exact k-NN table over Euclidean distance in the
// original feature space, for test fixtures.
func bruteKNN(data [][]float64, k int) knn.Table {
	n := len(data)
	dist := func(a, b []float64) float64 {
		d2 := 0.0
		for i := range a {
			diff := a[i] - b[i]
			d2 += diff * diff
		}
		return math.Sqrt(d2)
	}

	table := make(knn.Table, n)
	for i := 0; i < n; i++ {
		type cand struct {
			idx int
			d   float64
		}
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			cands = append(cands, cand{j, dist(data[i], data[j])})
		}
		for a := 1; a < len(cands); a++ {
			for b := a; b > 0 && cands[b-1].d > cands[b].d; b-- {
				cands[b-1], cands[b] = cands[b], cands[b-1]
			}
		}
		kk := k
		if kk > len(cands) {
			kk = len(cands)
		}
		idx := make([]int32, kk)
		d := make([]float64, kk)
		for t := 0; t < kk; t++ {
			idx[t] = int32(cands[t].idx)
			d[t] = cands[t].d
		}
		table[i] = knn.Row{Index: idx, Dist: d}
	}
	return table
}

func TestNewRejectsUnsupportedDimension(t *testing.T) {
	_, err := bhtsne.New(bhtsne.Config{Dim: 4})
	assert.ErrorIs(t, err, bhtsne.ErrUnsupportedDimension)
}

func TestStepBeforeInitFails(t *testing.T) {
	cfg := bhtsne.DefaultConfig()
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Step(), bhtsne.ErrUninitialized)
}

func TestInitDataDistRejectsInvalidNeighbors(t *testing.T) {
	cfg := bhtsne.DefaultConfig()
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)

	table := knn.Table{
		{Index: []int32{1}, Dist: []float64{1}},
		{Index: []int32{0, 1}, Dist: []float64{1, 1}}, // ragged, and self-reference
	}
	err = eng.InitDataDist(table)
	assert.Error(t, err)
}

// Four corner points, 250 steps: the final embedding must be finite
// and zero-mean per column.
func TestCornersFiniteAndZeroMean(t *testing.T) {
	data := [][]float64{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	table := bruteKNN(data, 3)

	cfg := bhtsne.DefaultConfig()
	cfg.Dim = 2
	cfg.Perplexity = 2
	cfg.Seed = 42
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.InitDataDist(table))

	for i := 0; i < 250; i++ {
		require.NoError(t, eng.Step())
	}

	y := eng.GetSolution()
	n, dim := 4, 2
	for _, v := range y {
		assert.False(t, math.IsNaN(v))
		assert.False(t, math.IsInf(v, 0))
	}
	for d := 0; d < dim; d++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += y[i*dim+d]
		}
		mean /= float64(n)
		assert.InDelta(t, 0.0, mean, 1e-9)
	}
}

// Zero-mean embedding and monotone iteration counter, checked over a
// short run on a slightly larger cloud.
func TestInvariantsHoldAcrossSteps(t *testing.T) {
	n, dim, k := 12, 2, 4
	data := make([][]float64, n)
	src := int64(11)
	for i := range data {
		data[i] = []float64{float64((int(src)*i + 3) % 7), float64((int(src)*i + 5) % 11)}
	}
	table := bruteKNN(data, k)

	cfg := bhtsne.DefaultConfig()
	cfg.Seed = 5
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.InitDataDist(table))

	prevT := eng.Iteration()
	for step := 0; step < 30; step++ {
		require.NoError(t, eng.Step())
		assert.Equal(t, prevT+1, eng.Iteration())
		prevT = eng.Iteration()

		y := eng.GetSolution()
		for d := 0; d < dim; d++ {
			mean := 0.0
			for i := 0; i < n; i++ {
				mean += y[i*dim+d]
			}
			mean /= float64(n)
			assert.InDelta(t, 0.0, mean, 1e-9)
		}
	}
}

// Boundary: N=1, step is a no-op on the gradient and recenters Y to 0.
func TestBoundaryNEqualsOne(t *testing.T) {
	table := knn.Table{{Index: []int32{}, Dist: []float64{}}}
	cfg := bhtsne.DefaultConfig()
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.InitDataDist(table))

	require.NoError(t, eng.Step())
	y := eng.GetSolution()
	for _, v := range y {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

// Determinism: two engines with identical config and kNN produce
// identical Y after identical step counts.
func TestDeterminism(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {5, 5}, {5, 6}}
	table := bruteKNN(data, 3)

	run := func() []float64 {
		cfg := bhtsne.DefaultConfig()
		cfg.Seed = 99
		cfg.NumWorkers = 1
		eng, err := bhtsne.New(cfg)
		require.NoError(t, err)
		require.NoError(t, eng.InitDataDist(table))
		for i := 0; i < 20; i++ {
			require.NoError(t, eng.Step())
		}
		return append([]float64(nil), eng.GetSolution()...)
	}

	a := run()
	b := run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestLossProxyIsFiniteAfterSteps(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {8, 8}, {8, 9}, {9, 8}}
	table := bruteKNN(data, 3)

	cfg := bhtsne.DefaultConfig()
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.InitDataDist(table))
	for i := 0; i < 10; i++ {
		require.NoError(t, eng.Step())
	}
	loss := eng.LossProxy()
	assert.False(t, math.IsNaN(loss))
	assert.False(t, math.IsInf(loss, 0))
}

// Two well-separated clusters should come out of the optimizer with a
// high silhouette score on the 2-D embedding.
func TestSeparatedClustersGetHighSilhouette(t *testing.T) {
	n := 20
	data := make([][]float64, 0, n)
	labels := make([]int, 0, n)
	for i := 0; i < n/2; i++ {
		data = append(data, []float64{float64(i % 3), float64(i%3) + 0.1, 0, 0, 0})
		labels = append(labels, 0)
	}
	for i := 0; i < n/2; i++ {
		data = append(data, []float64{20 + float64(i%3), 20 + float64(i%3) + 0.1, 0, 0, 0})
		labels = append(labels, 1)
	}
	table := bruteKNN(data, 5)

	cfg := bhtsne.DefaultConfig()
	cfg.Perplexity = 5
	eng, err := bhtsne.New(cfg)
	require.NoError(t, err)
	require.NoError(t, eng.InitDataDist(table))
	for i := 0; i < 300; i++ {
		require.NoError(t, eng.Step())
	}

	s := metrics.Silhouette(eng.GetSolution(), cfg.Dim, labels)
	assert.Greater(t, s, 0.5)
}
