// Package prob builds the joint, symmetric probability matrix P from a
// k-NN table by per-row binary search on Gaussian precision, matching a
// target perplexity.
package prob

import (
	"math"

	"github.com/nozzle/bhtsne/internal/parallel"
	"github.com/nozzle/bhtsne/knn"
)

// MinPossibleProb is the floor applied to every raw per-row probability
// before symmetrization.
const MinPossibleProb = 1e-9

const (
	entropySkipThreshold = 1e-7
	maxTrials            = 50
)

// Config configures the calibrator.
type Config struct {
	// Perplexity is the target effective neighborhood size.
	Perplexity float64
	// Tol is the entropy convergence tolerance.
	Tol float64
	// NumWorkers bounds row-level parallelism (0 = auto).
	NumWorkers int
}

// DefaultConfig returns the default perplexity (30) and tolerance
// (1e-4).
func DefaultConfig() Config {
	return Config{Perplexity: 30, Tol: 1e-4}
}

// Matrix is the sparse-in-content, symmetric joint probability matrix
// P, stored in CSR form: row i's nonzero columns are
// Col[RowStart[i]:RowStart[i+1]] with values Val[RowStart[i]:RowStart[i+1]].
type Matrix struct {
	N        int
	RowStart []int32
	Col      []int32
	Val      []float64
}

// Row returns the column indices and values of row i.
func (m *Matrix) Row(i int) ([]int32, []float64) {
	s, e := m.RowStart[i], m.RowStart[i+1]
	return m.Col[s:e], m.Val[s:e]
}

// Sum returns the total mass over the sparse support. Used by tests to
// verify the Σ P = 1 invariant.
func (m *Matrix) Sum() float64 {
	total := 0.0
	for _, v := range m.Val {
		total += v
	}
	return total
}

// Calibrate computes P from a k-NN table. Returns an empty matrix (not
// an error) when N=0 or K=0: the caller must not optimize against the
// result, but the calibrator itself does not fail.
func Calibrate(table knn.Table, cfg Config) (*Matrix, error) {
	n := table.N()
	k := table.K()
	if k == 0 {
		// K is read off the first row; any other non-empty row is ragged.
		for _, row := range table {
			if len(row.Index) != 0 || len(row.Dist) != 0 {
				return nil, knn.ErrInvalidNeighbors
			}
		}
	}
	if n == 0 || k == 0 {
		return &Matrix{N: n, RowStart: make([]int32, n+1)}, nil
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	hTarget := math.Log(cfg.Perplexity)
	tol := cfg.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	// rowProb[i][t] is the normalized probability for table[i].Index[t],
	// computed independently per row so the pass parallelizes cleanly.
	rowProb := make([][]float64, n)

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = parallel.NumWorkers()
	}

	parallel.ParallelFor(0, n, numWorkers, func(i int) {
		rowProb[i] = calibrateRow(i, table[i], hTarget, tol)
	})

	return symmetrize(table, rowProb, n), nil
}

// calibrateRow runs the bounded binary search on precision beta for a
// single row, returning the normalized probability for each neighbor
// slot (0 for a self-reference).
func calibrateRow(i int, row knn.Row, hTarget, tol float64) []float64 {
	k := len(row.Index)
	prow := make([]float64, k)

	betaMin, betaMax := math.Inf(-1), math.Inf(1)
	beta := 1.0

	for trial := 0; trial < maxTrials; trial++ {
		psum := 0.0
		for t := 0; t < k; t++ {
			if int(row.Index[t]) == i {
				prow[t] = 0
				continue
			}
			pj := math.Exp(-row.Dist[t] * beta)
			if pj < MinPossibleProb {
				pj = MinPossibleProb
			}
			prow[t] = pj
			psum += pj
		}

		hHere := 0.0
		for t := 0; t < k; t++ {
			pj := prow[t] / psum
			prow[t] = pj
			if pj > entropySkipThreshold {
				hHere -= pj * math.Log(pj)
			}
		}

		if math.Abs(hHere-hTarget) < tol {
			break
		}

		if hHere > hTarget {
			betaMin = beta
			if math.IsInf(betaMax, 1) {
				beta *= 2
			} else {
				beta = (beta + betaMax) / 2
			}
		} else {
			betaMax = beta
			if math.IsInf(betaMin, -1) {
				beta /= 2
			} else {
				beta = (beta + betaMin) / 2
			}
		}
	}

	return prow
}

// symmetrize combines each row's directed probabilities into the joint
// symmetric matrix: P[i,j] <- P[j,i] <- (P[i,j]+P[j,i]) / (2N), unioning
// the directed kNN support.
func symmetrize(table knn.Table, rowProb [][]float64, n int) *Matrix {
	type key struct{ i, j int32 }
	directed := make(map[key]float64, n*table.K())

	for i, row := range table {
		for t, j := range row.Index {
			if int(j) == i {
				continue
			}
			directed[key{int32(i), j}] = rowProb[i][t]
		}
	}

	// Collect each unordered pair {i,j} once, in canonical i<j form.
	seen := make(map[key]bool, len(directed))
	for k := range directed {
		lo, hi := k.i, k.j
		if lo > hi {
			lo, hi = hi, lo
		}
		seen[key{lo, hi}] = true
	}

	combined := make(map[key]float64, 2*len(seen))
	denom := float64(2 * n)
	for k := range seen {
		fwd := directed[key{k.i, k.j}] // P_old[i,j], 0 if i doesn't list j
		rev := directed[key{k.j, k.i}] // P_old[j,i], 0 if j doesn't list i
		sym := (fwd + rev) / denom
		combined[key{k.i, k.j}] = sym
		combined[key{k.j, k.i}] = sym
	}

	rows := make([][]int32, n)
	vals := make([][]float64, n)
	for k, v := range combined {
		rows[k.i] = append(rows[k.i], k.j)
		vals[k.i] = append(vals[k.i], v)
	}

	m := &Matrix{N: n, RowStart: make([]int32, n+1)}
	for i := 0; i < n; i++ {
		// sort columns for deterministic iteration order
		sortByCol(rows[i], vals[i])
		m.RowStart[i+1] = m.RowStart[i] + int32(len(rows[i]))
		m.Col = append(m.Col, rows[i]...)
		m.Val = append(m.Val, vals[i]...)
	}
	return m
}

// sortByCol is a small insertion sort; row degree is O(K), far too
// small to justify sort.Slice's overhead.
func sortByCol(cols []int32, vals []float64) {
	for i := 1; i < len(cols); i++ {
		c, v := cols[i], vals[i]
		j := i - 1
		for j >= 0 && cols[j] > c {
			cols[j+1] = cols[j]
			vals[j+1] = vals[j]
			j--
		}
		cols[j+1] = c
		vals[j+1] = v
	}
}
