// Package gradient evaluates the t-SNE cost function's gradient for one
// embedding snapshot: exact attractive forces over the kNN graph plus
// Barnes-Hut approximated repulsive forces from a space-partitioning
// tree.
package gradient

import (
	"math"

	"github.com/nozzle/bhtsne/distance"
	"github.com/nozzle/bhtsne/internal/parallel"
	"github.com/nozzle/bhtsne/prob"
	"github.com/nozzle/bhtsne/tree"
)

// Theta is the standard Barnes-Hut acceptance threshold.
const Theta = 0.8

// Config controls the gradient evaluation pass.
type Config struct {
	// Theta is the Barnes-Hut acceptance threshold. Zero is a legitimate,
	// un-rewritten value (it forces a full descent to every leaf, since
	// no non-leaf node can ever satisfy r/sqrt(s2) < 0); callers that
	// want the usual 0.8 must set this explicitly, e.g. via
	// gradient.Theta or bhtsne.DefaultConfig.
	Theta float64
	// Exact bypasses the tree entirely and accumulates repulsive forces
	// by direct O(N^2) pairwise summation, for parity testing against a
	// brute-force reference. Theta is ignored when this is true.
	// Not used on the production Barnes-Hut path.
	Exact bool
	// NumWorkers bounds per-point parallelism (0 = auto).
	NumWorkers int
}

// Result is the output of one gradient evaluation pass: the combined
// gradient (row-major N*D) and the global normalizer Z.
type Result struct {
	Grad []float64
	Z    float64
}

// Eval computes grad_i = A*F_pos_i - B*F_negZ_i for every point.
// t is the iteration counter driving the early-exaggeration schedule
// (A = 4*alpha(t), alpha=4 if t<100 else 1); B = 4/Z.
func Eval(y []float64, n, dim int, p *prob.Matrix, tr *tree.Tree, t int, cfg Config) Result {
	sqDist := distance.Get(distance.Dim(dim))

	fpos := make([]float64, n*dim)
	fneg := make([]float64, n*dim)
	zPerPoint := make([]float64, n)

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = parallel.NumWorkers()
	}

	parallel.ParallelFor(0, n, numWorkers, func(i int) {
		attractive(y, i, dim, p, sqDist, fpos[i*dim:i*dim+dim])
		if cfg.Exact {
			zPerPoint[i] = repulsiveExact(y, i, n, dim, sqDist, fneg[i*dim:i*dim+dim])
		} else {
			zPerPoint[i] = repulsive(y, i, dim, tr, cfg.Theta, sqDist, fneg[i*dim:i*dim+dim])
		}
	})

	z := 0.0
	for _, zi := range zPerPoint {
		z += zi
	}
	if z == 0 {
		z = 1 // degenerate N<=1 case: no repulsive mass, avoid a 0/0 gradient
	}

	alpha := 1.0
	if t < 100 {
		alpha = 4.0
	}
	a := 4 * alpha
	b := 4 / z

	grad := make([]float64, n*dim)
	for idx := range grad {
		grad[idx] = a*fpos[idx] - b*fneg[idx]
	}
	return Result{Grad: grad, Z: z}
}

// attractive accumulates F_pos_i over i's kNN neighbors directly into
// out. P's sparsity pattern is exactly the symmetrized union of the kNN
// graph, so iterating its row is equivalent to iterating the graph.
func attractive(y []float64, i, dim int, p *prob.Matrix, sqDist distance.Func, out []float64) {
	cols, vals := p.Row(i)
	yi := y[i*dim : i*dim+dim]
	for t, j := range cols {
		pij := vals[t]
		if pij == 0 {
			continue
		}
		yj := y[int(j)*dim : int(j)*dim+dim]
		q := 1 / (1 + sqDist(yi, yj))
		coef := pij * q
		for d := 0; d < dim; d++ {
			out[d] += coef * (yi[d] - yj[d])
		}
	}
}

// repulsive walks the tree for point i, accumulating F_negZ_i into out
// and returning i's contribution to the global normalizer Z.
func repulsive(y []float64, i, dim int, tr *tree.Tree, theta float64, sqDist distance.Func, out []float64) float64 {
	if tr.Empty() {
		return 0
	}
	yi := y[i*dim : i*dim+dim]
	z := 0.0
	var walk func(id tree.NodeID)
	walk = func(id tree.NodeID) {
		c := tr.Centroid(id)
		s2 := sqDist(yi, c)
		r := tr.Extent(id)
		accept := tr.IsLeaf(id)
		if !accept && s2 > 0 && r/math.Sqrt(s2) < theta {
			accept = true
		}
		if accept {
			m := float64(tr.NumCells(id))
			q := 1 / (1 + s2)
			z += m * q
			coef := m * q * q
			for d := 0; d < dim; d++ {
				out[d] += coef * (yi[d] - c[d])
			}
			return
		}
		// Rejected non-leaf: contribute an extra singleton term against
		// the node's raw point, on top of descending into children.
		// This double-counts the point in principle; kept deliberately
		// for numeric parity with established Barnes-Hut t-SNE ports.
		// TODO: quantify the bias of this term and decide whether to
		// drop it in a breaking release.
		pt := tr.Point(id)
		ps2 := sqDist(yi, pt)
		pq := 1 / (1 + ps2)
		z += pq
		for d := 0; d < dim; d++ {
			out[d] += pq * pq * (yi[d] - pt[d])
		}
		for _, c := range tr.Children(id) {
			walk(c)
		}
	}
	walk(tr.Root())
	return z
}

// repulsiveExact computes point i's repulsive contribution by summing
// over every point directly (i itself included: it adds 1 to Z and no
// force), with no tree and no node.point term. It is the brute-force O(N^2) reference path used when
// Config.Exact is set; the approximate repulsive above always carries
// the node.point double-counting term even at Theta=0, so it is not
// itself a brute-force equivalent.
func repulsiveExact(y []float64, i, n, dim int, sqDist distance.Func, out []float64) float64 {
	yi := y[i*dim : i*dim+dim]
	z := 0.0
	for j := 0; j < n; j++ {
		yj := y[j*dim : j*dim+dim]
		q := 1 / (1 + sqDist(yi, yj))
		z += q
		coef := q * q
		for d := 0; d < dim; d++ {
			out[d] += coef * (yi[d] - yj[d])
		}
	}
	return z
}
