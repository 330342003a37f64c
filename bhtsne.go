// Package bhtsne implements a Barnes-Hut accelerated t-SNE embedding
// engine: given a precomputed k-nearest-neighbor graph over N
// high-dimensional points, it iteratively produces a 2-D or 3-D
// embedding that preserves local neighborhood structure.
//
// Basic usage:
//
//	eng, err := bhtsne.New(bhtsne.DefaultConfig())
//	err = eng.InitDataDist(table)
//	for i := 0; i < 1000; i++ {
//		eng.Step()
//	}
//	y := eng.GetSolution()
package bhtsne

import (
	"fmt"

	"github.com/nozzle/bhtsne/gradient"
	"github.com/nozzle/bhtsne/knn"
	"github.com/nozzle/bhtsne/metrics"
	"github.com/nozzle/bhtsne/optimize"
	"github.com/nozzle/bhtsne/prob"
	"github.com/nozzle/bhtsne/rand"
	"github.com/nozzle/bhtsne/tree"
)

// Config configures the engine.
type Config struct {
	// Dim is the target embedding dimensionality: 2 or 3.
	// Default: 2
	Dim int

	// Perplexity is the target effective neighborhood size used by the
	// probability calibrator.
	// Default: 30
	Perplexity float64

	// Epsilon is the gradient-descent learning rate.
	// Default: 10
	Epsilon float64

	// Theta is the Barnes-Hut acceptance threshold. Zero is a
	// legitimate, un-rewritten value (full tree descent, not treated as
	// "unset"); leave this at the default for production use.
	// Default: 0.8
	Theta float64

	// Exact switches Step's repulsive-force pass to a direct O(N^2)
	// pairwise evaluation that bypasses the tree entirely, for
	// parity-testing against a brute-force reference. Theta is ignored
	// when this is true. Test-only; not for production use.
	// Default: false
	Exact bool

	// Uniform supplies uniform [0,1) draws for embedding initialization.
	// Default: a Tausworthe generator seeded from Seed.
	Uniform func() float64

	// Seed seeds the default Uniform source when one is not supplied.
	// Default: 1
	Seed int64

	// NumWorkers bounds per-row/per-point parallelism (0 = auto).
	// Default: 0
	NumWorkers int

	// Verbose enables per-step progress logging via Logger.
	// Default: false
	Verbose bool

	// ProgressCallback is invoked after each Step with the new
	// iteration count.
	// Default: nil
	ProgressCallback func(t int)

	// Logger receives step-level diagnostics at Debug level.
	// Default: NoopLogger()
	Logger *Logger
}

// DefaultConfig returns the usual t-SNE defaults: Dim=2, Perplexity=30,
// Epsilon=10, Theta=0.8.
func DefaultConfig() Config {
	return Config{
		Dim:        2,
		Perplexity: 30,
		Epsilon:    10,
		Theta:      gradient.Theta,
		Seed:       1,
	}
}

// Engine is the t-SNE optimizer. It owns the embedding Y, the optimizer
// memory (gains, step), the probability matrix P, and the tree builder,
// and it is exclusively responsible for mutating all of them.
type Engine struct {
	cfg Config
	dim int

	uniform func() float64
	builder *tree.Builder

	n int
	p *prob.Matrix

	y  []float64
	st *optimize.State
	t  int

	initialized bool
}

// New constructs an Engine. Fails with ErrUnsupportedDimension if
// Config.Dim is not 2 or 3.
func New(cfg Config) (*Engine, error) {
	if cfg.Dim != 2 && cfg.Dim != 3 {
		return nil, ErrUnsupportedDimension
	}
	if cfg.Perplexity <= 0 {
		cfg.Perplexity = 30
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger()
	}
	if cfg.Uniform == nil {
		cfg.Uniform = rand.NewSource(cfg.Seed).Uniform()
	}

	return &Engine{
		cfg:     cfg,
		dim:     cfg.Dim,
		uniform: cfg.Uniform,
		builder: tree.NewBuilder(cfg.Dim),
	}, nil
}

// InitDataDist calibrates the joint probability matrix P from the
// supplied k-NN table and (re-)initializes the solution. Fails with a
// wrapped knn.ErrInvalidNeighbors if table is empty, ragged, or
// out-of-range.
func (e *Engine) InitDataDist(table knn.Table) error {
	if table.N() == 0 {
		return fmt.Errorf("bhtsne: empty neighbor table: %w", knn.ErrInvalidNeighbors)
	}
	p, err := prob.Calibrate(table, prob.Config{
		Perplexity: e.cfg.Perplexity,
		NumWorkers: e.cfg.NumWorkers,
	})
	if err != nil {
		return fmt.Errorf("bhtsne: calibrate: %w", err)
	}
	e.n = table.N()
	e.p = p
	e.initSolution()
	e.initialized = true
	return nil
}

// initSolution re-samples Y from N(0, 1e-4^2), resets gains to 1, steps
// to 0, and t to 0.
func (e *Engine) initSolution() {
	g := rand.NewGaussian(e.uniform)
	e.y = make([]float64, e.n*e.dim)
	for i := range e.y {
		e.y[i] = g.Randn(0, 1e-4)
	}
	e.st = optimize.NewState(e.n, e.dim)
	e.t = 0
}

// Step runs one optimizer iteration: it builds a fresh tree from the
// current Y, evaluates the gradient, applies the adaptive update, and
// re-centers Y to zero mean. Fails with ErrUninitialized if
// InitDataDist has not been called.
func (e *Engine) Step() error {
	if !e.initialized {
		return ErrUninitialized
	}

	tr := e.builder.Build(e.y, e.n)
	res := gradient.Eval(e.y, e.n, e.dim, e.p, tr, e.t, gradient.Config{
		Theta:      e.cfg.Theta,
		Exact:      e.cfg.Exact,
		NumWorkers: e.cfg.NumWorkers,
	})

	e.t = optimize.Apply(e.y, res.Grad, e.st, e.n, e.dim, e.cfg.Epsilon, e.t)

	if e.cfg.Verbose && !tr.Empty() {
		e.cfg.Logger.logStep(e.t, tr.NumCells(tr.Root()), res.Z)
	}
	if e.cfg.ProgressCallback != nil {
		e.cfg.ProgressCallback(e.t)
	}
	return nil
}

// GetSolution returns a live view of Y (row-major N*Dim). The slice is
// valid until the next call to Step; callers must treat it as
// read-only.
func (e *Engine) GetSolution() []float64 {
	return e.y
}

// Iteration returns the engine's monotonic step counter.
func (e *Engine) Iteration() int { return e.t }

// LossProxy computes the KL-divergence proxy ΣP·log(P/(Q+ε)) over the
// sparse P support for the engine's current solution. It is a
// monitoring aid, not part of the optimizer's hot path.
func (e *Engine) LossProxy() float64 {
	return metrics.LossProxy(e.y, e.dim, e.p)
}
