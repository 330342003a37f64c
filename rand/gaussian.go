package rand

import "math"

// Gaussian wraps a caller-provided uniform-in-[0,1) source into a
// standard-normal sampler via the Marsaglia polar method. Two uniform
// draws amortize two normal samples: the second is cached on the
// instance and returned on the following call without redrawing.
//
// The cache is instance state, not package state, so two engines in
// the same process never observe each other's draws.
type Gaussian struct {
	uniform   func() float64
	cached    float64
	hasCached bool
}

// NewGaussian builds a Gaussian sampler over the given uniform source.
func NewGaussian(uniform func() float64) *Gaussian {
	return &Gaussian{uniform: uniform}
}

// Sample draws one N(0,1) value.
func (g *Gaussian) Sample() float64 {
	if g.hasCached {
		g.hasCached = false
		return g.cached
	}

	var u, v, r float64
	for {
		u = 2*g.uniform() - 1
		v = 2*g.uniform() - 1
		r = u*u + v*v
		if r > 0 && r <= 1 {
			break
		}
	}

	c := math.Sqrt(-2 * math.Log(r) / r)
	g.cached = v * c
	g.hasCached = true
	return u * c
}

// Randn draws a value from N(mu, sigma^2).
func (g *Gaussian) Randn(mu, sigma float64) float64 {
	return mu + sigma*g.Sample()
}
