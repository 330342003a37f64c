// Package rand provides the uniform and Gaussian samplers consumed by the
// engine's random initialization. It is deliberately independent of
// math/rand so that a caller-supplied uniform-in-[0,1) function and the
// built-in default behave identically from the engine's point of view.
package rand

// Source is a fast pseudo-random uniform generator using the Tausworthe
// algorithm, kept as the package default when a caller does not supply
// its own uniform-in-[0,1) function.
type Source struct {
	s [3]int64
}

// NewSource creates a Source from a seed. The all-zero state is avoided
// since it is a fixed point of the generator.
func NewSource(seed int64) *Source {
	src := &Source{}
	src.s[0] = seed
	if src.s[0] == 0 {
		src.s[0] = 1
	}
	src.s[1] = src.s[0]*6364136223846793005 + 1442695040888963407
	src.s[2] = src.s[1]*6364136223846793005 + 1442695040888963407
	for i := 0; i < 10; i++ {
		src.nextInt()
	}
	return src
}

func (s *Source) nextInt() int32 {
	s.s[0] = (((s.s[0] & 4294967294) << 12) & 0xFFFFFFFF) ^
		((((s.s[0] << 13) & 0xFFFFFFFF) ^ s.s[0]) >> 19)
	s.s[1] = (((s.s[1] & 4294967288) << 4) & 0xFFFFFFFF) ^
		((((s.s[1] << 2) & 0xFFFFFFFF) ^ s.s[1]) >> 25)
	s.s[2] = (((s.s[2] & 4294967280) << 17) & 0xFFFFFFFF) ^
		((((s.s[2] << 3) & 0xFFFFFFFF) ^ s.s[2]) >> 11)
	return int32(s.s[0] ^ s.s[1] ^ s.s[2])
}

// Float64 returns a pseudo-random float64 in [0, 1).
func (s *Source) Float64() float64 {
	// The upper 31 bits of the 32-bit output, as an integer in [0, 2^31).
	return float64(uint32(s.nextInt())>>1) / (1 << 31)
}

// Uniform returns a func() float64 bound to this Source, matching the
// shape of bhtsne.Config.Uniform.
func (s *Source) Uniform() func() float64 {
	return s.Float64
}
