// Package phi provides the golden-ratio constants used for seed and lattice hashing.
package phi

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// Gamma64 is 2^64 / Phi rounded to an odd integer (the SplitMix64 increment).
const Gamma64 uint64 = 0x9E3779B97F4A7C15

// Mix64 is the SplitMix64 finalizer. It is a bijection on uint64.
func Mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// DeriveSeed returns the n-th seed derived from base. DeriveSeed(base, 0) != base
// for all practical seeds, and distinct n give unrelated streams.
func DeriveSeed(base int64, n uint64) int64 {
	return int64(Mix64(uint64(base) + (n+1)*Gamma64))
}
