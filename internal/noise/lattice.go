// Package noise implements deterministic 2D gradient noise (classic and simplex)
// over a memoized gradient lattice, plus multi-octave fields built from it.
package noise

import (
	"math"
	"sync"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/phi"
)

// Directions is the number of evenly spaced gradient directions.
const Directions = 16

// directions holds the unit vectors k·2π/16.
var directions = func() [Directions]geom.Point {
	var d [Directions]geom.Point
	for k := range d {
		angle := float64(k) * 2 * math.Pi / Directions
		d[k] = geom.Point{X: math.Cos(angle), Y: math.Sin(angle)}
	}
	return d
}()

// Neutral is returned for depths outside the lattice.
var Neutral = geom.Point{X: 0, Y: 1}

// LatticeCoord is an integer lattice corner. Classic noise uses grid cells,
// simplex noise uses skewed cell coordinates.
type LatticeCoord struct {
	X, Y int64
}

// Lattice maps (depth, coordinate) to a unit gradient. Entries are derived from a
// hash of (seed, depth, coordinate), so the result does not depend on the order
// in which coordinates are first visited. Safe for concurrent use.
type Lattice struct {
	seed  int64
	depth int

	mu    sync.RWMutex
	cache []map[LatticeCoord]uint8
}

// NewLattice creates a lattice answering depths 0..depth.
func NewLattice(seed int64, depth int) *Lattice {
	if depth < 0 {
		depth = 0
	}
	cache := make([]map[LatticeCoord]uint8, depth+1)
	for i := range cache {
		cache[i] = make(map[LatticeCoord]uint8)
	}
	return &Lattice{seed: seed, depth: depth, cache: cache}
}

// Seed returns the seed the lattice was built with.
func (l *Lattice) Seed() int64 { return l.seed }

// Depth returns the deepest octave the lattice answers.
func (l *Lattice) Depth() int { return l.depth }

// GradientAt returns the gradient at c for the given octave depth. Depths above
// Depth (or negative) get Neutral.
func (l *Lattice) GradientAt(depth int, c LatticeCoord) geom.Point {
	if depth < 0 || depth > l.depth {
		return Neutral
	}

	l.mu.RLock()
	idx, ok := l.cache[depth][c]
	l.mu.RUnlock()
	if ok {
		return directions[idx]
	}

	idx = l.index(depth, c)
	l.mu.Lock()
	l.cache[depth][c] = idx
	l.mu.Unlock()
	return directions[idx]
}

// CacheSize reports how many gradients have been memoized across all depths.
func (l *Lattice) CacheSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.cache {
		n += len(m)
	}
	return n
}

func (l *Lattice) index(depth int, c LatticeCoord) uint8 {
	h := phi.Mix64(uint64(l.seed) + uint64(depth+1)*phi.Gamma64)
	h = phi.Mix64(h ^ uint64(c.X)*phi.Gamma64)
	h = phi.Mix64(h + uint64(c.Y))
	return uint8(h >> 60) // top 4 bits: 0..15
}
