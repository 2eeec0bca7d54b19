package noise

import (
	"math"

	"github.com/talgya/voronoi-terrain/internal/geom"
)

// Kernel samples one octave of 2D noise. Output is roughly in [-1, 1].
type Kernel interface {
	Sample(octave int, x, y float64) float64
}

// Classic is gradient (Perlin) noise on the integer grid.
type Classic struct {
	Lattice *Lattice
}

// NewClassic returns a classic kernel over a fresh lattice.
func NewClassic(seed int64, depth int) *Classic {
	return &Classic{Lattice: NewLattice(seed, depth)}
}

// Sample interpolates the four corner dot products with the quintic fade.
func (k *Classic) Sample(octave int, x, y float64) float64 {
	fx0, fy0 := math.Floor(x), math.Floor(y)
	x0, y0 := int64(fx0), int64(fy0)
	dx, dy := x-fx0, y-fy0

	g00 := k.Lattice.GradientAt(octave, LatticeCoord{x0, y0})
	g10 := k.Lattice.GradientAt(octave, LatticeCoord{x0 + 1, y0})
	g01 := k.Lattice.GradientAt(octave, LatticeCoord{x0, y0 + 1})
	g11 := k.Lattice.GradientAt(octave, LatticeCoord{x0 + 1, y0 + 1})

	n00 := g00.Dot(geom.Point{X: dx, Y: dy})
	n10 := g10.Dot(geom.Point{X: dx - 1, Y: dy})
	n01 := g01.Dot(geom.Point{X: dx, Y: dy - 1})
	n11 := g11.Dot(geom.Point{X: dx - 1, Y: dy - 1})

	u, v := fade(dx), fade(dy)
	south := lerp(n00, n10, u)
	north := lerp(n01, n11, u)
	return lerp(south, north, v)
}

// fade is 6t⁵ − 15t⁴ + 10t³.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

var (
	skew   = (math.Sqrt(3) - 1) / 2
	unskew = (3 - math.Sqrt(3)) / 6
)

// DefaultFalloff is the squared radius of a simplex corner's influence.
const DefaultFalloff = 0.5

// Simplex is 2D simplex noise. Corners are keyed by their skewed cell coordinates.
type Simplex struct {
	Lattice *Lattice
	// Falloff is r² in t = r² − dx² − dy². Zero means DefaultFalloff.
	Falloff float64
}

// NewSimplex returns a simplex kernel over a fresh lattice.
func NewSimplex(seed int64, depth int) *Simplex {
	return &Simplex{Lattice: NewLattice(seed, depth), Falloff: DefaultFalloff}
}

// Sample sums the three corner contributions t⁴·(g·d) and scales by 70.
func (k *Simplex) Sample(octave int, x, y float64) float64 {
	r2 := k.Falloff
	if r2 == 0 {
		r2 = DefaultFalloff
	}

	s := (x + y) * skew
	fi, fj := math.Floor(x+s), math.Floor(y+s)
	i, j := int64(fi), int64(fj)
	t := (fi + fj) * unskew
	x0, y0 := x-(fi-t), y-(fj-t)

	var i1, j1 int64
	if x0 > y0 {
		i1 = 1
	} else {
		j1 = 1
	}
	x1, y1 := x0-float64(i1)+unskew, y0-float64(j1)+unskew
	x2, y2 := x0-1+2*unskew, y0-1+2*unskew

	sum := k.corner(octave, r2, LatticeCoord{i, j}, x0, y0) +
		k.corner(octave, r2, LatticeCoord{i + i1, j + j1}, x1, y1) +
		k.corner(octave, r2, LatticeCoord{i + 1, j + 1}, x2, y2)
	return 70 * sum
}

func (k *Simplex) corner(octave int, r2 float64, c LatticeCoord, dx, dy float64) float64 {
	t := r2 - dx*dx - dy*dy
	if t < 0 {
		return 0
	}
	g := k.Lattice.GradientAt(octave, c)
	t *= t
	return t * t * g.Dot(geom.Point{X: dx, Y: dy})
}
