package noise

import (
	"fmt"

	perlin "github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/voronoi-terrain/internal/phi"
)

// KernelKind names a noise kernel in configuration.
type KernelKind string

const (
	KindClassic     KernelKind = "classic"
	KindSimplex     KernelKind = "simplex"
	KindOpenSimplex KernelKind = "opensimplex"
	KindPerlin      KernelKind = "perlin"
)

// Kinds lists every supported kernel.
var Kinds = []KernelKind{KindClassic, KindSimplex, KindOpenSimplex, KindPerlin}

// NewKernel builds the named kernel for seed, answering octaves 0..depth.
func NewKernel(kind KernelKind, seed int64, depth int) (Kernel, error) {
	switch kind {
	case KindClassic:
		return NewClassic(seed, depth), nil
	case KindSimplex, "":
		return NewSimplex(seed, depth), nil
	case KindOpenSimplex:
		return NewOpenSimplex(seed, depth), nil
	case KindPerlin:
		return NewPerlin(seed, depth), nil
	default:
		return nil, fmt.Errorf("unknown noise kernel %q", kind)
	}
}

// OpenSimplex samples github.com/ojrac/opensimplex-go, one generator per octave.
type OpenSimplex struct {
	octaves []opensimplex.Noise
}

func NewOpenSimplex(seed int64, depth int) *OpenSimplex {
	k := &OpenSimplex{octaves: make([]opensimplex.Noise, max(depth, 0)+1)}
	for i := range k.octaves {
		k.octaves[i] = opensimplex.New(phi.DeriveSeed(seed, uint64(i)))
	}
	return k
}

// Sample returns 0 for octaves the kernel was not built for.
func (k *OpenSimplex) Sample(octave int, x, y float64) float64 {
	if octave < 0 || octave >= len(k.octaves) {
		return 0
	}
	return k.octaves[octave].Eval2(x, y)
}

// Perlin samples github.com/aquilax/go-perlin, one generator per octave.
type Perlin struct {
	octaves []*perlin.Perlin
}

// Perlin generator parameters: alpha and beta as the library recommends, and a
// single library octave since Field does the layering.
const (
	perlinAlpha = 2
	perlinBeta  = 2
)

func NewPerlin(seed int64, depth int) *Perlin {
	k := &Perlin{octaves: make([]*perlin.Perlin, max(depth, 0)+1)}
	for i := range k.octaves {
		k.octaves[i] = perlin.NewPerlin(perlinAlpha, perlinBeta, 1, phi.DeriveSeed(seed, uint64(i)))
	}
	return k
}

func (k *Perlin) Sample(octave int, x, y float64) float64 {
	if octave < 0 || octave >= len(k.octaves) {
		return 0
	}
	return k.octaves[octave].Noise2D(x, y)
}
