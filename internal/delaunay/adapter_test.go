package delaunay

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
)

func randomPoints(n int, seed int64) []geom.Point {
	rng := rand.New(rand.NewSource(seed))
	points := make([]geom.Point, n)
	for i := range points {
		points[i] = geom.Point{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
	}
	return points
}

func TestTriangulateSquare(t *testing.T) {
	points := []geom.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	tri, err := Adapter{}.Triangulate(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tri.TriangleCount() != 2 {
		t.Fatalf("expected 2 triangles, got %d", tri.TriangleCount())
	}
	hull := append([]int(nil), tri.Hull...)
	sort.Ints(hull)
	if len(hull) != 4 || hull[0] != 0 || hull[3] != 3 {
		t.Fatalf("expected all 4 points on the hull, got %v", tri.Hull)
	}
}

func TestTriangulateOppositeSymmetry(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		points := randomPoints(300, seed)
		tri, err := Triangulate(points)
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		for e, opp := range tri.Opposite {
			if opp == mesh.NoOpposite {
				continue
			}
			if tri.Opposite[opp] != e {
				t.Fatalf("seed %d: opposite[opposite[%d]] = %d", seed, e, tri.Opposite[opp])
			}
			// Shared edges run in opposite directions.
			if tri.Triangles[e] != tri.Triangles[mesh.NextHalfEdge(opp)] {
				t.Fatalf("seed %d: half-edges %d and %d do not share endpoints", seed, e, opp)
			}
		}
	}
}

func TestTriangulateHullIsOrderedBoundary(t *testing.T) {
	points := randomPoints(200, 11)
	tri, err := Triangulate(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boundary := 0
	for _, opp := range tri.Opposite {
		if opp == mesh.NoOpposite {
			boundary++
		}
	}
	if len(tri.Hull) != boundary {
		t.Fatalf("hull has %d points, boundary has %d edges", len(tri.Hull), boundary)
	}

	hull := make([]geom.Point, len(tri.Hull))
	for i, p := range tri.Hull {
		hull[i] = points[p]
	}
	// A convex polygon in walk order has consistent turn direction.
	area := geom.SignedArea(hull)
	if math.Abs(area) < 1 {
		t.Fatalf("hull area %v is implausibly small for points spread over [-1,1]^2", area)
	}
	for i := range hull {
		a, b, c := hull[i], hull[(i+1)%len(hull)], hull[(i+2)%len(hull)]
		turn := b.Sub(a).Cross(c.Sub(b))
		if turn*area < -1e-12 {
			t.Fatalf("hull is not convex in walk order at %d", i)
		}
	}
}

func TestTriangulateDegenerateInput(t *testing.T) {
	tests := []struct {
		name   string
		points []geom.Point
	}{
		{"empty", nil},
		{"two points", []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		{"duplicates", []geom.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 1}}},
		{"not finite", []geom.Point{{X: 0, Y: 0}, {X: math.NaN(), Y: 1}, {X: 1, Y: 0}}},
		{"collinear", []geom.Point{{X: -1, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tri, err := Triangulate(tc.points)
			var inputErr *mesh.DegenerateInputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected DegenerateInputError, got %v (%+v)", err, tri)
			}
		})
	}
}
