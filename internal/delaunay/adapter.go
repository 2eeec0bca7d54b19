// Package delaunay adapts github.com/fogleman/delaunay to the flat half-edge
// arrays consumed by the mesh, voronoi and relax packages.
package delaunay

import (
	"fmt"

	fdelaunay "github.com/fogleman/delaunay"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
)

// Adapter triangulates point sets. The zero value is ready to use.
type Adapter struct{}

// Triangulate returns the Delaunay triangulation of points. Any input or output
// that violates the triangulation invariants is reported as *mesh.DegenerateInputError.
func (Adapter) Triangulate(points []geom.Point) (*mesh.Triangulation, error) {
	return Triangulate(points)
}

// Triangulate is the package-level form of Adapter.Triangulate.
func Triangulate(points []geom.Point) (*mesh.Triangulation, error) {
	if err := checkPoints(points); err != nil {
		return nil, err
	}

	input := make([]fdelaunay.Point, len(points))
	for i, p := range points {
		input[i] = fdelaunay.Point{X: p.X, Y: p.Y}
	}

	result, err := fdelaunay.Triangulate(input)
	if err != nil {
		return nil, &mesh.DegenerateInputError{Reason: "triangulation failed", Err: err}
	}

	tri := &mesh.Triangulation{
		Triangles: result.Triangles,
		Opposite:  result.Halfedges,
	}
	if err := tri.Validate(len(points)); err != nil {
		return nil, err
	}
	hull, err := hullFromBoundary(tri)
	if err != nil {
		return nil, err
	}
	tri.Hull = hull
	return tri, nil
}

// checkPoints rejects non-finite coordinates and sets with fewer than 3 distinct points.
func checkPoints(points []geom.Point) error {
	distinct := make(map[geom.Point]struct{}, len(points))
	for i, p := range points {
		if !geom.IsFinite(p) {
			return &mesh.DegenerateInputError{Reason: fmt.Sprintf("point %d is not finite", i)}
		}
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return &mesh.DegenerateInputError{Reason: fmt.Sprintf("need at least 3 distinct points, got %d", len(distinct))}
	}
	return nil
}

// hullFromBoundary chains the hull half-edges (those without an opposite) into
// the ordered cycle of hull point indices.
func hullFromBoundary(tri *mesh.Triangulation) ([]int, error) {
	byStart := make(map[int]int)
	first := -1
	for e, opp := range tri.Opposite {
		if opp != mesh.NoOpposite {
			continue
		}
		start := tri.Triangles[e]
		if _, dup := byStart[start]; dup {
			return nil, &mesh.DegenerateInputError{Reason: fmt.Sprintf("hull visits point %d twice", start)}
		}
		byStart[start] = e
		if first == -1 {
			first = e
		}
	}
	if first == -1 {
		return nil, &mesh.DegenerateInputError{Reason: "triangulation has no hull edges"}
	}

	hull := make([]int, 0, len(byStart))
	e := first
	for range len(byStart) {
		hull = append(hull, tri.Triangles[e])
		next, ok := byStart[tri.Triangles[mesh.NextHalfEdge(e)]]
		if !ok {
			return nil, &mesh.DegenerateInputError{Reason: "hull boundary is not a closed cycle"}
		}
		e = next
	}
	if e != first {
		return nil, &mesh.DegenerateInputError{Reason: "hull boundary has more than one cycle"}
	}
	return hull, nil
}
