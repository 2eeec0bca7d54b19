// Package mesh navigates a triangulation stored as flat half-edge arrays.
//
// Triangle t owns half-edges 3t, 3t+1 and 3t+2. Half-edge e starts at point
// Triangles[e] and ends at Triangles[NextHalfEdge(e)]. Opposite[e] is the matching
// half-edge in the neighbouring triangle, or NoOpposite on the hull.
package mesh

import (
	"iter"

	"github.com/talgya/voronoi-terrain/internal/geom"
)

// NoOpposite marks a half-edge on the hull boundary.
const NoOpposite = -1

// Triangulation is the output of the Delaunay collaborator.
type Triangulation struct {
	Triangles []int // point index per half-edge; len divisible by 3
	Opposite  []int // opposite half-edge or NoOpposite; same len as Triangles
	Hull      []int // point indices of the convex hull, in order
}

// Edge is an undirected Delaunay edge reported once, by its larger half-edge index.
type Edge struct {
	HalfEdge int
	From, To geom.Point
}

// Face is one triangle with its point indices and positions.
type Face struct {
	Triangle int
	Points   [3]int
	Vertices [3]geom.Point
}

// NextHalfEdge advances cyclically within a triangle.
func NextHalfEdge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

// PrevHalfEdge steps back cyclically within a triangle.
func PrevHalfEdge(e int) int {
	if e%3 == 0 {
		return e + 2
	}
	return e - 1
}

// TriangleOfEdge returns the triangle owning half-edge e.
func TriangleOfEdge(e int) int {
	return e / 3
}

// EdgesOfTriangle returns the three half-edges of triangle t.
func EdgesOfTriangle(t int) [3]int {
	return [3]int{3 * t, 3*t + 1, 3*t + 2}
}

// EdgesAroundPoint returns the half-edges incoming to the destination of start,
// walking opposite[NextHalfEdge(incoming)]. The walk ends when it returns to start
// (interior point) or reaches a hull edge (open fan). It visits at most
// len(opposite)/3 edges; a longer walk returns *NonTerminatingWalkError.
func EdgesAroundPoint(opposite []int, start int) ([]int, error) {
	if start < 0 || start >= len(opposite) {
		return nil, degenerate("start half-edge %d out of range [0, %d)", start, len(opposite))
	}
	limit := len(opposite) / 3

	result := make([]int, 0, 8)
	incoming := start
	for {
		if len(result) >= limit {
			return nil, &NonTerminatingWalkError{Start: start, Steps: len(result)}
		}
		result = append(result, incoming)

		outgoing := NextHalfEdge(incoming)
		if outgoing >= len(opposite) {
			return nil, degenerate("half-edge %d out of range [0, %d)", outgoing, len(opposite))
		}
		incoming = opposite[outgoing]
		if incoming == NoOpposite || incoming == start {
			return result, nil
		}
		if incoming < 0 || incoming >= len(opposite) {
			return nil, degenerate("opposite of half-edge %d is %d, out of range", outgoing, incoming)
		}
	}
}

// TriangleCount returns the number of triangles.
func (t *Triangulation) TriangleCount() int {
	return len(t.Triangles) / 3
}

// IsBoundary reports whether half-edge e lies on the hull.
func (t *Triangulation) IsBoundary(e int) bool {
	return t.Opposite[e] == NoOpposite
}

// PointsOfTriangle returns the three point indices of triangle tri.
func (t *Triangulation) PointsOfTriangle(tri int) [3]int {
	e := EdgesOfTriangle(tri)
	return [3]int{t.Triangles[e[0]], t.Triangles[e[1]], t.Triangles[e[2]]}
}

// AdjacentTriangles returns the triangles sharing an edge with tri.
func (t *Triangulation) AdjacentTriangles(tri int) []int {
	adjacent := make([]int, 0, 3)
	for _, e := range EdgesOfTriangle(tri) {
		if opp := t.Opposite[e]; opp != NoOpposite {
			adjacent = append(adjacent, TriangleOfEdge(opp))
		}
	}
	return adjacent
}

// Edges yields every undirected Delaunay edge once. Interior edges are reported
// through their larger half-edge, hull edges through their only one.
func (t *Triangulation) Edges(points []geom.Point) iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for e := range t.Triangles {
			if e <= t.Opposite[e] {
				continue
			}
			edge := Edge{
				HalfEdge: e,
				From:     points[t.Triangles[e]],
				To:       points[t.Triangles[NextHalfEdge(e)]],
			}
			if !yield(edge) {
				return
			}
		}
	}
}

// Faces yields every triangle with its vertex positions.
func (t *Triangulation) Faces(points []geom.Point) iter.Seq[Face] {
	return func(yield func(Face) bool) {
		for tri := range t.TriangleCount() {
			idx := t.PointsOfTriangle(tri)
			face := Face{
				Triangle: tri,
				Points:   idx,
				Vertices: [3]geom.Point{points[idx[0]], points[idx[1]], points[idx[2]]},
			}
			if !yield(face) {
				return
			}
		}
	}
}

// Validate checks the invariants every consumer of the triangulation relies on:
// array lengths, point and half-edge ranges, opposite symmetry and hull indices.
func (t *Triangulation) Validate(numPoints int) error {
	if len(t.Triangles) == 0 {
		return degenerate("triangulation has no triangles")
	}
	if len(t.Triangles)%3 != 0 {
		return degenerate("triangles length %d is not divisible by 3", len(t.Triangles))
	}
	if len(t.Opposite) != len(t.Triangles) {
		return degenerate("opposite length %d does not match triangles length %d", len(t.Opposite), len(t.Triangles))
	}
	for e, p := range t.Triangles {
		if p < 0 || p >= numPoints {
			return degenerate("half-edge %d references point %d of %d", e, p, numPoints)
		}
	}
	for e, opp := range t.Opposite {
		if opp == NoOpposite {
			continue
		}
		if opp < 0 || opp >= len(t.Opposite) || opp == e {
			return degenerate("opposite of half-edge %d is %d, out of range", e, opp)
		}
		if t.Opposite[opp] != e {
			return degenerate("opposite is not symmetric: opposite[%d]=%d but opposite[%d]=%d", e, opp, opp, t.Opposite[opp])
		}
	}
	for i, p := range t.Hull {
		if p < 0 || p >= numPoints {
			return degenerate("hull entry %d references point %d of %d", i, p, numPoints)
		}
	}
	return nil
}
