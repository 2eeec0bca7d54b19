// Package voronoi extracts per-site Voronoi polygons from a Delaunay triangulation.
//
// Each Voronoi vertex is the circumcenter of a Delaunay triangle. A site's polygon
// is the sequence of circumcenters met while walking the half-edges incoming to it.
package voronoi

import (
	"fmt"
	"iter"

	"github.com/golang/geo/r2"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
)

// HullMode selects what happens to cells of sites on the convex hull.
type HullMode string

const (
	// HullOpen leaves hull cells as open fans; the renderer decides how to close them.
	HullOpen HullMode = "open"
	// HullClip closes every cell against Options.Bounds.
	HullClip HullMode = "clip"
)

// Options controls extraction.
type Options struct {
	Hull   HullMode
	Bounds r2.Rect // used by HullClip; empty means geom.Bounds
}

// DefaultOptions keeps hull cells open.
func DefaultOptions() Options {
	return Options{Hull: HullOpen, Bounds: geom.Bounds}
}

// Cell is the Voronoi polygon of one site.
type Cell struct {
	Site      int
	Position  geom.Point
	Triangles []int        // incident triangles, in walk order
	Vertices  []geom.Point // polygon vertices, consistently oriented across cells
	Neighbors []int        // Delaunay neighbour sites
	Closed    bool         // false for an open hull fan
}

// Segment is one Voronoi edge, between the circumcenters of two adjacent triangles.
type Segment struct {
	HalfEdge int
	From, To geom.Point
}

// Triangle is a fan triangle (site, v[i], v[i+1]).
type Triangle [3]geom.Point

// Diagram is the Voronoi dual of a triangulation.
type Diagram struct {
	Points        []geom.Point
	Triangulation *mesh.Triangulation
	Centers       []geom.Point // circumcenter per triangle
	Cells         []Cell       // one per point, indexed by site
	Options       Options
}

// DegenerateTriangleError reports a triangle with no circumcenter.
type DegenerateTriangleError struct {
	Triangle int
	Points   [3]int
	Err      error
}

func (e *DegenerateTriangleError) Error() string {
	return fmt.Sprintf("triangle %d (points %v): %v", e.Triangle, e.Points, e.Err)
}

func (e *DegenerateTriangleError) Unwrap() error { return e.Err }

// Extract builds one cell per point. It fails without partial output on a
// malformed triangulation, a degenerate triangle or a corrupt fan walk.
func Extract(points []geom.Point, tri *mesh.Triangulation, opts Options) (*Diagram, error) {
	if opts.Hull == "" {
		opts.Hull = HullOpen
	}
	if opts.Hull != HullOpen && opts.Hull != HullClip {
		return nil, fmt.Errorf("unknown hull mode %q", opts.Hull)
	}
	if b := opts.Bounds; b.IsEmpty() || b.X.Length() == 0 || b.Y.Length() == 0 {
		opts.Bounds = geom.Bounds
	}
	if err := tri.Validate(len(points)); err != nil {
		return nil, err
	}

	centers, err := circumcenters(points, tri)
	if err != nil {
		return nil, err
	}

	incoming := incomingIndex(tri, len(points))
	cells := make([]Cell, len(points))
	for p := range points {
		if incoming[p] == -1 {
			return nil, &mesh.DegenerateInputError{Reason: fmt.Sprintf("site %d is not referenced by any triangle", p)}
		}
		cell, err := walkCell(points, tri, centers, p, incoming[p])
		if err != nil {
			return nil, err
		}
		if opts.Hull == HullClip {
			clip(&cell, points, opts.Bounds)
		}
		cells[p] = cell
	}

	return &Diagram{
		Points:        points,
		Triangulation: tri,
		Centers:       centers,
		Cells:         cells,
		Options:       opts,
	}, nil
}

func circumcenters(points []geom.Point, tri *mesh.Triangulation) ([]geom.Point, error) {
	centers := make([]geom.Point, tri.TriangleCount())
	for t := range centers {
		idx := tri.PointsOfTriangle(t)
		c, err := geom.Circumcenter(points[idx[0]], points[idx[1]], points[idx[2]])
		if err != nil {
			return nil, &DegenerateTriangleError{Triangle: t, Points: idx, Err: err}
		}
		centers[t] = c
	}
	return centers, nil
}

// incomingIndex maps each site to one half-edge ending at it. Hull edges win so
// that the walk from a hull site starts at one end of its open fan.
func incomingIndex(tri *mesh.Triangulation, numPoints int) []int {
	index := make([]int, numPoints)
	for i := range index {
		index[i] = -1
	}
	for e := range tri.Triangles {
		endpoint := tri.Triangles[mesh.NextHalfEdge(e)]
		if index[endpoint] == -1 || tri.Opposite[e] == mesh.NoOpposite {
			index[endpoint] = e
		}
	}
	return index
}

func walkCell(points []geom.Point, tri *mesh.Triangulation, centers []geom.Point, site, start int) (Cell, error) {
	edges, err := mesh.EdgesAroundPoint(tri.Opposite, start)
	if err != nil {
		return Cell{}, err
	}

	cell := Cell{
		Site:      site,
		Position:  points[site],
		Triangles: make([]int, len(edges)),
		Vertices:  make([]geom.Point, len(edges)),
		Neighbors: make([]int, 0, len(edges)+1),
		Closed:    tri.Opposite[start] != mesh.NoOpposite,
	}
	for i, e := range edges {
		t := mesh.TriangleOfEdge(e)
		cell.Triangles[i] = t
		cell.Vertices[i] = centers[t]
		cell.Neighbors = append(cell.Neighbors, tri.Triangles[e])
	}
	if !cell.Closed {
		// The last triangle's outgoing edge is on the hull; its far end is one more neighbour.
		last := edges[len(edges)-1]
		cell.Neighbors = append(cell.Neighbors, tri.Triangles[mesh.PrevHalfEdge(last)])
	}
	return cell, nil
}

// clip closes the cell against bounds and orients it counter-clockwise.
func clip(cell *Cell, points []geom.Point, bounds r2.Rect) {
	cell.Vertices = cell.Bounded(points, bounds)
	cell.Closed = true
}

// Bounded returns the cell's polygon restricted to bounds, counter-clockwise, without
// modifying the cell. Hull cells are rebuilt from the bounds cut by each neighbour's
// bisector, which is the exact bounded Voronoi cell; interior cells only need the
// rectangle cut. The result is empty when the site's cell misses bounds entirely.
func (c *Cell) Bounded(points []geom.Point, bounds r2.Rect) []geom.Point {
	var poly []geom.Point
	if c.Closed {
		poly = geom.ClipRect(append([]geom.Point(nil), c.Vertices...), bounds)
	} else {
		poly = geom.RectPolygon(bounds)
		for _, q := range c.Neighbors {
			poly = geom.ClipHalfPlane(poly, geom.Bisector(c.Position, points[q]))
		}
	}
	if geom.SignedArea(poly) < 0 {
		geom.Reverse(poly)
	}
	return poly
}

// Polygons yields (site, vertices) pairs in site order.
func (d *Diagram) Polygons() iter.Seq2[int, []geom.Point] {
	return func(yield func(int, []geom.Point) bool) {
		for _, c := range d.Cells {
			if !yield(c.Site, c.Vertices) {
				return
			}
		}
	}
}

// Edges yields every Voronoi edge once: one per interior Delaunay edge.
func (d *Diagram) Edges() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		for e, opp := range d.Triangulation.Opposite {
			if e >= opp {
				continue
			}
			seg := Segment{
				HalfEdge: e,
				From:     d.Centers[mesh.TriangleOfEdge(e)],
				To:       d.Centers[mesh.TriangleOfEdge(opp)],
			}
			if !yield(seg) {
				return
			}
		}
	}
}

// Fan yields the triangles (site, v[i], v[i+1]) covering the cell. Closed cells
// include the wrap-around triangle; open fans do not.
func (c *Cell) Fan() iter.Seq[Triangle] {
	return func(yield func(Triangle) bool) {
		n := len(c.Vertices)
		for i := 0; i+1 < n; i++ {
			if !yield(Triangle{c.Position, c.Vertices[i], c.Vertices[i+1]}) {
				return
			}
		}
		if c.Closed && n >= 3 {
			yield(Triangle{c.Position, c.Vertices[n-1], c.Vertices[0]})
		}
	}
}
