// Package geom holds the planar primitives shared by the triangulation, Voronoi and
// relaxation packages. Points live in normalized device space, [-1, 1] on both axes.
package geom

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
)

// Point is a 2D coordinate. Its identity is its index in the owning point slice.
type Point = r2.Point

// Bounds is the normalized device square every generated site lives in.
var Bounds = r2.RectFromPoints(r2.Point{X: -1, Y: -1}, r2.Point{X: 1, Y: 1})

// ErrDegenerateTriangle reports a triangle whose circumcenter does not exist
// (collinear or coincident vertices).
var ErrDegenerateTriangle = errors.New("degenerate triangle")

// circumcenterEpsilon bounds |D| below which a triangle is treated as degenerate.
const circumcenterEpsilon = 1e-12

// Circumcenter returns the point equidistant from a, b and c.
// D = 2·(a.x(b.y−c.y) + b.x(c.y−a.y) + c.x(a.y−b.y)); |D| < 1e-12 yields ErrDegenerateTriangle.
func Circumcenter(a, b, c Point) (Point, error) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if math.Abs(d) < circumcenterEpsilon || math.IsNaN(d) {
		return Point{}, ErrDegenerateTriangle
	}

	a2 := a.X*a.X + a.Y*a.Y
	b2 := b.X*b.X + b.Y*b.Y
	c2 := c.X*c.X + c.Y*c.Y

	center := Point{
		X: (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d,
		Y: (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d,
	}
	if !IsFinite(center) {
		return Point{}, ErrDegenerateTriangle
	}
	return center, nil
}

// Centroid returns the arithmetic mean of the vertices (Σx/n, Σy/n).
// ok is false for an empty slice.
func Centroid(vertices []Point) (c Point, ok bool) {
	if len(vertices) == 0 {
		return Point{}, false
	}
	for _, v := range vertices {
		c.X += v.X
		c.Y += v.Y
	}
	n := float64(len(vertices))
	return Point{X: c.X / n, Y: c.Y / n}, true
}

// SignedArea returns the shoelace area of the polygon: positive for counter-clockwise.
func SignedArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0.0
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return sum / 2
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func IsFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Clamp moves p to the nearest point inside rect.
func Clamp(p Point, rect r2.Rect) Point {
	return r2.Point{X: rect.X.ClampPoint(p.X), Y: rect.Y.ClampPoint(p.Y)}
}

// Reverse reverses poly in place.
func Reverse(poly []Point) {
	for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
		poly[i], poly[j] = poly[j], poly[i]
	}
}
