package geom

import "github.com/golang/geo/r2"

// HalfPlane keeps the points x with (x − Origin)·Normal <= 0.
type HalfPlane struct {
	Origin Point
	Normal Point
}

func (h HalfPlane) side(p Point) float64 {
	return p.Sub(h.Origin).Dot(h.Normal)
}

// Bisector returns the half-plane of points at least as close to p as to q.
func Bisector(p, q Point) HalfPlane {
	return HalfPlane{
		Origin: p.Add(q).Mul(0.5),
		Normal: q.Sub(p),
	}
}

// RectPolygon returns the corners of rect in counter-clockwise order.
func RectPolygon(rect r2.Rect) []Point {
	return []Point{
		{X: rect.X.Lo, Y: rect.Y.Lo},
		{X: rect.X.Hi, Y: rect.Y.Lo},
		{X: rect.X.Hi, Y: rect.Y.Hi},
		{X: rect.X.Lo, Y: rect.Y.Hi},
	}
}

// ClipHalfPlane clips a convex polygon against h (Sutherland–Hodgman, single edge).
// Vertex order is preserved. The result may be empty.
func ClipHalfPlane(poly []Point, h HalfPlane) []Point {
	if len(poly) == 0 {
		return nil
	}
	out := make([]Point, 0, len(poly)+1)
	prev := poly[len(poly)-1]
	prevSide := h.side(prev)
	for _, cur := range poly {
		curSide := h.side(cur)
		switch {
		case curSide <= 0 && prevSide <= 0:
			out = append(out, cur)
		case curSide <= 0 && prevSide > 0:
			out = append(out, intersect(prev, cur, prevSide, curSide), cur)
		case curSide > 0 && prevSide <= 0:
			out = append(out, intersect(prev, cur, prevSide, curSide))
		}
		prev, prevSide = cur, curSide
	}
	return out
}

// ClipRect clips a convex polygon to rect.
func ClipRect(poly []Point, rect r2.Rect) []Point {
	planes := [4]HalfPlane{
		{Origin: Point{X: rect.X.Lo, Y: 0}, Normal: Point{X: -1, Y: 0}},
		{Origin: Point{X: rect.X.Hi, Y: 0}, Normal: Point{X: 1, Y: 0}},
		{Origin: Point{X: 0, Y: rect.Y.Lo}, Normal: Point{X: 0, Y: -1}},
		{Origin: Point{X: 0, Y: rect.Y.Hi}, Normal: Point{X: 0, Y: 1}},
	}
	for _, h := range planes {
		poly = ClipHalfPlane(poly, h)
		if len(poly) == 0 {
			return nil
		}
	}
	return poly
}

func intersect(a, b Point, sa, sb float64) Point {
	t := sa / (sa - sb)
	return a.Add(b.Sub(a).Mul(t))
}
