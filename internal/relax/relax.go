// Package relax runs Lloyd relaxation: every site moves to the centroid of its
// Voronoi cell, a fixed number of times.
package relax

import (
	"fmt"
	"iter"

	"github.com/golang/geo/r2"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
	"github.com/talgya/voronoi-terrain/internal/voronoi"
)

// DefaultIterations is the relaxation count used when Options.Iterations is zero.
const DefaultIterations = 3

// Triangulator produces a Delaunay triangulation of a point set.
type Triangulator interface {
	Triangulate(points []geom.Point) (*mesh.Triangulation, error)
}

// Options controls relaxation.
type Options struct {
	Iterations int
	Voronoi    voronoi.Options
	// Bounds restricts every cell before its centroid is taken, so relaxed sites
	// stay inside it and stay distinct. The zero rect uses the raw cell vertices.
	Bounds r2.Rect
}

// DefaultOptions runs three iterations, takes centroids of cells bounded by
// geom.Bounds, and leaves hull cells of the reported diagrams open.
func DefaultOptions() Options {
	return Options{
		Iterations: DefaultIterations,
		Voronoi:    voronoi.DefaultOptions(),
		Bounds:     geom.Bounds,
	}
}

// Step is the state after one iteration. Triangulation and Diagram describe the
// points the iteration started from; Points are the moved sites.
type Step struct {
	Iteration     int
	Points        []geom.Point
	Triangulation *mesh.Triangulation
	Diagram       *voronoi.Diagram
}

// Result is the final relaxed point set and its triangulation.
type Result struct {
	Points        []geom.Point
	Triangulation *mesh.Triangulation
}

// Steps yields exactly opts.Iterations steps. The caller's slice is never
// modified. After an error the sequence stops.
func Steps(tr Triangulator, points []geom.Point, opts Options) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		current := append([]geom.Point(nil), points...)
		for i := range opts.Iterations {
			step, err := relaxOnce(tr, current, opts)
			if err != nil {
				yield(Step{Iteration: i}, fmt.Errorf("relax iteration %d: %w", i, err))
				return
			}
			step.Iteration = i
			if !yield(step, nil) {
				return
			}
			current = step.Points
		}
	}
}

// Relax drains Steps and triangulates the final point set.
func Relax(tr Triangulator, points []geom.Point, opts Options) (*Result, error) {
	current := append([]geom.Point(nil), points...)
	for step, err := range Steps(tr, points, opts) {
		if err != nil {
			return nil, err
		}
		current = step.Points
	}

	tri, err := tr.Triangulate(current)
	if err != nil {
		return nil, fmt.Errorf("triangulate relaxed points: %w", err)
	}
	return &Result{Points: current, Triangulation: tri}, nil
}

func relaxOnce(tr Triangulator, points []geom.Point, opts Options) (Step, error) {
	tri, err := tr.Triangulate(points)
	if err != nil {
		return Step{}, err
	}
	diagram, err := voronoi.Extract(points, tri, opts.Voronoi)
	if err != nil {
		return Step{}, err
	}

	bounded := !opts.Bounds.IsEmpty() && opts.Bounds.X.Length() > 0 && opts.Bounds.Y.Length() > 0
	moved := make([]geom.Point, len(points))
	for i, cell := range diagram.Cells {
		vertices := cell.Vertices
		if bounded {
			vertices = cell.Bounded(points, opts.Bounds)
			if len(vertices) < 3 {
				vertices = nil
			}
		}
		c, ok := geom.Centroid(vertices)
		if !ok {
			c = points[i]
		}
		moved[i] = c
	}
	return Step{Points: moved, Triangulation: tri, Diagram: diagram}, nil
}
