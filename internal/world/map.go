package world

import (
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
	"github.com/talgya/voronoi-terrain/internal/noise"
	"github.com/talgya/voronoi-terrain/internal/voronoi"
)

// Map is one generated tessellation with per-site attributes.
type Map struct {
	ID            uuid.UUID           `json:"id"`
	CreatedAt     time.Time           `json:"created_at"`
	Config        GenConfig           `json:"config"` // seeds are always pinned
	Points        []geom.Point        `json:"-"`
	Triangulation *mesh.Triangulation `json:"-"`
	Diagram       *voronoi.Diagram    `json:"-"`
	Sites         []Site              `json:"sites"`

	elevation *noise.Field
	moisture  *noise.Field
}

// Site is a Voronoi site with its sampled attributes.
type Site struct {
	Index     int     `json:"index"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Elevation float64 `json:"elevation"` // 0.0 to 1.0
	Moisture  float64 `json:"moisture"`  // 0.0 to 1.0
	Hull      bool    `json:"hull"`
	Biome     Biome   `json:"biome"`
	Neighbors []int   `json:"neighbors,omitempty"`
}

// Get returns the site at index, or nil if out of range.
func (m *Map) Get(index int) *Site {
	if index < 0 || index >= len(m.Sites) {
		return nil
	}
	return &m.Sites[index]
}

// SiteCount returns the number of sites.
func (m *Map) SiteCount() int {
	return len(m.Sites)
}

// Polygons yields (site, polygon vertices) in site order.
func (m *Map) Polygons() iter.Seq2[int, []geom.Point] {
	return m.Diagram.Polygons()
}

// Sample evaluates elevation and moisture at an arbitrary point, clamped to [0, 1].
func (m *Map) Sample(x, y float64) (elevation, moisture float64) {
	return m.elevation.Value(x, y), m.moisture.Value(x, y)
}

// Heightmap is a row-major raster of elevation values in [0, 1].
type Heightmap struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float64 `json:"values"`
}

// At returns the value at column x, row y.
func (h *Heightmap) At(x, y int) float64 {
	return h.Values[y*h.Width+x]
}

// MaxHeightmapPixels caps Heightmap allocations.
const MaxHeightmapPixels = 1 << 26

// Heightmap rasterizes the elevation field over [-1,1]², sampling pixel centers.
// Row 0 is the top of the map (y = 1).
func (m *Map) Heightmap(width, height int) (*Heightmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("heightmap size must be positive, got %dx%d", width, height)
	}
	if width > MaxHeightmapPixels/height {
		return nil, fmt.Errorf("heightmap %dx%d exceeds %d pixels", width, height, MaxHeightmapPixels)
	}
	h := &Heightmap{Width: width, Height: height, Values: make([]float64, width*height)}
	for row := range height {
		y := 1 - 2*(float64(row)+0.5)/float64(height)
		for col := range width {
			x := -1 + 2*(float64(col)+0.5)/float64(width)
			h.Values[row*width+col] = m.elevation.Value(x, y)
		}
	}
	return h, nil
}

// Summary is the range and mean of one attribute.
type Summary struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats summarizes a map for logs and the status endpoint.
type Stats struct {
	Sites       int            `json:"sites"`
	Triangles   int            `json:"triangles"`
	HullSites   int            `json:"hull_sites"`
	ClosedCells int            `json:"closed_cells"`
	Elevation   Summary        `json:"elevation"`
	Moisture    Summary        `json:"moisture"`
	Biomes      map[string]int `json:"biomes"`
}

func (m *Map) Stats() Stats {
	s := Stats{
		Sites:     len(m.Sites),
		Triangles: m.Triangulation.TriangleCount(),
		HullSites: len(m.Triangulation.Hull),
		Biomes:    make(map[string]int),
	}
	for _, c := range m.Diagram.Cells {
		if c.Closed {
			s.ClosedCells++
		}
	}
	elev, moist := newSummary(), newSummary()
	for _, site := range m.Sites {
		elev.add(site.Elevation)
		moist.add(site.Moisture)
	}
	for b, n := range BiomeCounts(m) {
		s.Biomes[b.String()] = n
	}
	s.Elevation = elev.finish(len(m.Sites))
	s.Moisture = moist.finish(len(m.Sites))
	return s
}

func newSummary() Summary {
	return Summary{Min: math.Inf(1), Max: math.Inf(-1)}
}

func (s *Summary) add(v float64) {
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
	s.Mean += v
}

func (s Summary) finish(n int) Summary {
	if n == 0 {
		return Summary{}
	}
	s.Mean /= float64(n)
	return s
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(id=%s, sites=%d, triangles=%d)", m.ID, len(m.Sites), m.Triangulation.TriangleCount())
}
