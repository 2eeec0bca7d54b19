// Map generation: seed a jittered grid, relax it, extract the Voronoi diagram,
// then sample elevation and moisture at every site.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/voronoi-terrain/internal/delaunay"
	"github.com/talgya/voronoi-terrain/internal/entropy"
	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
	"github.com/talgya/voronoi-terrain/internal/noise"
	"github.com/talgya/voronoi-terrain/internal/phi"
	"github.com/talgya/voronoi-terrain/internal/relax"
	"github.com/talgya/voronoi-terrain/internal/voronoi"
)

// GenConfig holds map generation parameters. Zero seeds are filled in by Generate.
type GenConfig struct {
	Spacing       float64            `yaml:"spacing" json:"spacing"`               // grid step in [-1,1] space
	Relaxations   int                `yaml:"relaxations" json:"relaxations"`       // Lloyd iterations
	Depth         int                `yaml:"depth" json:"depth"`                   // noise octaves
	ElevationSeed int64              `yaml:"elevation_seed" json:"elevation_seed"` // 0 = random
	MoistureSeed  int64              `yaml:"moisture_seed" json:"moisture_seed"`   // 0 = derived from elevation seed
	PointSeed     int64              `yaml:"point_seed" json:"point_seed"`         // 0 = derived from elevation seed
	Kernel        noise.KernelKind   `yaml:"kernel" json:"kernel"`
	Schedule      noise.ScheduleKind `yaml:"schedule" json:"schedule"`
	Lacunarity    float64            `yaml:"lacunarity" json:"lacunarity"`
	Persistence   float64            `yaml:"persistence" json:"persistence"`
	Frequency     float64            `yaml:"frequency" json:"frequency"` // base noise frequency
	Hull          voronoi.HullMode   `yaml:"hull" json:"hull"`
	SeaLevel      float64            `yaml:"sea_level" json:"sea_level"`
	MountainLevel float64            `yaml:"mountain_level" json:"mountain_level"`
	MaxAttempts   int                `yaml:"max_attempts" json:"max_attempts"` // geometry retries with a new point seed
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Spacing:       0.05,
		Relaxations:   relax.DefaultIterations,
		Depth:         8,
		Kernel:        noise.KindSimplex,
		Schedule:      noise.ScheduleLegacy,
		Lacunarity:    noise.DefaultSchedule.Lacunarity,
		Persistence:   noise.DefaultSchedule.Persistence,
		Frequency:     1,
		Hull:          voronoi.HullOpen,
		SeaLevel:      0.35,
		MountainLevel: 0.8,
		MaxAttempts:   3,
	}
}

// SmallTestConfig returns a tiny, fully seeded map for rapid iteration.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Spacing = 0.25
	cfg.Depth = 4
	cfg.ElevationSeed = 42
	return cfg
}

// Validate reports the first invalid parameter.
func (c GenConfig) Validate() error {
	switch {
	case c.Spacing <= 0 || c.Spacing > 1:
		return fmt.Errorf("spacing must be in (0, 1], got %v", c.Spacing)
	case 2/c.Spacing > 1000:
		return fmt.Errorf("spacing %v yields more than a million sites", c.Spacing)
	case c.Relaxations < 0:
		return fmt.Errorf("relaxations must be non-negative, got %d", c.Relaxations)
	case c.Depth < 1:
		return fmt.Errorf("depth must be at least 1, got %d", c.Depth)
	case c.MaxAttempts < 1:
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	case c.SeaLevel < 0 || c.MountainLevel > 1 || c.SeaLevel >= c.MountainLevel:
		return fmt.Errorf("need 0 <= sea_level < mountain_level <= 1, got %v and %v", c.SeaLevel, c.MountainLevel)
	case c.Frequency < 0:
		return fmt.Errorf("frequency must be non-negative, got %v", c.Frequency)
	}
	if _, err := noise.NewKernel(c.Kernel, 1, 0); err != nil {
		return err
	}
	if _, err := noise.NewSchedule(c.Schedule, c.Lacunarity, c.Persistence); err != nil {
		return err
	}
	if c.Hull != "" && c.Hull != voronoi.HullOpen && c.Hull != voronoi.HullClip {
		return fmt.Errorf("unknown hull mode %q", c.Hull)
	}
	return nil
}

// withSeeds pins every zero seed. Moisture and point seeds derive from the
// elevation seed so one number reproduces a whole map.
func (c GenConfig) withSeeds() GenConfig {
	c.ElevationSeed = entropy.SeedOr(c.ElevationSeed)
	if c.MoistureSeed == 0 {
		c.MoistureSeed = phi.DeriveSeed(c.ElevationSeed, 1)
	}
	if c.PointSeed == 0 {
		c.PointSeed = phi.DeriveSeed(c.ElevationSeed, 2)
	}
	return c
}

// SeedPoints places one uniformly jittered site in every spacing×spacing cell of
// the [-1,1] square.
func SeedPoints(spacing float64, seed int64) []geom.Point {
	n := int(math.Ceil(2/spacing - 1e-9))
	rng := rand.New(rand.NewSource(seed))
	points := make([]geom.Point, 0, n*n)
	for gx := range n {
		for gy := range n {
			lowX := -1 + float64(gx)*spacing
			lowY := -1 + float64(gy)*spacing
			p := geom.Point{X: lowX + rng.Float64()*spacing, Y: lowY + rng.Float64()*spacing}
			points = append(points, geom.Clamp(p, geom.Bounds))
		}
	}
	return points
}

// Generate creates a complete map. Geometry failures (degenerate triangles, a
// corrupt walk) are retried up to cfg.MaxAttempts times with a fresh point set.
func Generate(cfg GenConfig) (*Map, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}
	cfg = cfg.withSeeds()
	start := time.Now()

	slog.Info("generating map",
		"spacing", cfg.Spacing,
		"relaxations", cfg.Relaxations,
		"kernel", cfg.Kernel,
		"elevation_seed", cfg.ElevationSeed,
	)

	var lastErr error
	for attempt := range cfg.MaxAttempts {
		if attempt > 0 {
			cfg.PointSeed = phi.DeriveSeed(cfg.PointSeed, uint64(attempt))
		}
		m, err := generateOnce(cfg)
		if err == nil {
			slog.Info("map generated",
				"id", m.ID,
				"sites", humanize.Comma(int64(len(m.Sites))),
				"triangles", humanize.Comma(int64(m.Triangulation.TriangleCount())),
				"attempts", attempt+1,
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return m, nil
		}
		if !Retryable(err) {
			return nil, err
		}
		lastErr = err
		slog.Warn("map generation attempt failed", "attempt", attempt+1, "point_seed", cfg.PointSeed, "error", err)
	}
	return nil, fmt.Errorf("map generation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func generateOnce(cfg GenConfig) (*Map, error) {
	points := SeedPoints(cfg.Spacing, cfg.PointSeed)
	opts := relax.DefaultOptions()
	opts.Iterations = cfg.Relaxations
	opts.Voronoi.Hull = cfg.Hull

	res, err := relax.Relax(delaunay.Adapter{}, points, opts)
	if err != nil {
		return nil, err
	}
	return Assemble(uuid.New(), time.Now().UTC(), cfg, res.Points, res.Triangulation)
}

// Assemble builds a Map from a final point set and its triangulation: it extracts
// the diagram and samples both noise fields at every site. cfg must carry pinned seeds.
func Assemble(id uuid.UUID, created time.Time, cfg GenConfig, points []geom.Point, tri *mesh.Triangulation) (*Map, error) {
	diagram, err := voronoi.Extract(points, tri, voronoi.Options{Hull: cfg.Hull, Bounds: geom.Bounds})
	if err != nil {
		return nil, err
	}
	elevation, err := newField(cfg, cfg.ElevationSeed)
	if err != nil {
		return nil, err
	}
	moisture, err := newField(cfg, cfg.MoistureSeed)
	if err != nil {
		return nil, err
	}

	onHull := make(map[int]bool, len(tri.Hull))
	for _, p := range tri.Hull {
		onHull[p] = true
	}

	sites := make([]Site, len(points))
	for i, p := range points {
		elev := elevation.Value(p.X, p.Y)
		moist := moisture.Value(p.X, p.Y)
		sites[i] = Site{
			Index:     i,
			X:         p.X,
			Y:         p.Y,
			Elevation: elev,
			Moisture:  moist,
			Hull:      onHull[i],
			Biome:     Classify(elev, moist, cfg),
			Neighbors: diagram.Cells[i].Neighbors,
		}
	}

	return &Map{
		ID:            id,
		CreatedAt:     created,
		Config:        cfg,
		Points:        points,
		Triangulation: tri,
		Diagram:       diagram,
		Sites:         sites,
		elevation:     elevation,
		moisture:      moisture,
	}, nil
}

func newField(cfg GenConfig, seed int64) (*noise.Field, error) {
	schedule, err := noise.NewSchedule(cfg.Schedule, cfg.Lacunarity, cfg.Persistence)
	if err != nil {
		return nil, err
	}
	f, err := noise.NewField(cfg.Kernel, seed, cfg.Depth, schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Frequency > 0 {
		f.Frequency = cfg.Frequency
	}
	return f, nil
}

// Retryable reports whether err is a geometry failure that a new point set may avoid.
func Retryable(err error) bool {
	var inputErr *mesh.DegenerateInputError
	var walkErr *mesh.NonTerminatingWalkError
	var triErr *voronoi.DegenerateTriangleError
	return errors.As(err, &inputErr) || errors.As(err, &walkErr) || errors.As(err, &triErr)
}
