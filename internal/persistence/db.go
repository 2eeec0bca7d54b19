// Package persistence provides SQLite-based map storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/mesh"
	"github.com/talgya/voronoi-terrain/internal/world"
)

// ErrNotFound is returned when a map or metadata key does not exist.
var ErrNotFound = errors.New("not found")

// MetaCurrentMap is the metadata key holding the ID of the map the server shows.
const MetaCurrentMap = "current_map"

// DB wraps a SQLite connection for map persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		site_count INTEGER NOT NULL,
		elevation_seed INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		triangles_json TEXT NOT NULL,
		opposite_json TEXT NOT NULL,
		hull_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		map_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		elevation REAL NOT NULL,
		moisture REAL NOT NULL,
		hull INTEGER NOT NULL,
		biome INTEGER NOT NULL,
		PRIMARY KEY (map_id, idx)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_maps_created ON maps(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type mapRow struct {
	ID            string `db:"id"`
	CreatedAt     int64  `db:"created_at"`
	SiteCount     int    `db:"site_count"`
	ElevationSeed int64  `db:"elevation_seed"`
	ConfigJSON    string `db:"config_json"`
	TrianglesJSON string `db:"triangles_json"`
	OppositeJSON  string `db:"opposite_json"`
	HullJSON      string `db:"hull_json"`
}

type siteRow struct {
	Index     int     `db:"idx"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	Elevation float64 `db:"elevation"`
	Moisture  float64 `db:"moisture"`
	Hull      bool    `db:"hull"`
	Biome     uint8   `db:"biome"`
}

// SaveMap writes a map and all its sites, replacing any previous copy.
func (db *DB) SaveMap(m *world.Map) error {
	configJSON, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	trianglesJSON, err := json.Marshal(m.Triangulation.Triangles)
	if err != nil {
		return fmt.Errorf("encode triangles: %w", err)
	}
	oppositeJSON, err := json.Marshal(m.Triangulation.Opposite)
	if err != nil {
		return fmt.Errorf("encode opposite: %w", err)
	}
	hullJSON, err := json.Marshal(m.Triangulation.Hull)
	if err != nil {
		return fmt.Errorf("encode hull: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := m.ID.String()
	_, err = tx.Exec(`INSERT OR REPLACE INTO maps
		(id, created_at, site_count, elevation_seed, config_json, triangles_json, opposite_json, hull_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.CreatedAt.UnixNano(), len(m.Sites), m.Config.ElevationSeed,
		string(configJSON), string(trianglesJSON), string(oppositeJSON), string(hullJSON),
	)
	if err != nil {
		return fmt.Errorf("insert map %s: %w", id, err)
	}
	if _, err := tx.Exec("DELETE FROM sites WHERE map_id = ?", id); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO sites
		(map_id, idx, x, y, elevation, moisture, hull, biome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range m.Sites {
		hull := 0
		if s.Hull {
			hull = 1
		}
		if _, err := stmt.Exec(id, s.Index, s.X, s.Y, s.Elevation, s.Moisture, hull, uint8(s.Biome)); err != nil {
			return fmt.Errorf("insert site %d: %w", s.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("map saved", "id", id, "sites", humanize.Comma(int64(len(m.Sites))))
	return nil
}

// LoadMap reads a map back and re-extracts its Voronoi diagram from the stored
// points and triangulation.
func (db *DB) LoadMap(id uuid.UUID) (*world.Map, error) {
	var row mapRow
	err := db.conn.Get(&row, "SELECT * FROM maps WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("map %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load map %s: %w", id, err)
	}

	var cfg world.GenConfig
	if err := json.Unmarshal([]byte(row.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	tri := &mesh.Triangulation{}
	for _, field := range []struct {
		name string
		data string
		dst  *[]int
	}{
		{"triangles", row.TrianglesJSON, &tri.Triangles},
		{"opposite", row.OppositeJSON, &tri.Opposite},
		{"hull", row.HullJSON, &tri.Hull},
	} {
		if err := json.Unmarshal([]byte(field.data), field.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", field.name, err)
		}
	}

	var sites []siteRow
	err = db.conn.Select(&sites,
		"SELECT idx, x, y, elevation, moisture, hull, biome FROM sites WHERE map_id = ? ORDER BY idx",
		row.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	if len(sites) != row.SiteCount {
		return nil, fmt.Errorf("map %s: expected %d sites, found %d", id, row.SiteCount, len(sites))
	}
	points := make([]geom.Point, len(sites))
	for i, s := range sites {
		points[i] = geom.Point{X: s.X, Y: s.Y}
	}

	m, err := world.Assemble(id, time.Unix(0, row.CreatedAt).UTC(), cfg, points, tri)
	if err != nil {
		return nil, fmt.Errorf("rebuild map %s: %w", id, err)
	}
	slog.Debug("map loaded", "id", id, "sites", len(points))
	return m, nil
}

// MapSummary is one row of ListMaps.
type MapSummary struct {
	ID            uuid.UUID `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Sites         int       `json:"sites"`
	ElevationSeed int64     `json:"elevation_seed"`
}

// ListMaps returns stored maps, newest first.
func (db *DB) ListMaps() ([]MapSummary, error) {
	var rows []mapRow
	err := db.conn.Select(&rows,
		"SELECT id, created_at, site_count, elevation_seed FROM maps ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	out := make([]MapSummary, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("map id %q: %w", r.ID, err)
		}
		out = append(out, MapSummary{
			ID:            id,
			CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
			Sites:         r.SiteCount,
			ElevationSeed: r.ElevationSeed,
		})
	}
	return out, nil
}

// DeleteMap removes a map and its sites.
func (db *DB) DeleteMap(id uuid.UUID) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM maps WHERE id = ?", id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("map %s: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM sites WHERE map_id = ?", id.String()); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return value, err
}

// CurrentMap loads the map recorded under MetaCurrentMap.
func (db *DB) CurrentMap() (*world.Map, error) {
	value, err := db.GetMeta(MetaCurrentMap)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("current map id %q: %w", value, err)
	}
	return db.LoadMap(id)
}
