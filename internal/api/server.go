// Package api provides the HTTP API for querying generated maps.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/voronoi-terrain/internal/config"
	"github.com/talgya/voronoi-terrain/internal/delaunay"
	"github.com/talgya/voronoi-terrain/internal/geom"
	"github.com/talgya/voronoi-terrain/internal/persistence"
	"github.com/talgya/voronoi-terrain/internal/relax"
	"github.com/talgya/voronoi-terrain/internal/world"
)

const maxRelaxConns = 2

// Server serves the current map over HTTP.
type Server struct {
	Config   *config.Config
	DB       *persistence.DB // nil disables /maps and saving
	AdminKey string          // Bearer token for POST/DELETE endpoints. Empty = disabled.

	mu      sync.RWMutex
	current *world.Map

	relayConns int32
	limiter    *RateLimiter
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a server. The generate rate limit comes from cfg.Server.
func New(cfg *config.Config, db *persistence.DB, adminKey string) (*Server, error) {
	window, err := cfg.GenerateWindow()
	if err != nil {
		return nil, err
	}
	s := &Server{
		Config:   cfg,
		DB:       db,
		AdminKey: adminKey,
		limiter:  NewRateLimiter(cfg.Server.GenerateLimit, window),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	return s, nil
}

// SetMap replaces the map the server shows.
func (s *Server) SetMap(m *world.Map) {
	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
}

// Map returns the current map, or nil.
func (s *Server) Map() *world.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Handler returns the API routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMapRoutes)
	mux.HandleFunc("/api/v1/map/", s.handleMapRoutes)
	mux.HandleFunc("/api/v1/heightmap", s.handleHeightmap)
	mux.HandleFunc("/api/v1/edges", s.handleEdges)
	mux.HandleFunc("/api/v1/maps", s.handleMaps)
	mux.HandleFunc("/api/v1/maps/", s.adminOnly(s.handleStoredMap))

	// WebSocket relaxation stream.
	mux.HandleFunc("/api/v1/relax", s.handleRelax)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/generate", s.adminOnly(RateLimitMiddleware(s.limiter, s.handleGenerate)))

	return s.corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := s.Config.Addr()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.Config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// corsMiddleware adds CORS headers for the configured origins ("*" allows any).
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly requires bearer token auth on mutating requests. GET passes through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no admin key set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// requireMap writes 404 and returns nil when no map has been generated yet.
func (s *Server) requireMap(w http.ResponseWriter) *world.Map {
	m := s.Map()
	if m == nil {
		http.Error(w, "no map generated yet", http.StatusNotFound)
	}
	return m
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":     "mapgen",
		"has_map":  false,
		"storage":  s.DB != nil,
		"admin":    s.AdminKey != "",
		"relaying": atomic.LoadInt32(&s.relayConns),
	}
	if m := s.Map(); m != nil {
		status["has_map"] = true
		status["map_id"] = m.ID
		status["created_at"] = m.CreatedAt
		status["age"] = humanize.Time(m.CreatedAt)
		status["stats"] = m.Stats()
		status["config"] = m.Config
	}
	writeJSON(w, status)
}

type polygonEntry struct {
	Site     int          `json:"site"`
	Vertices [][2]float64 `json:"vertices"`
	Closed   bool         `json:"closed"`
}

// handleMapRoutes dispatches between the bulk map (GET /api/v1/map) and site
// detail (GET /api/v1/map/{site}).
func (s *Server) handleMapRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/map")
	if path == "" || path == "/" {
		s.handleBulkMap(w, r)
		return
	}
	s.handleSiteDetail(w, r, strings.TrimPrefix(path, "/"))
}

// handleBulkMap returns every site and polygon for a renderer.
func (s *Server) handleBulkMap(w http.ResponseWriter, r *http.Request) {
	m := s.requireMap(w)
	if m == nil {
		return
	}
	polygons := make([]polygonEntry, 0, len(m.Sites))
	for site, verts := range m.Polygons() {
		polygons = append(polygons, polygonEntry{
			Site:     site,
			Vertices: pairs(verts),
			Closed:   m.Diagram.Cells[site].Closed,
		})
	}
	writeJSON(w, map[string]any{
		"id":       m.ID,
		"config":   m.Config,
		"sites":    m.Sites,
		"polygons": polygons,
	})
}

func (s *Server) handleSiteDetail(w http.ResponseWriter, r *http.Request, raw string) {
	m := s.requireMap(w)
	if m == nil {
		return
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "site must be an integer", http.StatusBadRequest)
		return
	}
	site := m.Get(index)
	if site == nil {
		http.Error(w, "site not found", http.StatusNotFound)
		return
	}
	cell := m.Diagram.Cells[index]
	writeJSON(w, map[string]any{
		"site":      site,
		"polygon":   pairs(cell.Vertices),
		"closed":    cell.Closed,
		"triangles": cell.Triangles,
	})
}

func (s *Server) handleHeightmap(w http.ResponseWriter, r *http.Request) {
	m := s.requireMap(w)
	if m == nil {
		return
	}
	width, height := s.Config.Heightmap.Width, s.Config.Heightmap.Height
	for name, dst := range map[string]*int{"w": &width, "h": &height} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, fmt.Sprintf("%s must be a positive integer", name), http.StatusBadRequest)
			return
		}
		*dst = v
	}
	if width > s.Config.Heightmap.MaxPixels/height {
		http.Error(w, fmt.Sprintf("heightmap larger than %s pixels", humanize.Comma(int64(s.Config.Heightmap.MaxPixels))), http.StatusBadRequest)
		return
	}
	h, err := m.Heightmap(width, height)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h)
}

// handleEdges returns Delaunay and Voronoi edges as [x1, y1, x2, y2] segments.
func (s *Server) handleEdges(w http.ResponseWriter, r *http.Request) {
	m := s.requireMap(w)
	if m == nil {
		return
	}
	delaunayEdges := make([][4]float64, 0, len(m.Triangulation.Triangles)/2)
	for e := range m.Triangulation.Edges(m.Points) {
		delaunayEdges = append(delaunayEdges, [4]float64{e.From.X, e.From.Y, e.To.X, e.To.Y})
	}
	voronoiEdges := make([][4]float64, 0, len(m.Triangulation.Triangles)/2)
	for seg := range m.Diagram.Edges() {
		voronoiEdges = append(voronoiEdges, [4]float64{seg.From.X, seg.From.Y, seg.To.X, seg.To.Y})
	}
	writeJSON(w, map[string]any{
		"delaunay": delaunayEdges,
		"voronoi":  voronoiEdges,
	})
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	list, err := s.DB.ListMaps()
	if err != nil {
		slog.Error("list maps failed", "error", err)
		http.Error(w, "list maps failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

// handleStoredMap describes a stored map (GET), makes it the current map (POST),
// or deletes it (DELETE). POST and DELETE pass through adminOnly.
func (s *Server) handleStoredMap(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/api/v1/maps/"))
	if err != nil {
		http.Error(w, "invalid map id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodPost:
		m, err := s.DB.LoadMap(id)
		if errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "map not found", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("load map failed", "id", id, "error", err)
			http.Error(w, "load map failed", http.StatusInternalServerError)
			return
		}
		if r.Method == http.MethodPost {
			s.SetMap(m)
			if err := s.DB.SaveMeta(persistence.MetaCurrentMap, id.String()); err != nil {
				slog.Warn("could not record current map", "error", err)
			}
			slog.Info("current map switched", "id", id)
		}
		writeJSON(w, map[string]any{
			"id":         m.ID,
			"created_at": m.CreatedAt,
			"config":     m.Config,
			"stats":      m.Stats(),
		})
	case http.MethodDelete:
		if err := s.DB.DeleteMap(id); errors.Is(err, persistence.ErrNotFound) {
			http.Error(w, "map not found", http.StatusNotFound)
			return
		} else if err != nil {
			slog.Error("delete map failed", "id", id, "error", err)
			http.Error(w, "delete map failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGenerate builds a new map from the configured generation parameters,
// overlaid with any JSON fields in the request body.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	cfg := s.Config.Generation
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := world.Generate(cfg)
	if err != nil {
		slog.Error("generate failed", "error", err)
		http.Error(w, "generation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if s.DB != nil {
		if err := s.DB.SaveMap(m); err != nil {
			slog.Error("save map failed", "id", m.ID, "error", err)
			http.Error(w, "save failed", http.StatusInternalServerError)
			return
		}
		if err := s.DB.SaveMeta(persistence.MetaCurrentMap, m.ID.String()); err != nil {
			slog.Warn("could not record current map", "error", err)
		}
	}
	s.SetMap(m)

	writeJSONStatus(w, http.StatusCreated, map[string]any{"id": m.ID, "config": m.Config, "stats": m.Stats()})
}

type relaxFrame struct {
	Iteration int          `json:"iteration"`
	Points    [][2]float64 `json:"points,omitempty"`
	Done      bool         `json:"done,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// handleRelax streams every Lloyd step of a fresh jittered point set over a
// WebSocket. Query: spacing, iterations, seed.
func (s *Server) handleRelax(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config.Generation
	q := r.URL.Query()
	if v := q.Get("spacing"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "spacing must be a number", http.StatusBadRequest)
			return
		}
		cfg.Spacing = f
	}
	if v := q.Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n > 100 {
			http.Error(w, "iterations must be an integer up to 100", http.StatusBadRequest)
			return
		}
		cfg.Relaxations = n
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "seed must be an integer", http.StatusBadRequest)
			return
		}
		cfg.PointSeed = n
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Connection limit.
	if current := atomic.AddInt32(&s.relayConns, 1); current > maxRelaxConns {
		atomic.AddInt32(&s.relayConns, -1)
		http.Error(w, "too many relax streams", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.relayConns, -1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	points := world.SeedPoints(cfg.Spacing, cfg.PointSeed)
	opts := relax.DefaultOptions()
	opts.Iterations = cfg.Relaxations
	opts.Voronoi.Hull = cfg.Hull

	if err := conn.WriteJSON(relaxFrame{Iteration: -1, Points: pairs(points)}); err != nil {
		return
	}
	for step, err := range relax.Steps(delaunay.Adapter{}, points, opts) {
		if err != nil {
			conn.WriteJSON(relaxFrame{Iteration: step.Iteration, Error: err.Error()})
			return
		}
		if err := conn.WriteJSON(relaxFrame{Iteration: step.Iteration, Points: pairs(step.Points)}); err != nil {
			slog.Debug("relax client went away", "error", err)
			return
		}
	}
	conn.WriteJSON(relaxFrame{Iteration: cfg.Relaxations, Done: true})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func pairs(points []geom.Point) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
