package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/talgya/voronoi-terrain/internal/config"
	"github.com/talgya/voronoi-terrain/internal/persistence"
	"github.com/talgya/voronoi-terrain/internal/world"
)

const testKey = "test-admin-key"

func newTestServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Generation = world.SmallTestConfig()
	cfg.Heightmap.Width, cfg.Heightmap.Height = 8, 4
	cfg.Server.GenerateLimit = 100
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	var db *persistence.DB
	if withDB {
		var err error
		db, err = persistence.Open(filepath.Join(t.TempDir(), "api.db"))
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
	}
	s, err := New(cfg, db, testKey)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStatusAndEmptyMap(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var status map[string]any
	decode(t, rec, &status)
	if status["has_map"] != false {
		t.Fatalf("expected has_map=false, got %v", status["has_map"])
	}

	for _, path := range []string{"/api/v1/map", "/api/v1/map/0", "/api/v1/heightmap", "/api/v1/edges"} {
		if rec := do(t, h, http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s without a map: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/maps", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/maps without storage: expected 503, got %d", rec.Code)
	}
}

func TestGenerateRequiresAdmin(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/generate", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/generate", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", rec.Code)
	}

	s.AdminKey = ""
	if rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("admin disabled: expected 403, got %d", rec.Code)
	}
}

func TestGenerateAndQuery(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	if s.Map() == nil {
		t.Fatal("generate did not set the current map")
	}

	var bulk struct {
		Sites    []world.Site   `json:"sites"`
		Polygons []polygonEntry `json:"polygons"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/map", "", ""), &bulk)
	if len(bulk.Sites) != 64 || len(bulk.Polygons) != 64 {
		t.Fatalf("expected 64 sites and polygons, got %d and %d", len(bulk.Sites), len(bulk.Polygons))
	}

	var detail struct {
		Site    world.Site   `json:"site"`
		Polygon [][2]float64 `json:"polygon"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/map/3", "", ""), &detail)
	if detail.Site.Index != 3 || len(detail.Polygon) == 0 {
		t.Fatalf("unexpected site detail: %+v", detail)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/map/abc", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-integer site: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/map/999", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown site: expected 404, got %d", rec.Code)
	}

	var hm world.Heightmap
	decode(t, do(t, h, http.MethodGet, "/api/v1/heightmap", "", ""), &hm)
	if hm.Width != 8 || hm.Height != 4 || len(hm.Values) != 32 {
		t.Fatalf("unexpected default heightmap %dx%d (%d values)", hm.Width, hm.Height, len(hm.Values))
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/heightmap?w=3&h=2", "", ""), &hm)
	if len(hm.Values) != 6 {
		t.Fatalf("expected 6 values, got %d", len(hm.Values))
	}
	for _, q := range []string{"w=0", "h=x", "w=100000&h=100000", "w=4294967296&h=4294967296", "w=9223372036854775807"} {
		if rec := do(t, h, http.MethodGet, "/api/v1/heightmap?"+q, "", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("heightmap?%s: expected 400, got %d", q, rec.Code)
		}
	}

	var edges struct {
		Delaunay [][4]float64 `json:"delaunay"`
		Voronoi  [][4]float64 `json:"voronoi"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/edges", "", ""), &edges)
	m := s.Map()
	if len(edges.Delaunay) != (len(m.Triangulation.Triangles)+len(m.Triangulation.Hull))/2 {
		t.Fatalf("unexpected Delaunay edge count %d", len(edges.Delaunay))
	}
	if len(edges.Voronoi) != (len(m.Triangulation.Triangles)-len(m.Triangulation.Hull))/2 {
		t.Fatalf("unexpected Voronoi edge count %d", len(edges.Voronoi))
	}

	var status map[string]any
	decode(t, do(t, h, http.MethodGet, "/api/v1/status", "", ""), &status)
	if status["has_map"] != true || status["map_id"] != m.ID.String() {
		t.Fatalf("status does not report the map: %v", status)
	}
}

func TestGenerateBodyOverrides(t *testing.T) {
	s := newTestServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, `{"spacing": 0.5, "elevation_seed": 5, "kernel": "classic"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	if m := s.Map(); m.SiteCount() != 16 || m.Config.ElevationSeed != 5 {
		t.Fatalf("overrides not applied: %d sites, seed %d", m.SiteCount(), m.Config.ElevationSeed)
	}

	for _, body := range []string{`{"spacing": -1}`, `{"colour": "red"}`, `not json`} {
		if rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/generate", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET generate: expected 405, got %d", rec.Code)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	s := newTestServer(t, false)
	s.limiter = NewRateLimiter(1, s.limiter.window)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, ""); rec.Code != http.StatusCreated {
		t.Fatalf("first generate: %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second generate: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestStoredMaps(t *testing.T) {
	s := newTestServer(t, true)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/generate", testKey, ""); rec.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	id := s.Map().ID

	var list []persistence.MapSummary
	decode(t, do(t, h, http.MethodGet, "/api/v1/maps", "", ""), &list)
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("unexpected map list: %+v", list)
	}

	s.SetMap(nil)
	if err := s.DB.SaveMeta(persistence.MetaCurrentMap, "none"); err != nil {
		t.Fatalf("reset meta: %v", err)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/maps/"+id.String(), "", ""); rec.Code != http.StatusOK {
		t.Fatalf("describe: %d %s", rec.Code, rec.Body.String())
	}
	if s.Map() != nil {
		t.Fatal("GET switched the current map")
	}
	if current, _ := s.DB.GetMeta(persistence.MetaCurrentMap); current != "none" {
		t.Fatalf("GET rewrote the current map meta to %q", current)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/maps/"+id.String(), "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated switch: expected 401, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/maps/"+id.String(), testKey, ""); rec.Code != http.StatusOK {
		t.Fatalf("switch: %d %s", rec.Code, rec.Body.String())
	}
	if s.Map() == nil || s.Map().ID != id {
		t.Fatal("POST did not set the current map")
	}
	if current, err := s.DB.GetMeta(persistence.MetaCurrentMap); err != nil || current != id.String() {
		t.Fatalf("current map meta = %q, %v", current, err)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/maps/not-a-uuid", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/maps/"+id.String(), "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated delete: expected 401, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/v1/maps/"+id.String(), testKey, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/maps/"+id.String(), "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("load after delete: expected 404, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, false)
	s.Config.Server.CORSOrigins = []string{"http://localhost:5173"}
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("allowed origin not echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin received CORS headers")
	}
}

func TestRelayStream(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/relax?spacing=0.5&iterations=2&seed=3"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frames []relaxFrame
	for {
		var f relaxFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		frames = append(frames, f)
		if f.Done || f.Error != "" {
			break
		}
	}

	// Initial points, two steps, done.
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d: %+v", len(frames), frames)
	}
	if frames[0].Iteration != -1 || len(frames[0].Points) != 16 {
		t.Fatalf("unexpected initial frame: %+v", frames[0])
	}
	for i, f := range frames[1:3] {
		if f.Iteration != i || len(f.Points) != 16 || f.Error != "" {
			t.Fatalf("unexpected step frame %d: %+v", i, f)
		}
	}
	if !frames[3].Done {
		t.Fatalf("expected a done frame, got %+v", frames[3])
	}

	resp, err := http.Get(srv.URL + "/api/v1/relax?spacing=nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad spacing: expected 400, got %d", resp.StatusCode)
	}
}
