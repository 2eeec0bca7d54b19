package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/voronoi-terrain/internal/noise"
	"github.com/talgya/voronoi-terrain/internal/voronoi"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if d, _ := cfg.GenerateWindow(); d != time.Minute {
		t.Fatalf("unexpected window %v", d)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
generation:
  spacing: 0.1
  kernel: classic
  hull: clip
  elevation_seed: 99
server:
  port: 9090
heightmap:
  width: 64
  height: 32
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.Spacing != 0.1 || cfg.Generation.Kernel != noise.KindClassic || cfg.Generation.Hull != voronoi.HullClip {
		t.Fatalf("generation section not applied: %+v", cfg.Generation)
	}
	if cfg.Generation.ElevationSeed != 99 {
		t.Fatalf("seed not applied: %d", cfg.Generation.ElevationSeed)
	}
	// Unset fields keep their defaults.
	if cfg.Generation.Depth != 8 || cfg.Generation.MaxAttempts != 3 {
		t.Fatalf("defaults lost: %+v", cfg.Generation)
	}
	if cfg.Server.Port != 9090 || cfg.Server.AdminKeyEnv != "MAPGEN_ADMIN_KEY" {
		t.Fatalf("server section wrong: %+v", cfg.Server)
	}
	if cfg.Heightmap.Width != 64 || cfg.Heightmap.Height != 32 {
		t.Fatalf("heightmap section wrong: %+v", cfg.Heightmap)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "generation: [",
		"bad spacing":    "generation:\n  spacing: -1\n",
		"bad kernel":     "generation:\n  kernel: value\n",
		"no storage":     "storage:\n  path: \"\"\n",
		"bad port":       "server:\n  port: 70000\n",
		"bad window":     "server:\n  generate_window: soon\n",
		"huge heightmap": "heightmap:\n  width: 100000\n  height: 100000\n",
		"wrapping size":  "heightmap:\n  width: 4294967296\n  height: 4294967296\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvYAML, "")

	cfg, source, err := Resolve("")
	if err != nil || source != "defaults" {
		t.Fatalf("Resolve(\"\") = %v, %q", err, source)
	}
	if cfg.Storage.Path != "mapgen.db" {
		t.Fatalf("unexpected storage path %q", cfg.Storage.Path)
	}

	path := filepath.Join(t.TempDir(), "mapgen.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  path: file.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, source, err = Resolve(path)
	if err != nil || source != path || cfg.Storage.Path != "file.db" {
		t.Fatalf("file config not used: %v %q %+v", err, source, cfg.Storage)
	}

	t.Setenv(EnvYAML, base64.StdEncoding.EncodeToString([]byte("storage:\n  path: env.db\n")))
	cfg, source, err = Resolve(path)
	if err != nil || !strings.HasPrefix(source, "env:") || cfg.Storage.Path != "env.db" {
		t.Fatalf("env config did not win: %v %q %+v", err, source, cfg.Storage)
	}

	t.Setenv(EnvYAML, "%%%")
	if _, _, err := Resolve(path); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}

	t.Setenv(EnvYAML, "")
	if _, _, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestAdminKey(t *testing.T) {
	cfg := Default()
	t.Setenv("MAPGEN_ADMIN_KEY", "s3cret")
	if cfg.AdminKey() != "s3cret" {
		t.Fatalf("AdminKey = %q", cfg.AdminKey())
	}
	cfg.Server.AdminKeyEnv = ""
	if cfg.AdminKey() != "" {
		t.Fatal("expected no admin key when the env name is empty")
	}
}
