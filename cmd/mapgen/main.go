// Command mapgen generates relaxed Voronoi terrain maps, stores them, and
// optionally serves them over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/voronoi-terrain/internal/api"
	"github.com/talgya/voronoi-terrain/internal/config"
	"github.com/talgya/voronoi-terrain/internal/persistence"
	"github.com/talgya/voronoi-terrain/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("MAPGEN_CONFIG"), "path to YAML config (default $MAPGEN_CONFIG)")
	serve := flag.Bool("serve", false, "serve the map over HTTP after generating")
	fresh := flag.Bool("new", false, "generate a new map even if storage holds a current one")
	seed := flag.Int64("seed", 0, "elevation seed override (0 = config value)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *serve, *fresh, *seed); err != nil {
		slog.Error("mapgen failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, serve, fresh bool, seed int64) error {
	cfg, source, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if seed != 0 {
		cfg.Generation.ElevationSeed = seed
	}
	serve = serve || cfg.Server.Enabled
	slog.Info("configuration loaded", "source", source)

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.Path)

	// ── Map ───────────────────────────────────────────────────────────
	m, err := currentOrNew(db, cfg.Generation, fresh || seed != 0)
	if err != nil {
		return err
	}
	stats := m.Stats()
	for biome, n := range stats.Biomes {
		slog.Info("biome", "type", biome, "sites", humanize.Comma(int64(n)))
	}
	slog.Info("map ready",
		"id", m.ID,
		"created", humanize.Time(m.CreatedAt),
		"sites", humanize.Comma(int64(stats.Sites)),
		"hull_sites", stats.HullSites,
		"elevation_mean", fmt.Sprintf("%.3f", stats.Elevation.Mean),
		"moisture_mean", fmt.Sprintf("%.3f", stats.Moisture.Mean),
	)
	if !serve {
		return nil
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := cfg.AdminKey()
	if adminKey == "" {
		slog.Warn("admin key not set, POST and DELETE endpoints will be disabled", "env", cfg.Server.AdminKeyEnv)
	}
	server, err := api.New(cfg, db, adminKey)
	if err != nil {
		return err
	}
	server.SetMap(m)
	server.Start()
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

// currentOrNew reloads the stored current map unless fresh is set or none exists,
// in which case it generates and stores a new one.
func currentOrNew(db *persistence.DB, gen world.GenConfig, fresh bool) (*world.Map, error) {
	if !fresh {
		m, err := db.CurrentMap()
		if err == nil {
			slog.Info("found saved map, reloaded", "id", m.ID)
			return m, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			slog.Warn("could not reload saved map, generating a new one", "error", err)
		}
	}

	m, err := world.Generate(gen)
	if err != nil {
		return nil, err
	}
	if err := db.SaveMap(m); err != nil {
		return nil, fmt.Errorf("save map: %w", err)
	}
	if err := db.SaveMeta(persistence.MetaCurrentMap, m.ID.String()); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	return m, nil
}
