// Package config loads the mapgen YAML configuration.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/voronoi-terrain/internal/world"
)

// EnvYAML carries a base64-encoded YAML config that overrides any file.
const EnvYAML = "MAPGEN_CONFIG_YAML_B64"

type Config struct {
	Generation world.GenConfig `yaml:"generation"`
	Storage    StorageConfig   `yaml:"storage"`
	Server     ServerConfig    `yaml:"server"`
	Heightmap  HeightmapConfig `yaml:"heightmap"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Enabled       bool     `yaml:"enabled"`
	ListenAddress string   `yaml:"listen_address"`
	Port          int      `yaml:"port"`
	AdminKeyEnv   string   `yaml:"admin_key_env"`
	CORSOrigins   []string `yaml:"cors_origins"`
	GenerateLimit int      `yaml:"generate_limit"`  // POST /generate requests per window per IP
	GenerateEvery string   `yaml:"generate_window"` // window as a duration string
}

type HeightmapConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	MaxPixels int `yaml:"max_pixels"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Generation: world.DefaultGenConfig(),
		Storage:    StorageConfig{Path: "mapgen.db"},
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			Port:          8080,
			AdminKeyEnv:   "MAPGEN_ADMIN_KEY",
			CORSOrigins:   []string{"*"},
			GenerateLimit: 5,
			GenerateEvery: "1m",
		},
		Heightmap: HeightmapConfig{Width: 256, Height: 256, MaxPixels: 1 << 20},
	}
}

// Parse overlays YAML onto Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Resolve picks the configuration source: the EnvYAML payload, then path, then
// Default. The returned string names the source for logging.
func Resolve(path string) (*Config, string, error) {
	if payload := os.Getenv(EnvYAML); payload != "" {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decode %s: %w", EnvYAML, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", EnvYAML, err)
		}
		return cfg, "env:" + EnvYAML, nil
	}
	if path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg := Default()
	return cfg, "defaults", cfg.Validate()
}

// Validate fills zero server and heightmap fields and checks every section.
func (c *Config) Validate() error {
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}

	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GenerateLimit <= 0 {
		return fmt.Errorf("server.generate_limit must be positive")
	}
	if _, err := c.GenerateWindow(); err != nil {
		return err
	}

	if c.Heightmap.Width <= 0 || c.Heightmap.Height <= 0 {
		return fmt.Errorf("heightmap dimensions must be positive")
	}
	if c.Heightmap.MaxPixels == 0 {
		c.Heightmap.MaxPixels = 1 << 20
	}
	if c.Heightmap.Width > c.Heightmap.MaxPixels/c.Heightmap.Height {
		return fmt.Errorf("heightmap %dx%d exceeds heightmap.max_pixels %d", c.Heightmap.Width, c.Heightmap.Height, c.Heightmap.MaxPixels)
	}
	return nil
}

// GenerateWindow parses server.generate_window.
func (c *Config) GenerateWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.GenerateEvery)
	if err != nil {
		return 0, fmt.Errorf("server.generate_window invalid: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.generate_window must be positive")
	}
	return d, nil
}

// Addr is the server listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.ListenAddress, c.Server.Port)
}

// AdminKey reads the admin bearer token from the configured environment variable.
func (c *Config) AdminKey() string {
	if c.Server.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.AdminKeyEnv)
}
