// Package config loads mandelview settings from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"mandelview/fractal"
)

// Limits applied by Validate.
const (
	MaxDimension  = 8192
	MaxIterations = 1 << 20
	MaxScale      = 8.0
)

// Config holds every setting shared by the window, render and serve commands.
type Config struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Iterations int    `toml:"iterations"`
	Mode       string `toml:"mode"`
	Axes       bool   `toml:"axes"`

	// Workers and TileSize size the CPU evaluator; zero picks the defaults.
	Workers  int  `toml:"workers"`
	TileSize int  `toml:"tile_size"`
	OpenCL   bool `toml:"opencl"`

	// Region names a start region; Bounds, when set, wins over Region.
	Region string          `toml:"region,omitempty"`
	Bounds *fractal.Bounds `toml:"bounds,omitempty"`

	WindowScale float64 `toml:"window_scale"`
	Debug       bool    `toml:"debug"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Width:       800,
		Height:      600,
		Iterations:  200,
		Mode:        fractal.ModeColor.String(),
		Axes:        true,
		TileSize:    fractal.DefaultTileSize,
		WindowScale: 1,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "mandelview", "config.toml"), nil
}

// Load decodes path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the file at DefaultPath. A missing file yields the
// defaults.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Resolve loads path when set and the default file otherwise.
func Resolve(path string) (*Config, error) {
	if path == "" {
		return LoadDefault()
	}
	return Load(path)
}

// Validate checks every field and names the first offending key.
func (c *Config) Validate() error {
	switch {
	case c.Width < 1 || c.Width > MaxDimension:
		return fmt.Errorf("width: %d out of range [1, %d]", c.Width, MaxDimension)
	case c.Height < 1 || c.Height > MaxDimension:
		return fmt.Errorf("height: %d out of range [1, %d]", c.Height, MaxDimension)
	case c.Iterations < 1 || c.Iterations > MaxIterations:
		return fmt.Errorf("iterations: %d out of range [1, %d]", c.Iterations, MaxIterations)
	case c.Workers < 0:
		return fmt.Errorf("workers: %d is negative", c.Workers)
	case c.TileSize < 0:
		return fmt.Errorf("tile_size: %d is negative", c.TileSize)
	case math.IsNaN(c.WindowScale) || c.WindowScale <= 0 || c.WindowScale > MaxScale:
		return fmt.Errorf("window_scale: %v out of range (0, %v]", c.WindowScale, MaxScale)
	}
	if _, err := fractal.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if _, err := c.StartBounds(); err != nil {
		return err
	}
	return nil
}

// ColorMode returns the parsed Mode.
func (c *Config) ColorMode() fractal.Mode {
	m, _ := fractal.ParseMode(c.Mode)
	return m
}

// StartBounds resolves Bounds or Region to a rectangle.
func (c *Config) StartBounds() (fractal.Bounds, error) {
	if c.Bounds != nil {
		if err := c.Bounds.Validate(); err != nil {
			return fractal.Bounds{}, fmt.Errorf("bounds: %w", err)
		}
		return *c.Bounds, nil
	}
	b, ok := fractal.LookupRegion(c.Region)
	if !ok {
		return fractal.Bounds{}, fmt.Errorf("region: unknown region %q", c.Region)
	}
	return b, nil
}

// Viewport returns the start viewport described by c.
func (c *Config) Viewport() (fractal.Viewport, error) {
	vp, err := fractal.NewViewport(c.Width, c.Height)
	if err != nil {
		return vp, err
	}
	b, err := c.StartBounds()
	if err != nil {
		return vp, err
	}
	return vp.SetRegion(b)
}

// BackendOptions returns the evaluator settings.
func (c *Config) BackendOptions() fractal.BackendOptions {
	return fractal.BackendOptions{OpenCL: c.OpenCL, Workers: c.Workers, TileSize: c.TileSize}
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
