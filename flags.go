package main

import (
	"errors"

	"github.com/spf13/cobra"

	"mandelview/config"
	"mandelview/fractal"
)

// cliFlags holds command-line overrides. A flag replaces the config file
// value only when it was set explicitly.
type cliFlags struct {
	// configPath selects the TOML file; empty means the per-user default.
	configPath string

	width      int
	height     int
	iterations int
	mode       string
	axes       bool
	workers    int
	tileSize   int
	region     string
	opencl     bool
	debug      bool

	// scale sets the window size as a multiple of the logical size.
	scale float64
	// cpuProfile writes a pprof CPU profile covering the window session.
	cpuProfile string

	output                 string
	xmin, xmax, ymin, ymax float64

	addr    string
	origins []string
}

// bindShared registers the flags every command understands.
func (f *cliFlags) bindShared(cmd *cobra.Command) {
	def := config.Default()
	fs := cmd.PersistentFlags()
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/mandelview/config.toml)")
	fs.IntVar(&f.width, "width", def.Width, "image width in pixels")
	fs.IntVar(&f.height, "height", def.Height, "image height in pixels")
	fs.IntVarP(&f.iterations, "iterations", "i", def.Iterations, "iteration cap per pixel")
	fs.StringVar(&f.mode, "mode", def.Mode, "color mode: color or mono")
	fs.BoolVar(&f.axes, "axes", def.Axes, "draw the complex plane axes")
	fs.IntVar(&f.workers, "workers", def.Workers, "CPU evaluation workers (0 = one per CPU)")
	fs.IntVar(&f.tileSize, "tile", def.TileSize, "edge length of CPU evaluation tiles")
	fs.StringVarP(&f.region, "region", "r", "", "start region: default, seahorse, elephant, spiral, triple-spiral, dragon, mini-spiral")
	fs.BoolVar(&f.opencl, "opencl", def.OpenCL, "evaluate on an OpenCL device when available")
	fs.BoolVarP(&f.debug, "debug", "d", def.Debug, "enable debug logging and the debug overlay")
}

// bindWindow registers the window-only flags.
func (f *cliFlags) bindWindow(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Float64Var(&f.scale, "scale", config.Default().WindowScale, "window scale factor")
	fs.StringVar(&f.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
}

// bindRender registers the render-only flags.
func (f *cliFlags) bindRender(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", defaultOutput, "PNG file to write")
	fs.Float64Var(&f.xmin, "xmin", fractal.DefaultBounds.Xmin, "left edge of the view")
	fs.Float64Var(&f.xmax, "xmax", fractal.DefaultBounds.Xmax, "right edge of the view")
	fs.Float64Var(&f.ymin, "ymin", fractal.DefaultBounds.Ymin, "bottom edge of the view")
	fs.Float64Var(&f.ymax, "ymax", fractal.DefaultBounds.Ymax, "top edge of the view")
}

// bindServe registers the serve-only flags.
func (f *cliFlags) bindServe(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", defaultServeAddr, "listen address")
	fs.StringSliceVar(&f.origins, "origin", nil, "extra websocket origin patterns to accept")
}

var boundsFlags = []string{"xmin", "xmax", "ymin", "ymax"}

// apply copies every explicitly set flag of cmd onto cfg.
func (f *cliFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	set := func(name string, fn func()) {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			fn()
		}
	}
	set("width", func() { cfg.Width = f.width })
	set("height", func() { cfg.Height = f.height })
	set("iterations", func() { cfg.Iterations = f.iterations })
	set("mode", func() { cfg.Mode = f.mode })
	set("axes", func() { cfg.Axes = f.axes })
	set("workers", func() { cfg.Workers = f.workers })
	set("tile", func() { cfg.TileSize = f.tileSize })
	set("region", func() {
		cfg.Region = f.region
		cfg.Bounds = nil
	})
	set("opencl", func() { cfg.OpenCL = f.opencl })
	set("debug", func() { cfg.Debug = f.debug })
	set("scale", func() { cfg.WindowScale = f.scale })

	given := 0
	for _, name := range boundsFlags {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			given++
		}
	}
	switch given {
	case 0:
	case len(boundsFlags):
		cfg.Bounds = &fractal.Bounds{Xmin: f.xmin, Xmax: f.xmax, Ymin: f.ymin, Ymax: f.ymax}
	default:
		return errors.New("--xmin, --xmax, --ymin and --ymax must be given together")
	}
	return nil
}
