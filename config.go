package main

import "time"

// Window and interaction constants. Sizes, iteration caps and the start
// region come from config.Config.
const (
	windowTitle = "Mandelbrot Explorer"

	// panStep is the fraction of the visible span moved per arrow key press.
	panStep = 0.1

	// iterationFactor scales the iteration cap on +/-.
	iterationFactor = 2
	minIterations   = 1

	statusDuration   = 3 * time.Second
	snapshotPattern  = "mandelview-%s.png"
	snapshotStamp    = "20060102-150405"
	recalcLabelX     = 10
	recalcLabelY     = 4
	debugOverlayY    = 20
	defaultServeAddr = "localhost:8080"
	defaultOutput    = "mandelbrot.png"
)

var (
	version = "dev"
	commit  = "none"
)
