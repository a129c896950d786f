package fractal

import "log/slog"

// BackendOptions selects and sizes a Backend.
type BackendOptions struct {
	OpenCL   bool
	Workers  int
	TileSize int
}

// NewBackend returns the OpenCL backend when requested and available, and the
// CPU evaluator otherwise.
func NewBackend(opts BackendOptions, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OpenCL {
		b, err := NewOpenCLBackend(logger)
		if err == nil {
			return b
		}
		logger.Warn("OpenCL unavailable, using CPU", "err", err)
	}
	e := NewEvaluator(opts.Workers, opts.TileSize, logger)
	logger.Info("CPU backend ready", "workers", e.workers(), "tile", e.tileSize())
	return e
}
