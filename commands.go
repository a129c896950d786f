package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mandelview/fractal"
	"mandelview/overlay"
	"mandelview/stream"
)

func (a *app) renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one view to a PNG file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRender(cmd.Context(), cmd.OutOrStdout())
		},
	}
	a.flags.bindRender(cmd)
	return cmd
}

func (a *app) runRender(ctx context.Context, out io.Writer) error {
	vp, err := a.cfg.Viewport()
	if err != nil {
		return err
	}
	painter, err := overlay.NewPainter()
	if err != nil {
		return err
	}
	backend := fractal.NewBackend(a.cfg.BackendOptions(), a.log)
	defer backend.Close()
	if e, ok := backend.(*fractal.Evaluator); ok {
		e.OnProgress = progressLogger(a.log)
	}

	start := time.Now()
	field, err := backend.Evaluate(ctx, vp, a.cfg.Iterations)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", vp.Bounds, err)
	}
	elapsed := time.Since(start)

	img := painter.Render(field, vp, overlay.Options{Mode: a.cfg.ColorMode(), Axes: a.cfg.Axes})
	if err := overlay.SavePNG(a.flags.output, img); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, renderSummary(summary{
		Path:       a.flags.output,
		Viewport:   vp,
		Iterations: a.cfg.Iterations,
		Field:      field,
		Backend:    backend.Name(),
		Elapsed:    elapsed,
	}))
	return err
}

// progressLogger logs evaluation progress at Debug in quarter steps.
func progressLogger(log *slog.Logger) func(done, total int) {
	var (
		mu   sync.Mutex
		next int
	)
	return func(done, total int) {
		pct := done * 100 / total
		mu.Lock()
		defer mu.Unlock()
		if pct < next {
			return
		}
		log.Debug("render progress", "percent", pct)
		next = pct/25*25 + 25
	}
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered frames over HTTP and websockets",
		Long: `serve exposes GET /render, which returns one PNG, and GET /ws, an
interactive session that takes JSON commands and answers with a state
message followed by a PNG frame.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	a.flags.bindServe(cmd)
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	painter, err := overlay.NewPainter()
	if err != nil {
		return err
	}
	backend := fractal.NewBackend(a.cfg.BackendOptions(), a.log)
	defer backend.Close()

	srv := stream.NewServer(backend, painter, stream.Options{
		Defaults:       a.cfg,
		OriginPatterns: a.flags.origins,
		Logger:         a.log,
	})
	return srv.ListenAndServe(ctx, a.flags.addr)
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cfg.Encode(cmd.OutOrStdout())
		},
	}
}
