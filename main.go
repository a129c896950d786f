package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"mandelview/config"
	"mandelview/fractal"
	"mandelview/overlay"
)

// app carries the resolved settings from the persistent pre-run to the
// command bodies.
type app struct {
	flags cliFlags
	cfg   *config.Config
	log   *slog.Logger
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "mandelview",
		Short: "Explore the Mandelbrot set",
		Long: `mandelview renders the Mandelbrot set with smooth escape-time coloring.
Without a subcommand it opens an interactive window: drag to zoom into a
rectangle, Z/X or the wheel to zoom, arrows to pan, R to reset.`,
		Example: `  # Open the explorer at the seahorse valley
  mandelview --region seahorse

  # Render a PNG without opening a window
  mandelview render --xmin -0.75 --xmax -0.74 --ymin 0.1 --ymax 0.11 -i 2000 -o valley.png

  # Serve frames over HTTP and websockets
  mandelview serve --addr :8080`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWindow(cmd.Context())
		},
	}
	a.flags.bindShared(rootCmd)
	a.flags.bindWindow(rootCmd)
	rootCmd.AddCommand(a.renderCmd(), a.serveCmd(), a.configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(version),
		fang.WithCommit(commit),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, "mandelview: "+err.Error())
		}),
	)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// load resolves the config file, applies flag overrides and installs the
// logger.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := a.flags.apply(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.Debug)
	slog.SetDefault(a.log)
	return nil
}

// runWindow opens the interactive explorer and blocks until it is closed.
func (a *app) runWindow(ctx context.Context) error {
	if a.flags.cpuProfile != "" {
		stop, err := startCPUProfile(a.flags.cpuProfile)
		if err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer stop()
		a.log.Info("recording CPU profile", "path", a.flags.cpuProfile)
	}

	painter, err := overlay.NewPainter()
	if err != nil {
		return err
	}
	backend := fractal.NewBackend(a.cfg.BackendOptions(), a.log)
	g, err := newGame(ctx, a.cfg, fractal.NewScheduler(backend, a.log), painter, a.log)
	if err != nil {
		backend.Close()
		return err
	}
	defer g.Close()

	ebiten.SetWindowSize(
		int(float64(a.cfg.Width)*a.cfg.WindowScale),
		int(float64(a.cfg.Height)*a.cfg.WindowScale),
	)
	ebiten.SetWindowTitle(windowTitle)
	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("running window: %w", err)
	}
	return nil
}
