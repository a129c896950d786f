// Package stream serves rendered frames over HTTP and interactive viewing
// sessions over websockets.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"mandelview/config"
	"mandelview/fractal"
	"mandelview/overlay"
)

// Options configures a Server.
type Options struct {
	// Defaults seeds every session and fills parameters /render omits.
	Defaults *config.Config
	// OriginPatterns is passed to websocket.Accept; empty allows same-origin
	// requests only.
	OriginPatterns []string
	Logger         *slog.Logger
}

// Server renders frames with a shared backend.
type Server struct {
	backend  fractal.Backend
	painter  *overlay.Painter
	defaults *config.Config
	origins  []string
	log      *slog.Logger
	mux      *http.ServeMux
}

// NewServer returns a server rendering on backend. The caller keeps
// ownership of backend.
func NewServer(backend fractal.Backend, painter *overlay.Painter, opts Options) *Server {
	if opts.Defaults == nil {
		opts.Defaults = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		backend:  backend,
		painter:  painter,
		defaults: opts.Defaults,
		origins:  opts.OriginPatterns,
		log:      opts.Logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /render", s.handleRender)
	s.mux.HandleFunc("GET /ws", s.handleWebsocket)
	return s
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutting down http server", "err", err)
		}
	}()

	s.log.Info("listening", "addr", addr, "backend", s.backend.Name())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", addr, err)
	}
	return nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	vp, iters, opts, err := parseRender(r.URL.Query(), s.defaults)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	field, err := s.backend.Evaluate(r.Context(), vp, iters)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, fractal.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		s.log.Error("rendering", "err", err)
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := overlay.EncodePNG(&buf, s.painter.Render(field, vp, opts)); err != nil {
		s.log.Error("encoding frame", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Debug("writing frame", "err", err)
	}
	s.log.Debug("rendered", "bounds", vp.Bounds.String(), "iterations", iters,
		"elapsed", time.Since(start))
}

// parseRender reads the /render query. Omitted parameters fall back to
// defaults; bounds must be given all together.
func parseRender(q url.Values, defaults *config.Config) (fractal.Viewport, int, overlay.Options, error) {
	var (
		vp   fractal.Viewport
		opts overlay.Options
	)
	width, err := intParam(q, "width", defaults.Width, config.MaxDimension)
	if err != nil {
		return vp, 0, opts, err
	}
	height, err := intParam(q, "height", defaults.Height, config.MaxDimension)
	if err != nil {
		return vp, 0, opts, err
	}
	iters, err := intParam(q, "iterations", defaults.Iterations, config.MaxIterations)
	if err != nil {
		return vp, 0, opts, err
	}

	opts.Mode = defaults.ColorMode()
	if q.Has("mode") {
		if opts.Mode, err = fractal.ParseMode(q.Get("mode")); err != nil {
			return vp, 0, opts, err
		}
	}
	opts.Axes = defaults.Axes
	if q.Has("axes") {
		if opts.Axes, err = strconv.ParseBool(q.Get("axes")); err != nil {
			return vp, 0, opts, fmt.Errorf("%w: axes %q", fractal.ErrInvalidArgument, q.Get("axes"))
		}
	}

	bounds, err := boundsParam(q, defaults)
	if err != nil {
		return vp, 0, opts, err
	}
	if vp, err = fractal.NewViewport(width, height); err != nil {
		return vp, 0, opts, err
	}
	vp, err = vp.SetRegion(bounds)
	return vp, iters, opts, err
}

func intParam(q url.Values, key string, def, limit int) (int, error) {
	if !q.Has(key) {
		return def, nil
	}
	v, err := strconv.Atoi(q.Get(key))
	if err != nil || v < 1 || v > limit {
		return 0, fmt.Errorf("%w: %s must be an integer in [1, %d]", fractal.ErrInvalidArgument, key, limit)
	}
	return v, nil
}

func boundsParam(q url.Values, defaults *config.Config) (fractal.Bounds, error) {
	keys := []string{"xmin", "xmax", "ymin", "ymax"}
	given := 0
	for _, k := range keys {
		if q.Has(k) {
			given++
		}
	}
	switch {
	case given == 0 && q.Has("region"):
		b, ok := fractal.LookupRegion(q.Get("region"))
		if !ok {
			return b, fmt.Errorf("%w: unknown region %q", fractal.ErrInvalidArgument, q.Get("region"))
		}
		return b, nil
	case given == 0:
		return defaults.StartBounds()
	case given < len(keys):
		return fractal.Bounds{}, fmt.Errorf("%w: xmin, xmax, ymin and ymax must be given together", fractal.ErrInvalidArgument)
	}
	var vals [4]float64
	for i, k := range keys {
		v, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return fractal.Bounds{}, fmt.Errorf("%w: %s: %v", fractal.ErrInvalidArgument, k, err)
		}
		vals[i] = v
	}
	return fractal.Bounds{Xmin: vals[0], Xmax: vals[1], Ymin: vals[2], Ymax: vals[3]}, nil
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.log.Warn("accepting websocket", "err", err)
		return
	}
	defer conn.CloseNow()

	sess, err := s.newSession(conn)
	if err != nil {
		s.log.Error("starting session", "err", err)
		conn.Close(websocket.StatusInternalError, "invalid server defaults")
		return
	}
	defer sess.close()

	err = sess.run(r.Context())
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		sess.log.Debug("session closed")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		sess.log.Warn("session ended", "err", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
