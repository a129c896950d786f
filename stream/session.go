package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"mandelview/config"
	"mandelview/fractal"
	"mandelview/overlay"
)

const writeTimeout = 10 * time.Second

var sessionIDs atomic.Uint64

// Command is a client message. Fields other than Op are read according to
// the op.
type Command struct {
	Op string `json:"op"`

	// pointerDown, pointerMove, pointerUp. Button follows the DOM
	// MouseEvent.button numbering.
	X      int `json:"x,omitempty"`
	Y      int `json:"y,omitempty"`
	Button int `json:"button,omitempty"`

	// pan, as fractions of the visible span.
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	Iterations int             `json:"iterations,omitempty"`
	Mode       string          `json:"mode,omitempty"`
	Axes       *bool           `json:"axes,omitempty"`
	Region     string          `json:"region,omitempty"`
	Bounds     *fractal.Bounds `json:"bounds,omitempty"`
}

// State describes the frame sent right after it.
type State struct {
	Type       string         `json:"type"`
	Seq        uint64         `json:"seq"`
	Bounds     fractal.Bounds `json:"bounds"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Iterations int            `json:"iterations"`
	Mode       string         `json:"mode"`
	Axes       bool           `json:"axes"`
	Selecting  bool           `json:"selecting"`
	Pending    bool           `json:"pending"`
	Escaped    int            `json:"escaped"`
	// Min and Max are omitted when nothing escaped.
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	ElapsedMS float64  `json:"elapsedMs"`
	Backend   string   `json:"backend"`
}

// ErrorMessage reports a rejected command. The session stays open.
type ErrorMessage struct {
	Type  string `json:"type"`
	Op    string `json:"op,omitempty"`
	Error string `json:"error"`
}

// action is what a command requires after it was applied.
type action int

const (
	actNone action = iota
	actRedraw
	actRecompute
)

type inbound struct {
	cmd Command
	err error
}

type result struct {
	frame *fractal.Frame
	err   error
}

// session holds one client's view. Only run touches its fields.
type session struct {
	srv   *Server
	conn  *websocket.Conn
	log   *slog.Logger
	sched *fractal.Scheduler

	vp    fractal.Viewport
	sel   fractal.Selection
	iters int
	mode  fractal.Mode
	axes  bool
	sent  uint64
}

// sharedBackend keeps session schedulers from closing the server's backend.
type sharedBackend struct {
	fractal.Backend
}

func (sharedBackend) Close() {}

func (s *Server) newSession(conn *websocket.Conn) (*session, error) {
	vp, err := s.defaults.Viewport()
	if err != nil {
		return nil, err
	}
	log := s.log.With("session", sessionIDs.Add(1))
	return &session{
		srv:   s,
		conn:  conn,
		log:   log,
		sched: fractal.NewScheduler(sharedBackend{s.backend}, log),
		vp:    vp,
		iters: s.defaults.Iterations,
		mode:  s.defaults.ColorMode(),
		axes:  s.defaults.Axes,
	}, nil
}

func (ss *session) close() {
	ss.sched.Close()
}

// run reads commands until the client goes away. Evaluations run on the
// session scheduler so a newer command supersedes a render in flight.
func (ss *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmds := make(chan inbound)
	readErr := make(chan error, 1)
	go ss.read(ctx, cmds, readErr)

	results := make(chan result, 1)
	ss.log.Debug("session started", "bounds", ss.vp.Bounds.String())
	ss.submit(ctx, results)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case in := <-cmds:
			if in.err != nil {
				if err := ss.sendError(ctx, "", in.err); err != nil {
					return err
				}
				continue
			}
			act, err := ss.apply(in.cmd)
			if err != nil {
				if err := ss.sendError(ctx, in.cmd.Op, err); err != nil {
					return err
				}
				continue
			}
			switch act {
			case actRecompute:
				ss.submit(ctx, results)
			case actRedraw:
				if frame, _ := ss.sched.Latest(); frame != nil {
					if err := ss.sendFrame(ctx, frame); err != nil {
						return err
					}
				}
			}
		case res := <-results:
			if res.err != nil && !errors.Is(res.err, context.Canceled) {
				if err := ss.sendError(ctx, "", res.err); err != nil {
					return err
				}
				continue
			}
			if res.frame == nil || res.frame.Seq <= ss.sent {
				continue
			}
			ss.sent = res.frame.Seq
			if err := ss.sendFrame(ctx, res.frame); err != nil {
				return err
			}
		}
	}
}

func (ss *session) read(ctx context.Context, cmds chan<- inbound, readErr chan<- error) {
	for {
		typ, data, err := ss.conn.Read(ctx)
		if err != nil {
			readErr <- err
			return
		}
		var in inbound
		if typ != websocket.MessageText {
			in.err = errors.New("commands must be JSON text messages")
		} else if err := json.Unmarshal(data, &in.cmd); err != nil {
			in.err = fmt.Errorf("decoding command: %w", err)
		}
		select {
		case cmds <- in:
		case <-ctx.Done():
			return
		}
	}
}

// submit starts an evaluation of the current view and forwards the newest
// finished frame to results.
func (ss *session) submit(ctx context.Context, results chan<- result) {
	ss.sched.Submit(fractal.Request{Viewport: ss.vp, MaxIters: ss.iters})
	go func() {
		frame, err := ss.sched.Wait(ctx)
		select {
		case results <- result{frame: frame, err: err}:
		case <-ctx.Done():
		}
	}()
}

// moveTo commits a navigation result. A rejected move keeps the view.
func (ss *session) moveTo(next fractal.Viewport, err error) (action, error) {
	if err != nil {
		return actNone, err
	}
	ss.vp = next
	return actRecompute, nil
}

// shown returns the viewport of the newest published frame. The client draws
// selections over that frame, so drags are mapped through it.
func (ss *session) shown() fractal.Viewport {
	if frame, _ := ss.sched.Latest(); frame != nil {
		return frame.Viewport
	}
	return ss.vp
}

// apply updates the session for cmd.
func (ss *session) apply(cmd Command) (action, error) {
	switch cmd.Op {
	case "zoomIn":
		return ss.moveTo(ss.vp.ZoomIn())
	case "zoomOut":
		return ss.moveTo(ss.vp.ZoomOut())
	case "reset":
		ss.vp = ss.vp.Reset()
		return actRecompute, nil
	case "pan":
		return ss.moveTo(ss.vp.Pan(cmd.DX, cmd.DY))
	case "pointerDown":
		if ss.sel.PointerDown(cmd.X, cmd.Y, domButton(cmd.Button)) {
			return actRedraw, nil
		}
		return actNone, nil
	case "pointerMove":
		if ss.sel.PointerMove(cmd.X, cmd.Y) {
			return actRedraw, nil
		}
		return actNone, nil
	case "pointerUp":
		wasDragging := ss.sel.Dragging()
		next, ok, err := ss.sel.PointerUp(cmd.X, cmd.Y, domButton(cmd.Button), ss.shown())
		if err != nil {
			return actRedraw, err
		}
		if ok {
			ss.vp = next
			return actRecompute, nil
		}
		if wasDragging && !ss.sel.Dragging() {
			return actRedraw, nil
		}
		return actNone, nil
	case "cancel":
		if !ss.sel.Dragging() {
			return actNone, nil
		}
		ss.sel.Cancel()
		return actRedraw, nil
	case "iterations":
		if cmd.Iterations < 1 || cmd.Iterations > config.MaxIterations {
			return actNone, fmt.Errorf("%w: iterations must be in [1, %d]", fractal.ErrInvalidArgument, config.MaxIterations)
		}
		ss.iters = cmd.Iterations
		return actRecompute, nil
	case "mode":
		m, err := fractal.ParseMode(cmd.Mode)
		if err != nil {
			return actNone, err
		}
		ss.mode = m
		return actRedraw, nil
	case "axes":
		if cmd.Axes == nil {
			ss.axes = !ss.axes
		} else {
			ss.axes = *cmd.Axes
		}
		return actRedraw, nil
	case "region":
		b := fractal.DefaultBounds
		if cmd.Bounds != nil {
			b = *cmd.Bounds
		} else {
			var ok bool
			if b, ok = fractal.LookupRegion(cmd.Region); !ok {
				return actNone, fmt.Errorf("%w: unknown region %q", fractal.ErrInvalidArgument, cmd.Region)
			}
		}
		next, err := ss.vp.SetRegion(b)
		if err != nil {
			return actNone, err
		}
		ss.vp = next
		return actRecompute, nil
	}
	return actNone, fmt.Errorf("%w: unknown op %q", fractal.ErrInvalidArgument, cmd.Op)
}

// domButton maps MouseEvent.button to a fractal.Button.
func domButton(b int) fractal.Button {
	switch b {
	case 0:
		return fractal.ButtonPrimary
	case 2:
		return fractal.ButtonSecondary
	}
	return fractal.ButtonMiddle
}

func (ss *session) state(frame *fractal.Frame) State {
	st := State{
		Type:       "state",
		Seq:        frame.Seq,
		Bounds:     frame.Viewport.Bounds,
		Width:      frame.Viewport.Width,
		Height:     frame.Viewport.Height,
		Iterations: frame.MaxIters,
		Mode:       ss.mode.String(),
		Axes:       ss.axes,
		Selecting:  ss.sel.Dragging(),
		Pending:    ss.sched.Busy(),
		Escaped:    frame.Field.Escaped(),
		ElapsedMS:  float64(frame.Elapsed.Microseconds()) / 1000,
		Backend:    frame.Backend,
	}
	if r := frame.Field.Range; !math.IsInf(r.Min, 0) {
		st.Min, st.Max = &r.Min, &r.Max
	}
	return st
}

// sendFrame writes the state message followed by the PNG.
func (ss *session) sendFrame(ctx context.Context, frame *fractal.Frame) error {
	img := ss.srv.painter.Render(frame.Field, frame.Viewport, overlay.Options{
		Mode:      ss.mode,
		Axes:      ss.axes,
		Selection: &ss.sel,
	})
	var buf bytes.Buffer
	if err := overlay.EncodePNG(&buf, img); err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ss.conn, ss.state(frame)); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := ss.conn.Write(ctx, websocket.MessageBinary, buf.Bytes()); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	ss.log.Debug("frame sent", "seq", frame.Seq, "bytes", buf.Len())
	return nil
}

func (ss *session) sendError(ctx context.Context, op string, cause error) error {
	ss.log.Debug("command rejected", "op", op, "err", cause)
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := ErrorMessage{Type: "error", Op: op, Error: cause.Error()}
	if err := wsjson.Write(ctx, ss.conn, msg); err != nil {
		return fmt.Errorf("writing error: %w", err)
	}
	return nil
}
