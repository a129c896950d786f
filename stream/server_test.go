package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandelview/config"
	"mandelview/fractal"
	"mandelview/overlay"
)

func testDefaults() *config.Config {
	cfg := config.Default()
	cfg.Width = 40
	cfg.Height = 30
	cfg.Iterations = 30
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	painter, err := overlay.NewPainter()
	require.NoError(t, err)
	srv := NewServer(fractal.NewEvaluator(2, 16, nil), painter, Options{Defaults: testDefaults()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestRenderPNG(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/render?width=64&height=48&iterations=50&mode=mono&axes=false")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func TestRenderDefaults(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/render")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestRenderBadRequest(t *testing.T) {
	_, ts := newTestServer(t)

	for name, query := range map[string]string{
		"zero iterations": "iterations=0",
		"huge width":      "width=100000",
		"partial bounds":  "xmin=-1&xmax=1",
		"empty bounds":    "xmin=0&xmax=0&ymin=-1&ymax=1",
		"non-finite":      "xmin=NaN&xmax=1&ymin=-1&ymax=1",
		"unknown mode":    "mode=sepia",
		"unknown region":  "region=atlantis",
		"bad axes":        "axes=maybe",
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/render?" + query)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestParseRender(t *testing.T) {
	defaults := testDefaults()

	t.Run("explicit bounds are normalized", func(t *testing.T) {
		q := url.Values{}
		q.Set("xmin", "1")
		q.Set("xmax", "-1")
		q.Set("ymin", "-0.5")
		q.Set("ymax", "0.5")
		q.Set("iterations", "77")
		vp, iters, opts, err := parseRender(q, defaults)
		require.NoError(t, err)
		assert.Equal(t, fractal.Bounds{Xmin: -1, Xmax: 1, Ymin: -0.5, Ymax: 0.5}, vp.Bounds)
		assert.Equal(t, 77, iters)
		assert.Equal(t, fractal.ModeColor, opts.Mode)
		assert.True(t, opts.Axes)
	})

	t.Run("region", func(t *testing.T) {
		q := url.Values{"region": {"elephant"}}
		vp, _, _, err := parseRender(q, defaults)
		require.NoError(t, err)
		assert.Equal(t, fractal.ElephantValley, vp.Bounds)
		assert.Equal(t, 40, vp.Width)
	})
}

func dialSession(t *testing.T, ts *httptest.Server) (context.Context, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	conn.SetReadLimit(1 << 22)
	t.Cleanup(func() { conn.CloseNow() })
	return ctx, conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) State {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ, "state message: %s", data)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	require.Equal(t, "state", st.Type, "got %s", data)

	typ, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageBinary, typ)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, st.Width, st.Height), img.Bounds())
	return st
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, cmd any) {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, cmd))
}

func TestSessionZoom(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, conn := dialSession(t, ts)

	initial := readFrame(t, ctx, conn)
	assert.Equal(t, fractal.DefaultBounds, initial.Bounds)
	assert.Equal(t, 30, initial.Iterations)
	assert.Equal(t, "color", initial.Mode)
	assert.Greater(t, initial.Escaped, 0)
	require.NotNil(t, initial.Min)
	require.NotNil(t, initial.Max)

	send(t, ctx, conn, Command{Op: "zoomIn"})
	zoomed := readFrame(t, ctx, conn)
	assert.Greater(t, zoomed.Seq, initial.Seq)
	assert.Greater(t, zoomed.Bounds.Xmin, initial.Bounds.Xmin)
	assert.Less(t, zoomed.Bounds.Xmax, initial.Bounds.Xmax)
	assert.Greater(t, zoomed.Bounds.Ymin, initial.Bounds.Ymin)
	assert.Less(t, zoomed.Bounds.Ymax, initial.Bounds.Ymax)
}

func TestSessionRejectsBadCommands(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, conn := dialSession(t, ts)
	readFrame(t, ctx, conn)

	for _, raw := range []string{`{"op":"teleport"}`, `{"op":`, `{"op":"iterations","iterations":0}`} {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(raw)))
		var msg ErrorMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		assert.Equal(t, "error", msg.Type, raw)
		assert.NotEmpty(t, msg.Error, raw)
	}

	// Still open after the errors.
	send(t, ctx, conn, Command{Op: "region", Region: "seahorse"})
	st := readFrame(t, ctx, conn)
	assert.Equal(t, fractal.SeahorseValley, st.Bounds)
}

func TestSessionDragSelection(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, conn := dialSession(t, ts)
	initial := readFrame(t, ctx, conn)

	send(t, ctx, conn, Command{Op: "pointerDown", X: 10, Y: 5})
	st := readFrame(t, ctx, conn)
	assert.True(t, st.Selecting)
	assert.Equal(t, initial.Seq, st.Seq, "overlay redraw reuses the frame")

	send(t, ctx, conn, Command{Op: "pointerMove", X: 30, Y: 20})
	st = readFrame(t, ctx, conn)
	assert.True(t, st.Selecting)

	send(t, ctx, conn, Command{Op: "pointerUp", X: 30, Y: 20})
	st = readFrame(t, ctx, conn)
	assert.False(t, st.Selecting)

	vp, err := testDefaults().Viewport()
	require.NoError(t, err)
	ul := vp.ToComplex(10, 5)
	lr := vp.ToComplex(30, 20)
	assert.InDelta(t, ul.Re, st.Bounds.Xmin, 1e-12)
	assert.InDelta(t, lr.Re, st.Bounds.Xmax, 1e-12)
	assert.InDelta(t, lr.Im, st.Bounds.Ymin, 1e-12)
	assert.InDelta(t, ul.Im, st.Bounds.Ymax, 1e-12)
}

func TestSessionModeAndAxes(t *testing.T) {
	_, ts := newTestServer(t)
	ctx, conn := dialSession(t, ts)
	initial := readFrame(t, ctx, conn)

	send(t, ctx, conn, Command{Op: "mode", Mode: "mono"})
	st := readFrame(t, ctx, conn)
	assert.Equal(t, "mono", st.Mode)
	assert.Equal(t, initial.Seq, st.Seq)

	off := false
	send(t, ctx, conn, Command{Op: "axes", Axes: &off})
	st = readFrame(t, ctx, conn)
	assert.False(t, st.Axes)
}

func TestApply(t *testing.T) {
	srv, _ := newTestServer(t)
	ss, err := srv.newSession(nil)
	require.NoError(t, err)
	defer ss.close()

	act, err := ss.apply(Command{Op: "pan", DX: 0.1})
	require.NoError(t, err)
	assert.Equal(t, actRecompute, act)

	act, err = ss.apply(Command{Op: "pointerDown", X: 1, Y: 1, Button: 2})
	require.NoError(t, err)
	assert.Equal(t, actNone, act, "secondary button does not start a drag")

	act, err = ss.apply(Command{Op: "cancel"})
	require.NoError(t, err)
	assert.Equal(t, actNone, act)

	act, err = ss.apply(Command{Op: "axes"})
	require.NoError(t, err)
	assert.Equal(t, actRedraw, act)
	assert.False(t, ss.axes)

	_, err = ss.apply(Command{Op: "region", Bounds: &fractal.Bounds{Xmin: 1, Xmax: 1, Ymin: 0, Ymax: 1}})
	assert.ErrorIs(t, err, fractal.ErrInvalidArgument)

	_, err = ss.apply(Command{Op: "mode", Mode: "sepia"})
	assert.ErrorIs(t, err, fractal.ErrInvalidArgument)

	act, err = ss.apply(Command{Op: "reset"})
	require.NoError(t, err)
	assert.Equal(t, actRecompute, act)
	assert.Equal(t, fractal.DefaultBounds, ss.vp.Bounds)
}

func TestApplyRejectsBrokenPan(t *testing.T) {
	srv, _ := newTestServer(t)
	ss, err := srv.newSession(nil)
	require.NoError(t, err)
	defer ss.close()
	before := ss.vp

	for _, cmd := range []Command{
		{Op: "pan", DX: 1e17},
		{Op: "pan", DY: -1e17},
		{Op: "pan", DX: 1e308},
	} {
		act, err := ss.apply(cmd)
		assert.ErrorIs(t, err, fractal.ErrInvalidArgument)
		assert.Equal(t, actNone, act)
		assert.Equal(t, before, ss.vp)
	}

	act, err := ss.apply(Command{Op: "zoomIn"})
	require.NoError(t, err)
	assert.Equal(t, actRecompute, act)
	assert.NoError(t, ss.vp.Validate())
}

func TestApplyDragUsesShownFrame(t *testing.T) {
	srv, _ := newTestServer(t)
	ss, err := srv.newSession(nil)
	require.NoError(t, err)
	defer ss.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ss.sched.Submit(fractal.Request{Viewport: ss.vp, MaxIters: ss.iters})
	frame, err := ss.sched.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, frame)
	shown := frame.Viewport

	// The zoom is requested but its frame has not been published yet.
	_, err = ss.apply(Command{Op: "zoomIn"})
	require.NoError(t, err)
	require.NotEqual(t, shown, ss.vp)

	var sel fractal.Selection
	sel.PointerDown(5, 5, fractal.ButtonPrimary)
	want, ok, err := sel.PointerUp(25, 20, fractal.ButtonPrimary, shown)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = ss.apply(Command{Op: "pointerDown", X: 5, Y: 5, Button: 0})
	require.NoError(t, err)
	act, err := ss.apply(Command{Op: "pointerUp", X: 25, Y: 20, Button: 0})
	require.NoError(t, err)
	assert.Equal(t, actRecompute, act)
	assert.Equal(t, want, ss.vp)
}

func TestDOMButton(t *testing.T) {
	assert.Equal(t, fractal.ButtonPrimary, domButton(0))
	assert.Equal(t, fractal.ButtonMiddle, domButton(1))
	assert.Equal(t, fractal.ButtonSecondary, domButton(2))
}
