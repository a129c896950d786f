package fractal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Request describes one evaluation.
type Request struct {
	Viewport Viewport
	MaxIters int
}

// Frame is a finished evaluation.
type Frame struct {
	Request
	Field   *Field
	Seq     uint64
	Elapsed time.Duration
	Backend string
}

// Scheduler runs evaluations on a background goroutine. A new Submit cancels
// the job in flight; only the newest job publishes its frame, and it does so
// only once the whole field is ready.
type Scheduler struct {
	backend Backend
	log     *slog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	latest  *Frame
	err     error
}

// NewScheduler wraps backend. A nil logger uses slog.Default.
func NewScheduler(backend Backend, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		backend: backend,
		log:     logger,
		ctx:     ctx,
		stop:    stop,
	}
}

// Backend returns the backend jobs run on.
func (s *Scheduler) Backend() Backend {
	return s.backend
}

// Submit cancels the running job, if any, starts req and returns its
// sequence number.
func (s *Scheduler) Submit(req Request) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true

	s.wg.Add(1)
	go s.run(ctx, cancel, seq, req, done)
	return seq
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, seq uint64, req Request, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	defer cancel()

	start := time.Now()
	field, err := s.backend.Evaluate(ctx, req.Viewport, req.MaxIters)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.log.Debug("evaluation superseded", "seq", seq, "latest", s.seq, "elapsed", elapsed)
		return
	}
	s.running = false
	if err != nil {
		s.err = err
		if !errors.Is(err, context.Canceled) {
			s.log.Error("evaluation failed", "seq", seq, "err", err)
		}
		return
	}
	s.err = nil
	s.latest = &Frame{
		Request: req,
		Field:   field,
		Seq:     seq,
		Elapsed: elapsed,
		Backend: s.backend.Name(),
	}
	s.log.Debug("frame ready", "seq", seq, "bounds", req.Viewport.Bounds.String(),
		"iterations", req.MaxIters, "elapsed", elapsed)
}

// Latest returns the newest published frame and the error of the newest
// finished job. The frame is nil until a job has completed.
func (s *Scheduler) Latest() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.err
}

// Busy reports whether the newest job is still running.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until the newest job finishes, following any Submit made while
// waiting, and returns Latest.
func (s *Scheduler) Wait(ctx context.Context) (*Frame, error) {
	for {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()
		if done == nil {
			return nil, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
		current := s.done == done
		frame, err := s.latest, s.err
		s.mu.Unlock()
		if current {
			return frame, err
		}
	}
}

// Close cancels all work, waits for the workers to exit and closes the
// backend.
func (s *Scheduler) Close() {
	s.stop()
	s.wg.Wait()
	s.backend.Close()
}
