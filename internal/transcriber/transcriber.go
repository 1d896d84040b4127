// Package transcriber runs the capture, gate and decode loop behind a
// start/stop session API.
//
// One worker goroutine owns the decode stream. The consumer flips the
// requested flag with StartSession and StopSession and reads results from
// Results. Finalization runs on short-lived goroutines that hold a reference
// to the model, so the model is only released after the last one finishes.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/dispatch"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/pcm"
	"github.com/chaz8081/gostt-live/internal/telemetry"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("transcriber: closed")

// State is the externally visible phase of the transcriber.
type State int32

const (
	// Stopped means no worker is running.
	Stopped State = iota
	// Idle means the worker is waiting for a session request.
	Idle
	// Recording means capture and a decode stream are active.
	Recording
	// Finalizing means capture stopped and a final decode is in flight.
	Finalizing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Transcriber is safe for concurrent use. Create one with New.
type Transcriber struct {
	opts     Options
	log      *slog.Logger
	manager  *lifecycle.Manager
	queue    *pcm.Queue
	recorder *audio.Recorder
	results  *dispatch.Dispatcher
	metrics  *telemetry.Recorder
	session  string

	reqs       requests
	utterances atomic.Uint64
	wake       chan struct{}

	// serviced is the last request generation acted on. Only the live
	// worker touches it; a new worker waits for the previous one to exit.
	serviced uint64

	mu     sync.Mutex
	w      *worker
	closed bool
}

// New wires a transcriber over driver. metrics may be nil.
func New(opts Options, driver audio.Driver, manager *lifecycle.Manager, logger *slog.Logger, metrics *telemetry.Recorder) (*Transcriber, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if manager == nil {
		manager = lifecycle.NewManager(nil, logger)
	}

	session := uuid.NewString()
	log := logger.With("component", "transcriber", "session_id", session)
	queue := pcm.NewQueue(opts.QueueCapacity)

	return &Transcriber{
		opts:     opts,
		log:      log,
		manager:  manager,
		queue:    queue,
		recorder: audio.NewRecorder(driver, queue, opts.ChannelMode, logger),
		results:  dispatch.New(session),
		metrics:  metrics,
		session:  session,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Session returns the identifier stamped on every result.
func (t *Transcriber) Session() string {
	return t.session
}

// Results returns the ordered result stream. It is closed by Close.
func (t *Transcriber) Results() <-chan dispatch.Result {
	return t.results.C()
}

// Recorder exposes the capture side for diagnostics.
func (t *Transcriber) Recorder() *audio.Recorder {
	return t.recorder
}

// Load starts the worker, which loads the model, without opening a session.
func (t *Transcriber) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureWorkerLocked()
}

// StartSession requests a new utterance. It returns immediately; the worker
// picks the request up on its next iteration. A worker that is not running,
// for example after a failed model load or Shutdown, is started again once
// the previous one has exited.
func (t *Transcriber) StartSession() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureWorkerLocked(); err != nil {
		return err
	}
	t.reqs.start()
	t.signal()
	return nil
}

// StopSession ends the current utterance. Stopping always finalizes.
func (t *Transcriber) StopSession() {
	t.reqs.stop()
	t.signal()
}

// Requested reports whether a session is currently requested.
func (t *Transcriber) Requested() bool {
	return t.reqs.active()
}

// State reports the worker phase.
func (t *Transcriber) State() State {
	t.mu.Lock()
	w := t.w
	t.mu.Unlock()
	if w == nil {
		return Stopped
	}
	return w.currentState()
}

// Shutdown stops the worker after its current iteration. An open utterance
// is finalized first. With wait set it blocks until every finalization has
// completed and the model has been released, or ctx ends.
func (t *Transcriber) Shutdown(ctx context.Context, wait bool) error {
	t.mu.Lock()
	w := t.w
	t.mu.Unlock()
	if w == nil {
		return nil
	}

	w.running.Store(false)
	t.signal()
	if !wait {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transcriber: shutdown: %w", ctx.Err())
	}
}

// Close shuts down and waits for the worker, then closes Results.
func (t *Transcriber) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.Shutdown(ctx, true)
	t.recorder.Stop()
	t.results.Close()
	return err
}

func (t *Transcriber) ensureWorkerLocked() error {
	if t.closed {
		return ErrClosed
	}
	if t.w != nil && t.w.running.Load() {
		return nil
	}
	w := newWorker(t, t.w)
	t.w = w
	go w.run()
	return nil
}

// signal wakes the worker early. It never blocks.
func (t *Transcriber) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// dropRequests forgets pending session requests after the worker could not
// start.
func (t *Transcriber) dropRequests() {
	t.serviced = t.reqs.clear()
}
