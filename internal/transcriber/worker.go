package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/gostt-live/internal/engine"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/telemetry"
	"github.com/chaz8081/gostt-live/internal/vad"
)

// worker is one run of the decode loop. Fields below the divider belong to
// the worker goroutine alone.
type worker struct {
	t    *Transcriber
	opts Options
	log  *slog.Logger

	running   atomic.Bool
	recording atomic.Bool
	pending   atomic.Int64
	finals    sync.WaitGroup
	done      chan struct{}
	prev      *worker

	handle    *lifecycle.Handle
	gate      *vad.Gate
	padding   *vad.Padding
	stream    engine.Stream
	buffer    []int16
	utterance uint64
	partial   string
	um        *telemetry.Utterance
}

func newWorker(t *Transcriber, prev *worker) *worker {
	w := &worker{
		t:    t,
		opts: t.opts,
		log:  t.log,
		done: make(chan struct{}),
		prev: prev,
	}
	w.running.Store(true)
	return w
}

func (w *worker) currentState() State {
	select {
	case <-w.done:
		return Stopped
	default:
	}
	switch {
	case w.recording.Load():
		return Recording
	case w.pending.Load() > 0:
		return Finalizing
	}
	return Idle
}

func (w *worker) run() {
	defer close(w.done)

	if w.prev != nil {
		<-w.prev.done
		w.prev = nil
	}
	if !w.running.Load() {
		return
	}

	handle, err := w.t.manager.Load(w.opts.Model)
	if err != nil {
		w.log.Error("worker start aborted", "error", err)
		w.t.metrics.RecordFailedStart("model")
		w.t.mu.Lock()
		w.t.dropRequests()
		w.running.Store(false)
		w.t.mu.Unlock()
		return
	}
	w.handle = handle

	if err := w.setupGate(); err != nil {
		w.log.Warn("voice activity detection disabled", "error", err)
	}
	w.log.Info("worker started",
		"poll_interval", w.opts.PollInterval,
		"vad", w.opts.VAD,
		"one_shot", w.opts.OneShot)

	timer := time.NewTimer(w.opts.PollInterval)
	defer timer.Stop()
	for w.running.Load() {
		w.tick()
		timer.Reset(w.opts.PollInterval)
		select {
		case <-w.t.wake:
		case <-timer.C:
		}
	}
	w.shutdown()
}

func (w *worker) setupGate() error {
	w.padding = vad.NewPadding(w.opts.PaddingStart, w.opts.PaddingEnd, w.opts.SampleRate)
	if !w.opts.VAD {
		w.gate = vad.NewGate(nil, w.padding)
		return nil
	}
	detector, err := vad.NewEnergy(w.opts.Aggressiveness)
	if err != nil {
		w.gate = vad.NewGate(nil, w.padding)
		return err
	}
	w.gate = vad.NewGate(detector, w.padding)
	return nil
}

// tick runs one iteration: drain and gate captured audio, poll for a partial
// if anything was fed, then service start and stop requests. A worker that
// is shutting down leaves requests to its successor.
func (w *worker) tick() {
	if w.drain() {
		w.poll()
	}
	w.transition()

	w.t.metrics.SetDropped(w.t.queue.Dropped())
	w.t.metrics.SetOverflows(w.t.recorder.Overflows())
}

// drain consumes every queued block and reports whether any audio reached
// the decode stream.
func (w *worker) drain() bool {
	fed := false
	for _, b := range w.t.queue.Drain() {
		if b.Empty() {
			continue
		}
		verdict := w.gate.Classify(b)
		w.t.metrics.RecordBlock(verdict.String())
		if !verdict.Accepted() || !w.recording.Load() {
			continue
		}
		if w.stream == nil {
			w.buffer = append(w.buffer, b.Samples...)
			continue
		}
		w.stream.Feed(b.Samples)
		w.um.RecordFed(len(b.Samples))
		fed = true
	}
	return fed
}

func (w *worker) poll() {
	if w.stream == nil {
		return
	}
	text, err := w.stream.IntermediateDecode()
	if err != nil {
		w.log.Debug("intermediate decode failed", "utterance", w.utterance, "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" || text == w.partial {
		return
	}
	w.partial = text
	w.um.RecordPartial(text)
	w.t.results.Deliver(w.utterance, text, false)
}

// transition services request generations in the order the consumer made
// them. A start and stop that both land between two ticks still yield one
// completed utterance.
func (w *worker) transition() {
	for w.running.Load() {
		next := w.t.serviced + 1
		if next > w.t.reqs.current() {
			return
		}
		if !isStart(next) {
			w.t.serviced = next
			if w.recording.Load() {
				w.stopUtterance()
			}
			continue
		}
		if w.startUtterance() {
			w.t.serviced = next
			continue
		}
		// A failed start withdraws its own request. When the consumer has
		// moved on, the following generation is the stop paired with it.
		w.t.reqs.withdraw(next)
		w.t.serviced = next + 1
	}
}

func (w *worker) startUtterance() bool {
	w.buffer = w.buffer[:0]
	w.t.queue.Reset()

	if err := w.t.recorder.Start(w.opts.SampleRate, w.opts.BlockSize); err != nil {
		w.log.Error("session start failed", "stage", "capture", "error", err)
		w.t.metrics.RecordFailedStart("capture")
		return false
	}

	var stream engine.Stream
	if !w.opts.OneShot {
		s, err := w.handle.Model().NewStream()
		switch {
		case engine.CodeOf(err) == engine.CodeUnsupported:
			w.log.Info("backend has no streaming decoder; using one-shot decode")
		case err != nil:
			w.log.Error("session start failed", "stage", "stream", "error", err)
			w.t.metrics.RecordFailedStart("stream")
			w.t.recorder.Stop()
			return false
		default:
			stream = s
		}
	}

	w.utterance = w.t.utterances.Add(1)
	w.partial = ""
	w.um = w.t.metrics.StartUtterance(context.Background(), w.t.session, w.utterance)
	w.stream = stream
	w.recording.Store(true)

	if stream != nil && w.opts.PaddingStart > 0 {
		pad := w.padding.Take(w.opts.PaddingStart)
		stream.Feed(pad)
		w.um.RecordFed(len(pad))
	}
	w.log.Debug("utterance started", "utterance", w.utterance, "streaming", stream != nil)
	return true
}

// stopUtterance stops capture and hands the stream to a finalizer goroutine.
// The stream is cleared here, before the finalizer runs, so the next start
// opens a fresh one.
func (w *worker) stopUtterance() {
	w.t.recorder.Stop()
	w.drain()

	stream, buffer, um, utterance := w.stream, w.buffer, w.um, w.utterance
	w.stream, w.buffer, w.um = nil, nil, nil
	w.recording.Store(false)
	um.Stopped()

	if stream != nil && w.opts.PaddingEnd > 0 {
		pad := w.padding.Take(w.opts.PaddingEnd)
		stream.Feed(pad)
		um.RecordFed(len(pad))
	}

	model, release, err := w.handle.Acquire()
	if err != nil {
		w.log.Error("finalize skipped", "utterance", utterance, "error", err)
		if stream != nil {
			stream.Discard()
		}
		um.Finish("", err)
		w.t.results.Deliver(utterance, "", true)
		return
	}

	w.pending.Add(1)
	w.finals.Add(1)
	go func() {
		defer w.finals.Done()
		defer w.pending.Add(-1)
		defer release()

		text, err := finalize(model, stream, buffer)
		if err != nil {
			w.log.Warn("finalize failed", "utterance", utterance, "error", err)
			text = ""
		}
		um.Finish(text, err)
		w.t.results.Deliver(utterance, text, true)
	}()
}

// finalize returns the utterance transcript from the stream, or from a
// one-shot decode of buffer when no stream was opened.
func finalize(model engine.Model, stream engine.Stream, buffer []int16) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transcriber: finalize panic: %v", p)
		}
	}()
	if stream != nil {
		text, err = stream.Finish()
	} else {
		text, err = model.SpeechToText(buffer)
	}
	return strings.TrimSpace(text), err
}

func (w *worker) shutdown() {
	if w.recording.Load() {
		w.stopUtterance()
		// No consumer stop ended this utterance. Withdraw its start, or
		// consume the stop that is already waiting.
		w.t.reqs.withdraw(w.t.serviced)
		w.t.serviced++
	}
	w.finals.Wait()

	if err := w.gate.Close(); err != nil {
		w.log.Warn("release voice activity detector", "error", err)
	}
	if err := w.handle.Unload(context.Background()); err != nil {
		w.log.Error("release model", "error", err)
	}
	w.log.Info("worker stopped")
}
