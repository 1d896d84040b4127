package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// errBusy is returned by a partial decode that declined to wait for a
// decoder already in use. The pass is retried on the next poll.
var errBusy = errors.New("engine: decoder busy")

// partialRunner buffers a stream's audio and re-decodes the whole buffer on
// its own goroutine once step new samples have arrived. IntermediateDecode
// never waits for a pass and returns the latest finished partial.
type partialRunner struct {
	step   int
	decode func([]int16) (string, error)
	log    *slog.Logger

	mu      sync.Mutex
	samples []int16
	decoded int
	partial string
	running bool
	done    bool
	passes  sync.WaitGroup
}

func newPartialRunner(step time.Duration, decode func([]int16) (string, error), logger *slog.Logger) *partialRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &partialRunner{
		step:   pcm.SamplesFor(step, pcm.TargetSampleRate),
		decode: decode,
		log:    logger,
	}
}

func (r *partialRunner) Feed(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.done {
		r.samples = append(r.samples, samples...)
	}
}

func (r *partialRunner) IntermediateDecode() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return "", &Error{Op: "intermediate decode", Code: CodeStreamClosed}
	}
	if !r.running && len(r.samples)-r.decoded >= r.step {
		r.running = true
		r.decoded = len(r.samples)
		snapshot := append([]int16(nil), r.samples...)
		r.passes.Add(1)
		go r.pass(snapshot)
	}
	return r.partial, nil
}

func (r *partialRunner) pass(samples []int16) {
	defer r.passes.Done()
	text, err := r.decode(samples)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	switch {
	case errors.Is(err, errBusy):
		r.decoded = len(samples) - r.step
	case err != nil:
		r.log.Debug("intermediate decode failed", "samples", len(samples), "error", err)
	case !r.done:
		r.partial = text
	}
}

// finish invalidates the stream and returns its audio once any pass in
// flight has returned.
func (r *partialRunner) finish() ([]int16, error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return nil, &Error{Op: "finish stream", Code: CodeStreamClosed}
	}
	r.done = true
	samples := r.samples
	r.samples = nil
	r.mu.Unlock()

	r.passes.Wait()
	return samples, nil
}

func (r *partialRunner) Discard() {
	r.mu.Lock()
	r.done = true
	r.samples = nil
	r.mu.Unlock()
	r.passes.Wait()
}
