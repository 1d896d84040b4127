// Package dispatch carries transcription results from the worker goroutine
// to the consumer in the order they were produced.
package dispatch

import (
	"sync"
	"time"
)

// Kind distinguishes partial, final and empty-final results.
type Kind int

const (
	// Partial is an intermediate hypothesis for an utterance in progress.
	Partial Kind = iota
	// Final is the terminal transcript of an utterance.
	Final
	// Completed marks an utterance that finished with no text.
	Completed
)

func (k Kind) String() string {
	switch k {
	case Partial:
		return "partial"
	case Final:
		return "final"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Result is one message to the consumer.
type Result struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Utterance uint64    `json:"utterance"`
	Session   string    `json:"session"`
	Time      time.Time `json:"time"`
}

// IsFinal reports whether r ends its utterance.
func (r Result) IsFinal() bool {
	return r.Kind != Partial
}

// Dispatcher is an unbounded single-consumer queue. Deliver never blocks the
// producer; a pump goroutine forwards results to C() in order.
type Dispatcher struct {
	session string
	now     func() time.Time

	mu     sync.Mutex
	queue  []Result
	alive  bool
	notify chan struct{}

	out  chan Result
	done chan struct{}
}

// New starts a dispatcher tagging results with session.
func New(session string) *Dispatcher {
	d := &Dispatcher{
		session: session,
		now:     time.Now,
		alive:   true,
		notify:  make(chan struct{}, 1),
		out:     make(chan Result),
		done:    make(chan struct{}),
	}
	go d.pump()
	return d
}

// Deliver queues text for utterance. Empty partials are dropped; an empty
// final becomes a Completed result. It reports whether a result was queued,
// which is false once the dispatcher is closed.
func (d *Dispatcher) Deliver(utterance uint64, text string, final bool) bool {
	kind := Partial
	switch {
	case final && text == "":
		kind = Completed
	case final:
		kind = Final
	case text == "":
		return false
	}

	d.mu.Lock()
	if !d.alive {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, Result{
		Kind:      kind,
		Text:      text,
		Utterance: utterance,
		Session:   d.session,
		Time:      d.now(),
	})
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
	return true
}

// C returns the ordered result stream. It is closed after Close once every
// queued result has been received.
func (d *Dispatcher) C() <-chan Result {
	return d.out
}

// Alive reports whether Deliver still accepts results.
func (d *Dispatcher) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

// Close stops accepting results. Already queued results are still delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.alive {
		d.mu.Unlock()
		return
	}
	d.alive = false
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Done is closed when the pump has flushed and exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) pump() {
	defer close(d.done)
	defer close(d.out)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		alive := d.alive
		d.mu.Unlock()

		for _, r := range batch {
			d.out <- r
		}
		if len(batch) > 0 {
			continue
		}
		if !alive {
			return
		}
		<-d.notify
	}
}
