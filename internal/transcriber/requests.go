package transcriber

import "sync/atomic"

// requests records the consumer's start and stop calls as one generation
// counter. Each accepted call advances the generation by one and calls
// strictly alternate, so odd generations are starts and the low bit is the
// requested flag. A worker services generations in order and never needs a
// second word to know what the consumer asked for last.
type requests struct {
	gen atomic.Uint64
}

// start advances to the next start generation. It reports false when a
// session is already requested.
func (r *requests) start() bool {
	for {
		g := r.gen.Load()
		if isStart(g) {
			return false
		}
		if r.gen.CompareAndSwap(g, g+1) {
			return true
		}
	}
}

// stop advances to the next stop generation. It reports false when no
// session is requested.
func (r *requests) stop() bool {
	for {
		g := r.gen.Load()
		if !isStart(g) {
			return false
		}
		if r.gen.CompareAndSwap(g, g+1) {
			return true
		}
	}
}

func (r *requests) active() bool {
	return isStart(r.gen.Load())
}

func (r *requests) current() uint64 {
	return r.gen.Load()
}

// withdraw ends the start made at generation g, but only while it is still
// the consumer's latest call. It reports whether it did.
func (r *requests) withdraw(g uint64) bool {
	return isStart(g) && r.gen.CompareAndSwap(g, g+1)
}

// clear withdraws whatever start is outstanding and returns the resulting
// generation.
func (r *requests) clear() uint64 {
	for {
		g := r.gen.Load()
		if !isStart(g) || r.gen.CompareAndSwap(g, g+1) {
			return r.gen.Load()
		}
	}
}

func isStart(g uint64) bool {
	return g&1 == 1
}
