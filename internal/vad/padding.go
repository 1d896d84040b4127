package vad

import (
	"sync"
	"time"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// Padding collects silent samples until it holds capacity samples. Once full
// it serves its contents as lead-in and trailing audio for the decoder; until
// then it serves zeros.
type Padding struct {
	mu         sync.Mutex
	samples    []int16
	capacity   int
	sampleRate int
}

// NewPadding sizes the buffer for the longer of start and end at sampleRate.
func NewPadding(start, end time.Duration, sampleRate int) *Padding {
	longest := max(start, end)
	n := pcm.SamplesFor(longest, sampleRate)
	return &Padding{
		samples:    make([]int16, 0, n),
		capacity:   n,
		sampleRate: sampleRate,
	}
}

// Fill appends silent samples until the buffer is full.
func (p *Padding) Fill(samples []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room := p.capacity - len(p.samples)
	if room <= 0 {
		return
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	p.samples = append(p.samples, samples...)
}

// Full reports whether the buffer has reached capacity.
func (p *Padding) Full() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity > 0 && len(p.samples) == p.capacity
}

// Take returns d worth of padding: recorded silence when the buffer is full,
// zeros otherwise. The buffer is not consumed.
func (p *Padding) Take(d time.Duration) []int16 {
	n := pcm.SamplesFor(d, p.sampleRate)
	out := make([]int16, n)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capacity > 0 && len(p.samples) == p.capacity {
		copy(out, p.samples)
	}
	return out
}
