// Package vad decides which captured blocks reach the speech engine.
//
// A Gate wraps a Detector and never drops audio because the detector failed:
// errors classify a block as voiced. Silence that does get through the gate
// is retained in a Padding buffer that seeds the decoder around utterances.
package vad

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// Verdict is the classification of one block.
type Verdict int

const (
	Silence Verdict = iota
	Voiced
	// Indeterminate means the detector failed. The gate forwards such blocks.
	Indeterminate
)

func (v Verdict) String() string {
	switch v {
	case Silence:
		return "silence"
	case Voiced:
		return "voiced"
	case Indeterminate:
		return "indeterminate"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Accepted reports whether a block with this verdict is fed to the engine.
func (v Verdict) Accepted() bool {
	return v != Silence
}

// Detector classifies a run of mono samples.
type Detector interface {
	IsVoiced(samples []int16, sampleRate int) (bool, error)
}

// Gate classifies blocks through an optional Detector. With no detector every
// block is voiced.
type Gate struct {
	mu       sync.Mutex
	detector Detector
	padding  *Padding
}

// NewGate returns a gate around d. padding may be nil.
func NewGate(d Detector, padding *Padding) *Gate {
	return &Gate{detector: d, padding: padding}
}

// Classify returns the verdict for b and stores silent audio in the padding
// buffer.
func (g *Gate) Classify(b pcm.Block) Verdict {
	g.mu.Lock()
	d := g.detector
	g.mu.Unlock()

	if d == nil {
		return Voiced
	}

	voiced, err := detect(d, b)
	switch {
	case err != nil:
		return Indeterminate
	case voiced:
		return Voiced
	}
	if g.padding != nil {
		g.padding.Fill(b.Samples)
	}
	return Silence
}

func detect(d Detector, b pcm.Block) (voiced bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("vad: detector panic: %v", p)
		}
	}()
	return d.IsVoiced(b.Samples, b.SampleRate)
}

// Padding returns the gate's silence buffer, possibly nil.
func (g *Gate) Padding() *Padding {
	return g.padding
}

// Close releases the detector. Later blocks are classified as voiced.
func (g *Gate) Close() error {
	g.mu.Lock()
	d := g.detector
	g.detector = nil
	g.mu.Unlock()

	if c, ok := d.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ErrFrameLength is returned for frames the detector cannot measure.
var ErrFrameLength = errors.New("vad: unsupported frame length")
