// Package pcm holds the signed 16-bit audio blocks that flow from the capture
// callback to the transcription worker, and the helpers that reshape them.
package pcm

import (
	"fmt"
	"time"
)

// TargetSampleRate is the rate every block is converted to before it reaches
// the voice gate and the speech engine.
const TargetSampleRate = 16000

// Block is an immutable run of interleaved samples captured at one instant.
// len(Samples) is always a multiple of Channels.
type Block struct {
	Samples    []int16
	Channels   int
	SampleRate int
	// Captured is the driver stream time of the first frame.
	Captured time.Duration
}

// NewBlock copies samples into a new Block. It rejects sample counts that do
// not divide evenly into frames.
func NewBlock(samples []int16, channels, sampleRate int, captured time.Duration) (Block, error) {
	if channels <= 0 {
		return Block{}, fmt.Errorf("pcm: channel count must be > 0, got %d", channels)
	}
	if len(samples)%channels != 0 {
		return Block{}, fmt.Errorf("pcm: %d samples is not a multiple of %d channels", len(samples), channels)
	}
	data := make([]int16, len(samples))
	copy(data, samples)
	return Block{
		Samples:    data,
		Channels:   channels,
		SampleRate: sampleRate,
		Captured:   captured,
	}, nil
}

// Frames returns the number of frames (samples per channel) in the block.
func (b Block) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the block.
func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Empty reports whether the block carries no samples.
func (b Block) Empty() bool {
	return len(b.Samples) == 0
}

// SamplesFor returns how many mono samples cover d at the given rate.
func SamplesFor(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(d * time.Duration(sampleRate) / time.Second)
}
