package vad

import (
	"fmt"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// MaxAggressiveness is the most aggressive silence filtering level.
const MaxAggressiveness = 3

// thresholds holds the RMS level that counts as speech, per aggressiveness.
var thresholds = [MaxAggressiveness + 1]float64{0.004, 0.008, 0.015, 0.025}

// hangover is how many blocks stay voiced after the level drops, per
// aggressiveness. Less aggressive settings keep trailing syllables.
var hangover = [MaxAggressiveness + 1]int{8, 5, 3, 1}

// Energy is a pure-Go RMS detector with hangover so soft word endings are not
// cut. It is not safe for concurrent use; the gate serializes access through
// the single worker that owns it.
type Energy struct {
	threshold float64
	hangover  int
	remaining int
}

// NewEnergy returns a detector for aggressiveness 0 (permissive) to 3.
func NewEnergy(aggressiveness int) (*Energy, error) {
	if aggressiveness < 0 || aggressiveness > MaxAggressiveness {
		return nil, fmt.Errorf("vad: aggressiveness %d out of range 0..%d", aggressiveness, MaxAggressiveness)
	}
	return &Energy{
		threshold: thresholds[aggressiveness],
		hangover:  hangover[aggressiveness],
	}, nil
}

// IsVoiced reports whether samples carry speech-level energy. Frames shorter
// than 10ms cannot be measured reliably and return ErrFrameLength.
func (e *Energy) IsVoiced(samples []int16, sampleRate int) (bool, error) {
	if sampleRate <= 0 {
		return false, fmt.Errorf("vad: invalid sample rate %d", sampleRate)
	}
	if len(samples) < sampleRate/100 {
		return false, fmt.Errorf("%w: %d samples at %dHz", ErrFrameLength, len(samples), sampleRate)
	}

	if pcm.RMS(samples) >= e.threshold {
		e.remaining = e.hangover
		return true, nil
	}
	if e.remaining > 0 {
		e.remaining--
		return true, nil
	}
	return false, nil
}

// Reset clears the hangover state.
func (e *Energy) Reset() {
	e.remaining = 0
}
