package transcriber

import (
	"fmt"
	"time"

	"github.com/chaz8081/gostt-live/internal/audio"
	"github.com/chaz8081/gostt-live/internal/lifecycle"
	"github.com/chaz8081/gostt-live/internal/pcm"
	"github.com/chaz8081/gostt-live/internal/vad"
)

// Options configures a Transcriber. The worker captures a copy when it
// starts; later changes have no effect on a running worker.
type Options struct {
	Model lifecycle.Config

	// SampleRate is the rate the engine consumes. Only pcm.TargetSampleRate
	// is accepted.
	SampleRate int
	// BlockSize is the capture block hint in frames at SampleRate.
	BlockSize int
	// ChannelMode selects how stereo devices are reduced to mono.
	ChannelMode audio.ChannelMode
	// QueueCapacity bounds the capture queue. 0 means unbounded.
	QueueCapacity int

	// PollInterval is the worker tick between queue drains.
	PollInterval time.Duration

	// VAD enables the energy gate at the given aggressiveness (0..3).
	VAD            bool
	Aggressiveness int

	// PaddingStart and PaddingEnd are fed to the decoder around each
	// utterance. Zero disables either.
	PaddingStart time.Duration
	PaddingEnd   time.Duration

	// OneShot skips the streaming session and decodes the whole utterance
	// with a single SpeechToText call on stop. No partials are produced.
	OneShot bool
}

// DefaultOptions returns the settings used when no config file is present.
func DefaultOptions() Options {
	return Options{
		Model:          lifecycle.Config{},
		SampleRate:     pcm.TargetSampleRate,
		BlockSize:      480,
		ChannelMode:    audio.Downmix,
		QueueCapacity:  0,
		PollInterval:   250 * time.Millisecond,
		VAD:            true,
		Aggressiveness: 0,
		PaddingStart:   300 * time.Millisecond,
		PaddingEnd:     100 * time.Millisecond,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.SampleRate != pcm.TargetSampleRate {
		return fmt.Errorf("transcriber: sample rate must be %d, got %d", pcm.TargetSampleRate, o.SampleRate)
	}
	if o.BlockSize <= 0 {
		return fmt.Errorf("transcriber: block size must be > 0, got %d", o.BlockSize)
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("transcriber: poll interval must be > 0, got %s", o.PollInterval)
	}
	if o.Aggressiveness < 0 || o.Aggressiveness > vad.MaxAggressiveness {
		return fmt.Errorf("transcriber: vad aggressiveness must be 0..%d, got %d", vad.MaxAggressiveness, o.Aggressiveness)
	}
	if o.PaddingStart < 0 || o.PaddingEnd < 0 {
		return fmt.Errorf("transcriber: padding must not be negative")
	}
	return nil
}
