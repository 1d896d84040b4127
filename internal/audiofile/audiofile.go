// Package audiofile decodes recorded audio files into 16 kHz mono PCM for
// one-shot transcription.
package audiofile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/zeozeozeo/gomplerate"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// ErrUnsupportedFormat is returned for file types no decoder handles.
var ErrUnsupportedFormat = errors.New("audiofile: unsupported format")

// Audio is decoded, engine-ready PCM.
type Audio struct {
	Samples []int16
	// SourceRate and SourceChannels describe the file before conversion.
	SourceRate     int
	SourceChannels int
}

// Duration returns the playback length of the converted samples.
func (a *Audio) Duration() time.Duration {
	return time.Duration(len(a.Samples)) * time.Second / pcm.TargetSampleRate
}

// Load decodes path (WAV, or Ogg/Opus) and converts it to 16 kHz mono.
func Load(path string, logger *slog.Logger) (*Audio, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "audiofile", "file", path)

	var (
		samples  []int16
		rate     int
		channels int
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		samples, rate, channels, err = decodeWAV(path)
	case ".ogg", ".opus", ".oga":
		samples, rate, channels, err = decodeOggOpusSafe(path, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("audiofile: no audio samples decoded from %s", path)
	}
	log.Debug("decoded audio", "samples", len(samples), "sample_rate", rate, "channels", channels)

	mono := ToMono(samples, channels)
	out, err := resample(mono, rate, pcm.TargetSampleRate)
	if err != nil {
		return nil, err
	}
	return &Audio{Samples: out, SourceRate: rate, SourceChannels: channels}, nil
}

func decodeWAV(path string) ([]int16, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audiofile: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("audiofile: %s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audiofile: decode WAV: %w", err)
	}

	// Scale other bit depths to 16 bits.
	shift := int(dec.BitDepth) - 16
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case dec.BitDepth == 8:
			samples[i] = int16((v - 128) << 8)
		case shift > 0:
			samples[i] = int16(v >> shift)
		default:
			samples[i] = int16(v)
		}
	}
	return samples, int(dec.SampleRate), int(dec.NumChans), nil
}

// ToMono averages interleaved channels into one. Stereo uses the same
// rounding as live capture.
func ToMono(samples []int16, channels int) []int16 {
	switch {
	case channels <= 1:
		return samples
	case channels == 2:
		return pcm.DownmixStereo(samples)
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

func resample(samples []int16, from, to int) ([]int16, error) {
	if from == to {
		return samples, nil
	}
	if from <= 0 {
		return nil, fmt.Errorf("audiofile: invalid sample rate %d", from)
	}
	r, err := gomplerate.NewResampler(1, from, to)
	if err != nil {
		return nil, fmt.Errorf("audiofile: create resampler %d->%d: %w", from, to, err)
	}
	return r.ResampleInt16(samples), nil
}
