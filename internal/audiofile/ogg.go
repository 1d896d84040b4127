package audiofile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
)

// maxFrameSize is the largest Opus frame, 120ms at 48kHz.
const maxFrameSize = 5760

// decodeOggOpusSafe recovers from decoder panics on malformed packets.
func decodeOggOpusSafe(path string, log *slog.Logger) (samples []int16, rate, channels int, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("opus decoder panicked", "panic", r)
			samples, rate, channels = nil, 0, 0
			err = fmt.Errorf("audiofile: opus decoder panic: %v", r)
		}
	}()
	return decodeOggOpus(path, log)
}

func decodeOggOpus(path string, log *slog.Logger) ([]int16, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audiofile: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	ogg, header, err := oggreader.NewWith(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audiofile: parse OGG container: %w", err)
	}
	rate := int(header.SampleRate)
	channels := int(header.Channels)
	if channels <= 0 {
		channels = 1
	}

	decoder := opus.NewDecoder()
	out := make([]byte, maxFrameSize*channels*2)

	var all []int16
	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("audiofile: parse OGG page: %w", err)
		}
		for _, segment := range segments {
			if len(segment) == 0 {
				continue
			}
			clear(out)
			if _, _, err := decoder.Decode(segment, out); err != nil {
				log.Debug("skipping opus packet", "error", err, "len", len(segment))
				continue
			}
			all = append(all, trimmedSamples(out)...)
		}
	}
	return all, rate, channels, nil
}

// trimmedSamples reads little-endian samples from buf, dropping the unused
// zero tail of the decode buffer.
func trimmedSamples(buf []byte) []int16 {
	end := len(buf) &^ 1
	for end >= 2 && binary.LittleEndian.Uint16(buf[end-2:end]) == 0 {
		end -= 2
	}
	samples := make([]int16, end/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return samples
}
