package audio

import "errors"

// ErrNoDevice is returned when the driver cannot find a default input device.
var ErrNoDevice = errors.New("audio: no capture device available")

// DeviceInfo describes a capture device as advertised by the driver.
type DeviceInfo struct {
	ID          string
	Name        string
	Default     bool
	Channels    int
	SampleRates []int
}

// StreamConfig selects the format a capture stream is opened with.
type StreamConfig struct {
	DeviceID     string
	SampleRate   int
	Channels     int
	BufferFrames int
}

// CaptureFunc receives interleaved samples on the driver's own thread.
// streamTime is seconds since the stream started; overflow reports that the
// driver lost input since the previous call. Returning 0 keeps the stream
// flowing, 1 asks the driver to stop delivering.
type CaptureFunc func(in []int16, frames int, streamTime float64, overflow bool) int

// OverflowReporter is implemented by drivers whose CaptureFunc overflow flag
// is meaningful. Drivers without it always pass false.
type OverflowReporter interface {
	ReportsOverflow() bool
}

// Stream is an open capture stream. Stop and Close are idempotent.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver is the native audio API boundary.
type Driver interface {
	Inputs() ([]DeviceInfo, error)
	DefaultInput() (DeviceInfo, error)
	Open(cfg StreamConfig, fn CaptureFunc) (Stream, error)
	Close() error
}

// Callback status codes.
const (
	Continue = 0
	Halt     = 1
)

// commonRates are probed when a device does not advertise its rates.
var commonRates = []int{8000, 11025, 16000, 22050, 32000, 44100, 48000}

// NearestRate picks the rate in rates closest to target. An exact match wins;
// on a tie the higher rate is preferred so no bandwidth is discarded.
func NearestRate(rates []int, target int) int {
	best := 0
	bestDiff := -1
	for _, r := range rates {
		if r <= 0 {
			continue
		}
		if r == target {
			return r
		}
		diff := r - target
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff || (diff == bestDiff && r > best) {
			best, bestDiff = r, diff
		}
	}
	if best == 0 {
		return target
	}
	return best
}
