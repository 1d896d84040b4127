package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// MinBlockFrames is the smallest buffer size requested from the driver.
const MinBlockFrames = 256

// ChannelMode controls how stereo input is reduced to the mono stream the
// speech engine consumes.
type ChannelMode int

const (
	// Downmix averages left and right.
	Downmix ChannelMode = iota
	// Split keeps channels separate and forwards only the first.
	Split
)

// ParseChannelMode maps the config spelling to a ChannelMode.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch s {
	case "", "downmix":
		return Downmix, nil
	case "split":
		return Split, nil
	}
	return Downmix, fmt.Errorf("audio: unknown channel mode %q", s)
}

// Recorder owns the capture stream and feeds resampled mono blocks into a
// pcm.Queue. It is safe for concurrent use.
type Recorder struct {
	driver Driver
	queue  *pcm.Queue
	mode   ChannelMode
	logger *slog.Logger

	mu        sync.Mutex
	stream    Stream
	recording bool

	// Negotiated format, read by the capture callback.
	active     atomic.Bool
	deviceRate atomic.Int64
	channels   atomic.Int64
	targetRate atomic.Int64

	overflows atomic.Uint64
	blocks    atomic.Uint64
}

// NewRecorder creates a recorder that pushes captured audio onto queue.
func NewRecorder(driver Driver, queue *pcm.Queue, mode ChannelMode, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		driver: driver,
		queue:  queue,
		mode:   mode,
		logger: logger.With("component", "recorder"),
	}
}

// Start opens the default input device at the rate nearest to targetRate and
// begins capturing. A running stream is stopped before the new one opens so
// stale audio never bleeds into the next utterance. blockSizeHint is in frames
// at targetRate.
//
// Driver failures, including panics, are logged and returned as errors.
func (r *Recorder) Start(targetRate, blockSizeHint int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		r.stopLocked()
	}

	if err := r.open(targetRate, blockSizeHint); err != nil {
		r.logger.Error("capture start failed", "target_rate", targetRate, "error", err)
		return err
	}
	return nil
}

func (r *Recorder) open(targetRate, blockSizeHint int) error {
	if targetRate <= 0 {
		return fmt.Errorf("audio: invalid target sample rate %d", targetRate)
	}

	var info DeviceInfo
	err := guard("query default input", func() error {
		var err error
		info, err = r.driver.DefaultInput()
		return err
	})
	if err != nil {
		return err
	}

	switch {
	case info.Channels <= 0:
		return fmt.Errorf("audio: device %q reports no input channels", info.Name)
	case info.Channels > 2:
		return fmt.Errorf("audio: device %q has %d channels, only mono and stereo are supported", info.Name, info.Channels)
	}

	rate := NearestRate(info.SampleRates, targetRate)
	frames := blockSizeHint * rate / targetRate
	if frames < MinBlockFrames {
		frames = MinBlockFrames
	}

	r.deviceRate.Store(int64(rate))
	r.channels.Store(int64(info.Channels))
	r.targetRate.Store(int64(targetRate))

	cfg := StreamConfig{
		DeviceID:     info.ID,
		SampleRate:   rate,
		Channels:     info.Channels,
		BufferFrames: frames,
	}

	var stream Stream
	err = guard("open stream", func() error {
		var err error
		stream, err = r.driver.Open(cfg, r.onData)
		return err
	})
	if err != nil {
		return err
	}

	r.active.Store(true)
	if err := guard("start stream", stream.Start); err != nil {
		r.active.Store(false)
		_ = guard("close stream", stream.Close)
		return err
	}

	r.stream = stream
	r.recording = true
	r.logger.Debug("capture started",
		"device", info.Name,
		"device_rate", rate,
		"channels", info.Channels,
		"buffer_frames", frames)
	return nil
}

// Stop halts the capture stream. It is a no-op when not recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if !r.recording {
		return
	}
	r.active.Store(false)
	if err := guard("stop stream", r.stream.Stop); err != nil {
		r.logger.Warn("capture stop failed", "error", err)
	}
	if err := guard("close stream", r.stream.Close); err != nil {
		r.logger.Warn("capture close failed", "error", err)
	}
	r.stream = nil
	r.recording = false
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// DeviceRate returns the negotiated device sample rate of the last start.
func (r *Recorder) DeviceRate() int {
	return int(r.deviceRate.Load())
}

// ReportsOverflow reports whether the driver signals input overflow. When it
// does not, Overflows is always zero.
func (r *Recorder) ReportsOverflow() bool {
	o, ok := r.driver.(OverflowReporter)
	return ok && o.ReportsOverflow()
}

// Overflows returns how many driver overflow notifications were seen. It is
// only meaningful when ReportsOverflow is true.
func (r *Recorder) Overflows() uint64 {
	return r.overflows.Load()
}

// Blocks returns how many blocks were pushed onto the queue.
func (r *Recorder) Blocks() uint64 {
	return r.blocks.Load()
}

// Close stops capture and releases the driver.
func (r *Recorder) Close() error {
	r.Stop()
	return guard("close driver", r.driver.Close)
}

// onData runs on the driver thread. It must not block.
func (r *Recorder) onData(in []int16, frames int, streamTime float64, overflow bool) int {
	if overflow {
		r.overflows.Add(1)
	}
	if !r.active.Load() {
		return Halt
	}

	channels := int(r.channels.Load())
	if frames <= 0 || channels <= 0 {
		return Continue
	}
	n := frames * channels
	if n > len(in) {
		n = len(in) - len(in)%channels
	}
	samples := in[:n]

	if channels == 2 {
		if r.mode == Split {
			samples = pcm.Deinterleave(samples, 2)[0]
		} else {
			samples = pcm.DownmixStereo(samples)
		}
	}

	from, to := int(r.deviceRate.Load()), int(r.targetRate.Load())
	if from != to {
		samples = pcm.Resample(samples, 1, from, to)
	} else if channels == 1 {
		// The driver reuses its buffer after we return.
		samples = append([]int16(nil), samples...)
	}

	r.queue.Push(pcm.Block{
		Samples:    samples,
		Channels:   1,
		SampleRate: to,
		Captured:   time.Duration(streamTime * float64(time.Second)),
	})
	r.blocks.Add(1)
	return Continue
}

var errDriverPanic = errors.New("audio: driver panic")

// guard runs a driver call, converting a panic into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w during %s: %v", errDriverPanic, op, p)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("audio: %s: %w", op, err)
	}
	return nil
}
