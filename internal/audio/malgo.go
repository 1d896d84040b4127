package audio

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// MalgoDriver captures through miniaudio. Call Close() when done.
type MalgoDriver struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoDriver initializes a miniaudio context with the platform default
// backends.
func NewMalgoDriver() (*MalgoDriver, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &MalgoDriver{ctx: ctx}, nil
}

// Inputs lists every capture device with the formats it reports.
func (d *MalgoDriver) Inputs() ([]DeviceInfo, error) {
	devices, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		full, err := d.ctx.DeviceInfo(malgo.Capture, dev.ID, malgo.Shared)
		if err != nil {
			full = dev
		}
		out = append(out, describe(full))
	}
	return out, nil
}

// DefaultInput returns the device miniaudio flags as the default capture
// device, or the first one listed.
func (d *MalgoDriver) DefaultInput() (DeviceInfo, error) {
	inputs, err := d.Inputs()
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(inputs) == 0 {
		return DeviceInfo{}, ErrNoDevice
	}
	for _, in := range inputs {
		if in.Default {
			return in, nil
		}
	}
	return inputs[0], nil
}

// Open configures a signed 16-bit capture stream on the default device.
func (d *MalgoDriver) Open(cfg StreamConfig, fn CaptureFunc) (Stream, error) {
	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = uint32(cfg.Channels)
	deviceCfg.SampleRate = uint32(cfg.SampleRate)
	deviceCfg.PeriodSizeInFrames = uint32(cfg.BufferFrames)

	s := &malgoStream{channels: cfg.Channels, rate: cfg.SampleRate, fn: fn}
	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	s.device = device
	return s, nil
}

// Close releases the miniaudio context.
func (d *MalgoDriver) Close() error {
	if d.ctx == nil {
		return nil
	}
	if err := d.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	d.ctx.Free()
	d.ctx = nil
	return nil
}

func describe(info malgo.DeviceInfo) DeviceInfo {
	out := DeviceInfo{
		ID:      info.ID.String(),
		Name:    info.Name(),
		Default: info.IsDefault != 0,
	}

	seen := make(map[int]bool)
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		f := info.Formats[i]
		if int(f.Channels) > out.Channels {
			out.Channels = int(f.Channels)
		}
		if f.SampleRate > 0 && !seen[int(f.SampleRate)] {
			seen[int(f.SampleRate)] = true
			out.SampleRates = append(out.SampleRates, int(f.SampleRate))
		}
	}
	// miniaudio reports 0 for "any": the device converts internally.
	if out.Channels == 0 {
		out.Channels = 1
	}
	if len(out.SampleRates) == 0 {
		out.SampleRates = append(out.SampleRates, commonRates...)
	}
	sort.Ints(out.SampleRates)
	return out
}

type malgoStream struct {
	device   *malgo.Device
	channels int
	rate     int
	fn       CaptureFunc

	mu     sync.Mutex
	closed bool
	halted atomic.Bool
	frames atomic.Uint64
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("starting capture device: stream closed")
	}
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("starting capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.device.IsStarted() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("stopping capture device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.device.Uninit()
	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured frames as little-endian int16. miniaudio does
// not tell capture callbacks about lost input, so overflow is always false.
func (s *malgoStream) onData(_, pSample []byte, frameCount uint32) {
	if s.halted.Load() {
		return
	}
	samples := pcm.BytesToInt16(pSample)
	if want := int(frameCount) * s.channels; len(samples) > want {
		samples = samples[:want]
	}
	start := s.frames.Add(uint64(frameCount)) - uint64(frameCount)
	streamTime := float64(start) / float64(s.rate)
	if s.fn(samples, len(samples)/s.channels, streamTime, false) == Halt {
		s.halted.Store(true)
	}
}
