package pcm

import (
	"encoding/binary"
	"math"
)

// Resample converts interleaved samples from one rate to another by linear
// interpolation between adjacent frames. Every channel of a frame is
// interpolated with the same fractional position so channels stay in phase.
func Resample(samples []int16, channels, fromRate, toRate int) []int16 {
	if channels <= 0 || fromRate <= 0 || toRate <= 0 {
		return nil
	}
	if fromRate == toRate {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	frames := len(samples) / channels
	if frames == 0 {
		return nil
	}
	outFrames := int(int64(frames) * int64(toRate) / int64(fromRate))
	if outFrames == 0 {
		return nil
	}

	step := float64(fromRate) / float64(toRate)
	out := make([]int16, 0, outFrames*channels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		frame := int(pos)
		frac := pos - float64(frame)
		next := frame + 1
		if frame >= frames-1 {
			frame = frames - 1
			next = frame
			frac = 0
		}
		for ch := 0; ch < channels; ch++ {
			a := float64(samples[frame*channels+ch])
			b := float64(samples[next*channels+ch])
			out = append(out, clamp16(math.Round(a+(b-a)*frac)))
		}
	}
	return out
}

// DownmixStereo averages each left/right pair into one mono sample, rounding
// to the nearest integer.
func DownmixStereo(samples []int16) []int16 {
	out := make([]int16, len(samples)/2)
	for i := range out {
		sum := float64(samples[2*i]) + float64(samples[2*i+1])
		out[i] = clamp16(math.Round(sum / 2))
	}
	return out
}

// Deinterleave splits interleaved samples into one slice per channel.
func Deinterleave(samples []int16, channels int) [][]int16 {
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := make([][]int16, channels)
	for ch := range out {
		out[ch] = make([]int16, frames)
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			out[ch][f] = samples[f*channels+ch]
		}
	}
	return out
}

// BytesToInt16 decodes little-endian signed 16-bit samples.
func BytesToInt16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// Int16ToBytes encodes samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Int16ToFloat32 normalizes samples to [-1.0, 1.0].
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// RMS returns the root mean square of samples as a fraction of full scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
