package pcm

import (
	"math"
	"testing"
)

func sine(n, rate int, freq float64, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func minMax(s []int16) (int16, int16) {
	lo, hi := s[0], s[0]
	for _, v := range s {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func TestResampleUpsampleSine(t *testing.T) {
	in := sine(8000, 8000, 440, 10000)
	out := Resample(in, 1, 8000, 16000)

	if len(out) < 2*len(in)-2 || len(out) > 2*len(in)+2 {
		t.Fatalf("Resample() produced %d samples, want about %d", len(out), 2*len(in))
	}
	lo, hi := minMax(in)
	for i, v := range out {
		if v < lo || v > hi {
			t.Fatalf("out[%d] = %d, outside input range [%d, %d]", i, v, lo, hi)
		}
	}
}

func TestResampleDownsample(t *testing.T) {
	in := sine(48000, 48000, 440, 8000)
	out := Resample(in, 1, 48000, 16000)
	if len(out) != 16000 {
		t.Errorf("Resample() produced %d samples, want 16000", len(out))
	}
}

func TestResampleStereoStaysInPhase(t *testing.T) {
	// Left and right carry the same ramp, so any cross-channel smearing
	// would make them differ after interpolation.
	frames := 100
	in := make([]int16, frames*2)
	for f := 0; f < frames; f++ {
		in[2*f] = int16(f * 100)
		in[2*f+1] = int16(f * 100)
	}
	out := Resample(in, 2, 22050, 16000)
	if len(out)%2 != 0 {
		t.Fatalf("Resample() produced %d samples, want an even count", len(out))
	}
	for f := 0; f < len(out)/2; f++ {
		if out[2*f] != out[2*f+1] {
			t.Fatalf("frame %d: left %d != right %d", f, out[2*f], out[2*f+1])
		}
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []int16{1, 2, 3}
	out := Resample(in, 1, 16000, 16000)
	out[0] = 42
	if in[0] != 1 {
		t.Error("Resample() at equal rates should return a copy")
	}
}

func TestResampleInvalid(t *testing.T) {
	if got := Resample([]int16{1, 2}, 0, 8000, 16000); got != nil {
		t.Errorf("Resample() with 0 channels = %v, want nil", got)
	}
	if got := Resample(nil, 1, 8000, 16000); got != nil {
		t.Errorf("Resample() of empty input = %v, want nil", got)
	}
}

func TestDownmixStereoRounds(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{name: "even sum", in: []int16{100, 200}, want: []int16{150}},
		{name: "odd sum rounds away from zero", in: []int16{1, 2}, want: []int16{2}},
		{name: "negative odd sum", in: []int16{-1, -2}, want: []int16{-2}},
		{name: "full scale", in: []int16{32767, 32767, -32768, -32768}, want: []int16{32767, -32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DownmixStereo(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("DownmixStereo() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DownmixStereo()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDeinterleave(t *testing.T) {
	got := Deinterleave([]int16{1, 10, 2, 20, 3, 30}, 2)
	if len(got) != 2 {
		t.Fatalf("Deinterleave() returned %d channels, want 2", len(got))
	}
	want := [][]int16{{1, 2, 3}, {10, 20, 30}}
	for ch := range want {
		for i := range want[ch] {
			if got[ch][i] != want[ch][i] {
				t.Errorf("channel %d sample %d = %d, want %d", ch, i, got[ch][i], want[ch][i])
			}
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	out := BytesToInt16(Int16ToBytes(in))
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestInt16ToFloat32(t *testing.T) {
	got := Int16ToFloat32([]int16{0, -32768, 16384})
	want := []float32{0, -1, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Int16ToFloat32()[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	got := RMS([]int16{16384, -16384})
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS() = %f, want 0.5", got)
	}
}
