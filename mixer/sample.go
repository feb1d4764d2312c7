package mixer

import "math"

const (
	// DecibelsPerUnit is the slope of the gain curve: one unit of linear
	// gain input spans 60 dB, so the range 0..1 covers a 1000:1 amplitude ratio.
	DecibelsPerUnit = 60.0

	// GainBase is the amplitude ratio of one unit, 10^(DecibelsPerUnit/20).
	// It is the Base of a beep effects.Volume whose Volume is volume-1.
	GainBase = 1000.0

	// SampleHeadroom is applied to every stream before summation (about -3 dB).
	SampleHeadroom = 0.95

	// SilenceThreshold is the master gain below which the output is forced
	// to true silence.
	SilenceThreshold = 0.01
)

// Sample is one stereo frame of float audio in the nominal range [-1, 1].
type Sample struct {
	Left  float32
	Right float32
}

// Gain maps a linear volume value onto an amplitude factor along a fixed
// decibel-per-unit curve. Unity (1.0) maps to 1, zero and below map to 0.
// Above zero it matches effects.Volume{Base: GainBase, Volume: volume - 1},
// applied here per sample since the mix reads streams frame by frame.
func Gain(volume float64) float32 {
	if volume <= 0 {
		return 0
	}
	return float32(math.Pow(GainBase, volume-1))
}

// LogMultiply scales both channels by Gain(volume).
func (s *Sample) LogMultiply(volume float64) {
	factor := Gain(volume)
	s.Left *= factor
	s.Right *= factor
}

// Add accumulates o into s.
func (s *Sample) Add(o Sample) {
	s.Left += o.Left
	s.Right += o.Right
}

// Clip clamps both channels to [-1, 1].
func (s *Sample) Clip() {
	s.Left = clip(s.Left)
	s.Right = clip(s.Right)
}

// Int16 quantizes the clipped sample to signed 16-bit.
func (s Sample) Int16() (left, right int16) {
	return float32ToInt16(s.Left), float32ToInt16(s.Right)
}

func clip(x float32) float32 {
	if x > 1 {
		return 1
	} else if x < -1 {
		return -1
	}
	return x
}

func float32ToInt16(x float32) int16 {
	// Use 32767 for both signs to avoid overflow on +1
	return int16(clip(x) * math.MaxInt16)
}
